package service

import (
	"context"

	"github.com/beanbocchi/cumulus/internal/client/accounting"
)

// Usage asks the accounting service for a collection's running byte
// counters. Unlike the fire-and-forget deltas, a failure here surfaces to
// the caller.
func (s *Service) Usage(ctx context.Context, collectionID int64) (accounting.UsageReport, error) {
	ctx, cancel := s.depContext(ctx)
	defer cancel()

	report, err := s.accounting.Usage(ctx, collectionID)
	if err != nil {
		return accounting.UsageReport{}, s.recordUnexpected("usage", err)
	}
	return report, nil
}
