package service

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/beanbocchi/cumulus/config"
	"github.com/beanbocchi/cumulus/internal/client/accounting"
	"github.com/beanbocchi/cumulus/internal/client/faults"
	"github.com/beanbocchi/cumulus/internal/client/segmentstore"
	"github.com/beanbocchi/cumulus/internal/client/segmentstore/local"
	"github.com/beanbocchi/cumulus/internal/client/segmentstore/storj"
	syncstore "github.com/beanbocchi/cumulus/internal/client/segmentstore/sync"
	"github.com/beanbocchi/cumulus/internal/db"
	"github.com/beanbocchi/cumulus/internal/idtranslator"
	"github.com/beanbocchi/cumulus/internal/model"
	"github.com/beanbocchi/cumulus/internal/unifiedid"
	"github.com/beanbocchi/cumulus/pkg/sqlc"
)

var errUnknownCollection = model.NewError(model.KindNotFound, "collection.not_found", "unknown collection %q")

type Service struct {
	storage     *sqlc.Storage
	segments    segmentstore.Client
	accounting  accounting.Client
	faults      faults.Reporter
	ids         *idtranslator.Translator
	idFactory   *unifiedid.Factory
	passwordKey []byte
	segmentSize int64
	depTimeout  time.Duration
}

func NewService(cfg *config.Config, sqliteDB *sql.DB) (*Service, error) {
	storage := sqlc.NewStorage(sqliteDB)

	var segments segmentstore.Client
	switch cfg.Segmentstore.Type {
	case "storj":
		storjStore, err := storj.NewClient(context.Background(), storj.StorjConfig{
			Bucket:      cfg.Segmentstore.Storj.Bucket,
			AccessGrant: cfg.Segmentstore.Storj.AccessGrant,
		})
		if err != nil {
			return nil, fmt.Errorf("create storj store: %w", err)
		}
		segments = storjStore
	default:
		localStore, err := local.NewClient(local.LocalConfig{
			Root: cfg.Segmentstore.Local.Root,
		})
		if err != nil {
			return nil, fmt.Errorf("create local store: %w", err)
		}
		// Disk segments need the per-location lock so deletes cannot race
		// in-flight retrievals.
		synced, err := syncstore.NewSyncClient(syncstore.SyncConfig{Client: localStore})
		if err != nil {
			return nil, fmt.Errorf("create sync store: %w", err)
		}
		segments = synced
	}

	idKey, err := hex.DecodeString(cfg.App.IDKey)
	if err != nil {
		return nil, fmt.Errorf("decode id key: %w", err)
	}
	idHmacKey, err := hex.DecodeString(cfg.App.IDHmacKey)
	if err != nil {
		return nil, fmt.Errorf("decode id hmac key: %w", err)
	}
	ids, err := idtranslator.New(idKey, idHmacKey)
	if err != nil {
		return nil, fmt.Errorf("create id translator: %w", err)
	}

	passwordKey, err := hex.DecodeString(cfg.App.PasswordKey)
	if err != nil {
		return nil, fmt.Errorf("decode password key: %w", err)
	}

	var reporter faults.Reporter = faults.LogReporter{}
	if cfg.Faults.BaseURL != "" {
		reporter = faults.NewHTTPReporter(cfg.App.Name, cfg.Faults.BaseURL, cfg.App.DepTimeout)
	}

	return &Service{
		storage:     storage,
		segments:    segments,
		accounting:  accounting.NewHTTPClient(cfg.Accounting.BaseURL, cfg.App.DepTimeout),
		faults:      reporter,
		ids:         ids,
		idFactory:   unifiedid.NewFactory(cfg.App.ShardID),
		passwordKey: passwordKey,
		segmentSize: cfg.Segmentstore.SegmentSize,
		depTimeout:  cfg.App.DepTimeout,
	}, nil
}

// GetCollection resolves a collection by name for the dispatch gate.
func (s *Service) GetCollection(ctx context.Context, name string) (db.Collection, error) {
	collection, err := s.storage.GetCollectionByName(ctx, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return db.Collection{}, errUnknownCollection.Fmt(name)
		}
		return db.Collection{}, fmt.Errorf("get collection: %w", err)
	}
	return collection, nil
}

// PublicID exposes the identifier translation for boundary-facing results.
func (s *Service) PublicID(unifiedID int64) string {
	return s.ids.PublicID(unifiedID)
}

// ReportException forwards an unexpected failure to the fault tracker.
func (s *Service) ReportException(class, message string) {
	s.faults.Exception(class, message)
}

// depContext bounds a call into an external collaborator by the shared
// dependency timeout ceiling.
func (s *Service) depContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.depTimeout)
}

func segmentLocation(versionUnifiedID, sequenceNo int64) string {
	return fmt.Sprintf("%d/%06d", versionUnifiedID, sequenceNo)
}

func nanosToTime(nanos int64) time.Time {
	return time.Unix(0, nanos).UTC()
}
