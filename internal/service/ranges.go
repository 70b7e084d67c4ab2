package service

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/beanbocchi/cumulus/internal/model"
)

var (
	errBadRange     = model.NewError(model.KindClientSyntax, "retrieve.range", "invalid range spec %q")
	errBadTimestamp = model.NewError(model.KindClientSyntax, "retrieve.timestamp", "invalid conditional timestamp %q")
)

// readToEnd marks an open-ended range size.
const readToEnd int64 = -1

// byteRange is a parsed Range header: the first object byte to produce and
// how many bytes. size == readToEnd reads through the object end.
type byteRange struct {
	offset int64
	size   int64
}

// parseByteRange parses the exact grammar bytes=<lower>-[<upper>]. The lower
// bound is mandatory, the upper optional and inclusive. An empty header means
// a full read. Malformed specs are a transient-class error, not a permanent
// client error.
func parseByteRange(header string) (byteRange, error) {
	if header == "" {
		return byteRange{offset: 0, size: readToEnd}, nil
	}

	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return byteRange{}, errBadRange.Fmt(header)
	}

	lowerStr, upperStr, ok := strings.Cut(spec, "-")
	if !ok {
		return byteRange{}, errBadRange.Fmt(header)
	}

	lower, err := strconv.ParseInt(lowerStr, 10, 64)
	if err != nil || lower < 0 {
		return byteRange{}, errBadRange.Fmt(header)
	}

	if upperStr == "" {
		return byteRange{offset: lower, size: readToEnd}, nil
	}

	upper, err := strconv.ParseInt(upperStr, 10, 64)
	if err != nil || lower > upper {
		return byteRange{}, errBadRange.Fmt(header)
	}

	return byteRange{offset: lower, size: upper - lower + 1}, nil
}

// parseConditionalTime parses an If-Modified-Since / If-Unmodified-Since
// timestamp. The zero time with nil error means the header was absent.
func parseConditionalTime(header string) (time.Time, error) {
	if header == "" {
		return time.Time{}, nil
	}
	t, err := http.ParseTime(header)
	if err != nil {
		return time.Time{}, errBadTimestamp.Fmt(header)
	}
	return t, nil
}
