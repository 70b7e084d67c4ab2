package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	_ "modernc.org/sqlite"

	"github.com/beanbocchi/cumulus/internal/client/accounting"
	"github.com/beanbocchi/cumulus/internal/client/faults"
	"github.com/beanbocchi/cumulus/internal/client/segmentstore/local"
	syncstore "github.com/beanbocchi/cumulus/internal/client/segmentstore/sync"
	"github.com/beanbocchi/cumulus/internal/db"
	"github.com/beanbocchi/cumulus/internal/idtranslator"
	"github.com/beanbocchi/cumulus/internal/model"
	"github.com/beanbocchi/cumulus/internal/unifiedid"
	"github.com/beanbocchi/cumulus/internal/utils/blake3"
	"github.com/beanbocchi/cumulus/pkg/sqlc"
)

type fakeAccounting struct {
	mu        sync.Mutex
	added     int64
	retrieved int64
	report    accounting.UsageReport
	err       error
}

func (f *fakeAccounting) AddedBytes(ctx context.Context, collectionID, n int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added += n
	return f.err
}

func (f *fakeAccounting) RetrievedBytes(ctx context.Context, collectionID, n int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retrieved += n
	return f.err
}

func (f *fakeAccounting) Usage(ctx context.Context, collectionID int64) (accounting.UsageReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return accounting.UsageReport{}, f.err
	}
	return f.report, nil
}

const testSegmentSize = 256

func testService(t *testing.T) (*Service, *fakeAccounting, db.Collection) {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	sqlDB.SetMaxOpenConns(1)
	if err := db.Migrate(sqlDB); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	storage := sqlc.NewStorage(sqlDB)

	localStore, err := local.NewClient(local.LocalConfig{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("failed to create local store: %v", err)
	}
	segments, err := syncstore.NewSyncClient(syncstore.SyncConfig{Client: localStore})
	if err != nil {
		t.Fatalf("failed to create sync store: %v", err)
	}

	ids, err := idtranslator.New(bytes.Repeat([]byte{7}, 16), []byte("test-hmac"))
	if err != nil {
		t.Fatalf("failed to create translator: %v", err)
	}

	acct := &fakeAccounting{}
	svc := &Service{
		storage:     storage,
		segments:    segments,
		accounting:  acct,
		faults:      faults.LogReporter{},
		ids:         ids,
		idFactory:   unifiedid.NewFactory(1),
		passwordKey: bytes.Repeat([]byte{9}, 32),
		segmentSize: testSegmentSize,
		depTimeout:  time.Second,
	}

	collection, err := storage.CreateCollection(context.Background(), db.CreateCollectionParams{
		Name:         "test-collection",
		CreationTime: time.Now().UnixNano(),
	})
	if err != nil {
		t.Fatalf("failed to create collection: %v", err)
	}
	return svc, acct, collection
}

func archiveContent(t *testing.T, svc *Service, collectionID int64, key string, content []byte) ArchiveResult {
	t.Helper()
	result, err := svc.ArchiveKey(context.Background(), ArchiveParams{
		CollectionID: collectionID,
		Key:          key,
		Body:         bytes.NewReader(content),
	})
	if err != nil {
		t.Fatalf("failed to archive %q: %v", key, err)
	}
	return result
}

func retrieveAll(t *testing.T, svc *Service, params RetrieveParams) (Metadata, []byte) {
	t.Helper()
	ctx := context.Background()
	meta, stm, err := svc.Retrieve(ctx, params)
	if err != nil {
		t.Fatalf("failed to retrieve %q: %v", params.Key, err)
	}
	defer stm.Close()

	var out []byte
	for {
		chunk, err := stm.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("stream error: %v", err)
		}
		out = append(out, chunk...)
	}
	return meta, out
}

func serviceTestContent(n int) []byte {
	content := make([]byte, n)
	for i := range content {
		content[i] = byte(i % 251)
	}
	return content
}

func TestArchiveRetrieveRoundTrip(t *testing.T) {
	svc, acct, collection := testService(t)
	content := serviceTestContent(1000)

	result := archiveContent(t, svc, collection.ID, "doc.txt", content)
	if result.Size != 1000 {
		t.Errorf("expected archived size 1000, got %d", result.Size)
	}

	meta, got := retrieveAll(t, svc, RetrieveParams{CollectionID: collection.ID, Key: "doc.txt"})
	if !bytes.Equal(got, content) {
		t.Fatalf("content mismatch: %d bytes in, %d out", len(content), len(got))
	}
	if meta.TotalSize != 1000 || meta.ContentLength != 1000 {
		t.Errorf("unexpected sizes %+v", meta)
	}
	if meta.VersionID != result.VersionID {
		t.Errorf("expected version %s, got %s", result.VersionID, meta.VersionID)
	}
	if meta.ContentType != "text/plain; charset=utf-8" {
		t.Errorf("unexpected content type %q", meta.ContentType)
	}
	if meta.Partial {
		t.Error("full retrieval must not be partial")
	}

	if acct.added != 1000 {
		t.Errorf("expected 1000 added bytes reported, got %d", acct.added)
	}
	if acct.retrieved != 1000 {
		t.Errorf("expected 1000 retrieved bytes reported, got %d", acct.retrieved)
	}
}

func TestArchiveEmptyObject(t *testing.T) {
	svc, _, collection := testService(t)

	result := archiveContent(t, svc, collection.ID, "empty", nil)
	if result.Size != 0 {
		t.Errorf("expected size 0, got %d", result.Size)
	}

	meta, got := retrieveAll(t, svc, RetrieveParams{CollectionID: collection.ID, Key: "empty"})
	if len(got) != 0 || meta.TotalSize != 0 {
		t.Errorf("expected empty object, got %d bytes, meta %+v", len(got), meta)
	}
}

func TestArchiveExactSegmentBoundary(t *testing.T) {
	svc, _, collection := testService(t)
	content := serviceTestContent(testSegmentSize * 2)

	archiveContent(t, svc, collection.ID, "boundary", content)
	_, got := retrieveAll(t, svc, RetrieveParams{CollectionID: collection.ID, Key: "boundary"})
	if !bytes.Equal(got, content) {
		t.Errorf("content mismatch on segment boundary: %d in, %d out", len(content), len(got))
	}
}

func TestRangedRetrieve(t *testing.T) {
	svc, _, collection := testService(t)
	content := serviceTestContent(1000)
	archiveContent(t, svc, collection.ID, "doc", content)

	t.Run("bounded range across segments", func(t *testing.T) {
		meta, got := retrieveAll(t, svc, RetrieveParams{
			CollectionID: collection.ID,
			Key:          "doc",
			RangeHeader:  "bytes=200-599",
		})
		if !bytes.Equal(got, content[200:600]) {
			t.Errorf("range content mismatch, got %d bytes", len(got))
		}
		if !meta.Partial || meta.RangeStart != 200 || meta.RangeEnd != 599 {
			t.Errorf("unexpected range metadata %+v", meta)
		}
		if meta.ContentLength != 400 || meta.TotalSize != 1000 {
			t.Errorf("unexpected sizes %+v", meta)
		}
	})

	t.Run("open-ended range", func(t *testing.T) {
		meta, got := retrieveAll(t, svc, RetrieveParams{
			CollectionID: collection.ID,
			Key:          "doc",
			RangeHeader:  "bytes=900-",
		})
		if !bytes.Equal(got, content[900:]) {
			t.Errorf("tail mismatch, got %d bytes", len(got))
		}
		if meta.ContentLength != 100 || meta.RangeEnd != 999 {
			t.Errorf("unexpected metadata %+v", meta)
		}
	})

	t.Run("upper bound past object end is clipped", func(t *testing.T) {
		meta, got := retrieveAll(t, svc, RetrieveParams{
			CollectionID: collection.ID,
			Key:          "doc",
			RangeHeader:  "bytes=900-2000",
		})
		if !bytes.Equal(got, content[900:]) {
			t.Errorf("expected clipped tail, got %d bytes", len(got))
		}
		if meta.RangeEnd != 999 || meta.ContentLength != 100 {
			t.Errorf("declared length must match the streamed body, got %+v", meta)
		}
		if int64(len(got)) != meta.ContentLength {
			t.Errorf("streamed %d bytes against declared %d", len(got), meta.ContentLength)
		}
	})

	t.Run("range starting past object end", func(t *testing.T) {
		meta, got := retrieveAll(t, svc, RetrieveParams{
			CollectionID: collection.ID,
			Key:          "doc",
			RangeHeader:  "bytes=1500-",
		})
		if len(got) != 0 || meta.ContentLength != 0 {
			t.Errorf("expected empty body, got %d bytes, meta %+v", len(got), meta)
		}
	})

	t.Run("malformed range", func(t *testing.T) {
		_, _, err := svc.Retrieve(context.Background(), RetrieveParams{
			CollectionID: collection.ID,
			Key:          "doc",
			RangeHeader:  "bytes=600-200",
		})
		if model.KindOf(err) != model.KindClientSyntax {
			t.Errorf("expected client_syntax, got %v", err)
		}
	})
}

func TestConditionalRetrieve(t *testing.T) {
	svc, _, collection := testService(t)
	archiveContent(t, svc, collection.ID, "doc", []byte("content"))

	past := time.Now().Add(-time.Hour).UTC().Format(time.RFC1123)
	future := time.Now().Add(time.Hour).UTC().Format(time.RFC1123)

	t.Run("modified since past serves content", func(t *testing.T) {
		_, got := retrieveAll(t, svc, RetrieveParams{
			CollectionID:    collection.ID,
			Key:             "doc",
			IfModifiedSince: past,
		})
		if string(got) != "content" {
			t.Errorf("expected content, got %q", got)
		}
	})

	t.Run("not modified since future", func(t *testing.T) {
		_, _, err := svc.Retrieve(context.Background(), RetrieveParams{
			CollectionID:    collection.ID,
			Key:             "doc",
			IfModifiedSince: future,
		})
		if model.KindOf(err) != model.KindNotModified {
			t.Errorf("expected not_modified, got %v", err)
		}
	})

	t.Run("unmodified since future serves content", func(t *testing.T) {
		_, got := retrieveAll(t, svc, RetrieveParams{
			CollectionID:      collection.ID,
			Key:               "doc",
			IfUnmodifiedSince: future,
		})
		if string(got) != "content" {
			t.Errorf("expected content, got %q", got)
		}
	})

	t.Run("precondition failed for past", func(t *testing.T) {
		_, _, err := svc.Retrieve(context.Background(), RetrieveParams{
			CollectionID:      collection.ID,
			Key:               "doc",
			IfUnmodifiedSince: past,
		})
		if model.KindOf(err) != model.KindPreconditionFailed {
			t.Errorf("expected precondition_failed, got %v", err)
		}
	})

	t.Run("unparsable timestamp", func(t *testing.T) {
		_, err := svc.Describe(context.Background(), RetrieveParams{
			CollectionID:    collection.ID,
			Key:             "doc",
			IfModifiedSince: "banana",
		})
		if model.KindOf(err) != model.KindClientSyntax {
			t.Errorf("expected client_syntax, got %v", err)
		}
	})
}

func TestExplicitVersionRetrieve(t *testing.T) {
	svc, _, collection := testService(t)

	first := archiveContent(t, svc, collection.ID, "doc", []byte("one"))
	archiveContent(t, svc, collection.ID, "doc", []byte("two"))

	t.Run("current version wins by default", func(t *testing.T) {
		_, got := retrieveAll(t, svc, RetrieveParams{CollectionID: collection.ID, Key: "doc"})
		if string(got) != "two" {
			t.Errorf("expected newest content, got %q", got)
		}
	})

	t.Run("explicit version", func(t *testing.T) {
		_, got := retrieveAll(t, svc, RetrieveParams{
			CollectionID: collection.ID,
			Key:          "doc",
			VersionID:    null.StringFrom(first.VersionID),
		})
		if string(got) != "one" {
			t.Errorf("expected first version content, got %q", got)
		}
	})

	t.Run("forged version id", func(t *testing.T) {
		_, _, err := svc.Retrieve(context.Background(), RetrieveParams{
			CollectionID: collection.ID,
			Key:          "doc",
			VersionID:    null.StringFrom("AAAAAAAAAAAAAAAAAAAAAA"),
		})
		if model.KindOf(err) != model.KindClientSyntax {
			t.Errorf("expected client_syntax, got %v", err)
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		_, _, err := svc.Retrieve(context.Background(), RetrieveParams{
			CollectionID: collection.ID,
			Key:          "never-stored",
		})
		if model.KindOf(err) != model.KindNotFound {
			t.Errorf("expected not_found, got %v", err)
		}
	})
}

func TestDeleteKey(t *testing.T) {
	svc, _, collection := testService(t)
	archiveContent(t, svc, collection.ID, "doc", []byte("content"))

	if err := svc.DeleteKey(context.Background(), collection.ID, "doc"); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}

	_, _, err := svc.Retrieve(context.Background(), RetrieveParams{CollectionID: collection.ID, Key: "doc"})
	if model.KindOf(err) != model.KindNotFound {
		t.Errorf("expected not_found after delete, got %v", err)
	}

	if err := svc.DeleteKey(context.Background(), collection.ID, "doc"); model.KindOf(err) != model.KindNotFound {
		t.Errorf("expected not_found on repeat delete, got %v", err)
	}
}

func TestConjoinedLifecycle(t *testing.T) {
	svc, _, collection := testService(t)
	ctx := context.Background()

	entry, err := svc.StartConjoined(ctx, collection.ID, "big.bin")
	if err != nil {
		t.Fatalf("failed to start: %v", err)
	}
	if entry.State != db.ConjoinedActive {
		t.Errorf("expected active state, got %s", entry.State)
	}

	// parts arrive out of order
	parts := map[int32][]byte{
		2: bytes.Repeat([]byte{'b'}, 300),
		1: bytes.Repeat([]byte{'a'}, 200),
		3: bytes.Repeat([]byte{'c'}, 100),
	}
	for _, n := range []int32{2, 1, 3} {
		_, err := svc.ArchiveKey(ctx, ArchiveParams{
			CollectionID:  collection.ID,
			Key:           "big.bin",
			Body:          bytes.NewReader(parts[n]),
			ConjoinedID:   null.StringFrom(entry.ConjoinedID),
			ConjoinedPart: null.Int32From(n),
		})
		if err != nil {
			t.Fatalf("failed to upload part %d: %v", n, err)
		}
	}

	t.Run("key invisible before finish", func(t *testing.T) {
		_, _, err := svc.Retrieve(ctx, RetrieveParams{CollectionID: collection.ID, Key: "big.bin"})
		if model.KindOf(err) != model.KindNotFound {
			t.Errorf("expected not_found before finish, got %v", err)
		}
	})

	t.Run("parts listing", func(t *testing.T) {
		listed, err := svc.ListConjoinedParts(ctx, collection.ID, "big.bin", entry.ConjoinedID)
		if err != nil {
			t.Fatalf("failed to list parts: %v", err)
		}
		if len(listed) != 3 {
			t.Fatalf("expected 3 parts, got %d", len(listed))
		}
		if listed[0].PartNumber != 1 || listed[0].Size != 200 {
			t.Errorf("unexpected first part %+v", listed[0])
		}
	})

	finished, err := svc.FinishConjoined(ctx, collection.ID, entry.ConjoinedID)
	if err != nil {
		t.Fatalf("failed to finish: %v", err)
	}
	if finished.State != db.ConjoinedCompleted {
		t.Errorf("expected completed state, got %s", finished.State)
	}

	t.Run("assembled object in part order", func(t *testing.T) {
		want := bytes.Join([][]byte{parts[1], parts[2], parts[3]}, nil)
		meta, got := retrieveAll(t, svc, RetrieveParams{CollectionID: collection.ID, Key: "big.bin"})
		if !bytes.Equal(got, want) {
			t.Errorf("assembled content mismatch: %d bytes, want %d", len(got), len(want))
		}
		if meta.TotalSize != 600 {
			t.Errorf("expected total size 600, got %d", meta.TotalSize)
		}
	})

	t.Run("range into assembled object", func(t *testing.T) {
		_, got := retrieveAll(t, svc, RetrieveParams{
			CollectionID: collection.ID,
			Key:          "big.bin",
			RangeHeader:  "bytes=150-349",
		})
		want := append(bytes.Repeat([]byte{'a'}, 50), bytes.Repeat([]byte{'b'}, 150)...)
		if !bytes.Equal(got, want) {
			t.Errorf("ranged assembled content mismatch, got %d bytes", len(got))
		}
	})

	t.Run("finish again conflicts", func(t *testing.T) {
		_, err := svc.FinishConjoined(ctx, collection.ID, entry.ConjoinedID)
		if model.KindOf(err) != model.KindConflict {
			t.Errorf("expected conflict, got %v", err)
		}
	})

	t.Run("part upload after finish conflicts", func(t *testing.T) {
		_, err := svc.ArchiveKey(ctx, ArchiveParams{
			CollectionID:  collection.ID,
			Key:           "big.bin",
			Body:          strings.NewReader("late"),
			ConjoinedID:   null.StringFrom(entry.ConjoinedID),
			ConjoinedPart: null.Int32From(4),
		})
		if model.KindOf(err) != model.KindConflict {
			t.Errorf("expected conflict, got %v", err)
		}
	})
}

func TestConjoinedAbort(t *testing.T) {
	svc, _, collection := testService(t)
	ctx := context.Background()

	entry, err := svc.StartConjoined(ctx, collection.ID, "doomed")
	if err != nil {
		t.Fatalf("failed to start: %v", err)
	}
	if _, err := svc.ArchiveKey(ctx, ArchiveParams{
		CollectionID:  collection.ID,
		Key:           "doomed",
		Body:          strings.NewReader("part"),
		ConjoinedID:   null.StringFrom(entry.ConjoinedID),
		ConjoinedPart: null.Int32From(1),
	}); err != nil {
		t.Fatalf("failed to upload part: %v", err)
	}

	aborted, err := svc.AbortConjoined(ctx, collection.ID, entry.ConjoinedID)
	if err != nil {
		t.Fatalf("failed to abort: %v", err)
	}
	if aborted.State != db.ConjoinedAborted {
		t.Errorf("expected aborted state, got %s", aborted.State)
	}

	if _, _, err := svc.Retrieve(ctx, RetrieveParams{CollectionID: collection.ID, Key: "doomed"}); model.KindOf(err) != model.KindNotFound {
		t.Errorf("expected not_found after abort, got %v", err)
	}

	if _, err := svc.FinishConjoined(ctx, collection.ID, entry.ConjoinedID); model.KindOf(err) != model.KindConflict {
		t.Errorf("expected conflict finishing aborted archive, got %v", err)
	}
}

func TestConjoinedDuplicatePart(t *testing.T) {
	svc, _, collection := testService(t)
	ctx := context.Background()

	entry, err := svc.StartConjoined(ctx, collection.ID, "dup")
	if err != nil {
		t.Fatalf("failed to start: %v", err)
	}
	upload := func() error {
		_, err := svc.ArchiveKey(ctx, ArchiveParams{
			CollectionID:  collection.ID,
			Key:           "dup",
			Body:          strings.NewReader("part"),
			ConjoinedID:   null.StringFrom(entry.ConjoinedID),
			ConjoinedPart: null.Int32From(1),
		})
		return err
	}
	if err := upload(); err != nil {
		t.Fatalf("first upload failed: %v", err)
	}
	if err := upload(); model.KindOf(err) != model.KindConflict {
		t.Errorf("expected conflict on duplicate part, got %v", err)
	}
}

func TestConjoinedNotFound(t *testing.T) {
	svc, _, collection := testService(t)
	ctx := context.Background()

	unknown := svc.ids.PublicID(987654)
	if _, err := svc.FinishConjoined(ctx, collection.ID, unknown); model.KindOf(err) != model.KindNotFound {
		t.Errorf("expected not_found, got %v", err)
	}

	if _, err := svc.FinishConjoined(ctx, collection.ID, "garbage!"); model.KindOf(err) != model.KindClientSyntax {
		t.Errorf("expected client_syntax for malformed id, got %v", err)
	}
}

func TestListConjoined(t *testing.T) {
	svc, _, collection := testService(t)
	ctx := context.Background()

	var entries []ConjoinedEntry
	for i := 0; i < 3; i++ {
		entry, err := svc.StartConjoined(ctx, collection.ID, "key")
		if err != nil {
			t.Fatalf("failed to start: %v", err)
		}
		entries = append(entries, entry)
	}

	page, err := svc.ListConjoined(ctx, ListConjoinedParams{
		CollectionID: collection.ID,
		MaxCount:     null.Int32From(2),
	})
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(page.Data) != 2 || !page.Truncated {
		t.Fatalf("expected truncated page of 2, got %d truncated=%v", len(page.Data), page.Truncated)
	}

	rest, err := svc.ListConjoined(ctx, ListConjoinedParams{
		CollectionID: collection.ID,
		IDMarker:     null.StringFrom(page.Data[1].ConjoinedID),
	})
	if err != nil {
		t.Fatalf("failed to list rest: %v", err)
	}
	if len(rest.Data) != 1 || rest.Truncated {
		t.Fatalf("expected final page of 1, got %d truncated=%v", len(rest.Data), rest.Truncated)
	}
	if rest.Data[0].ConjoinedID != entries[2].ConjoinedID {
		t.Errorf("expected last archive, got %+v", rest.Data[0])
	}
}

func TestListKeysService(t *testing.T) {
	svc, _, collection := testService(t)

	for _, key := range []string{"a/one", "a/two", "b/one", "top"} {
		archiveContent(t, svc, collection.ID, key, []byte(key))
	}

	t.Run("plain listing", func(t *testing.T) {
		page, err := svc.ListKeys(context.Background(), ListKeysParams{CollectionID: collection.ID})
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(page.Data) != 4 || page.Truncated {
			t.Fatalf("expected 4 keys, got %d", len(page.Data))
		}
		if page.Data[0].Key != "a/one" || page.Data[0].VersionID == "" {
			t.Errorf("unexpected first entry %+v", page.Data[0])
		}
	})

	t.Run("delimiter rolls up prefixes", func(t *testing.T) {
		page, err := svc.ListKeys(context.Background(), ListKeysParams{
			CollectionID: collection.ID,
			Markers: model.MarkerParams{
				Delimiter: null.StringFrom("/"),
			},
		})
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(page.Data) != 3 {
			t.Fatalf("expected a/, b/, top, got %+v", page.Data)
		}
		if page.Data[0].Key != "a/" || !page.Data[0].CommonPrefix {
			t.Errorf("expected rolled-up a/, got %+v", page.Data[0])
		}
		if page.Data[2].Key != "top" || page.Data[2].CommonPrefix {
			t.Errorf("expected plain top entry, got %+v", page.Data[2])
		}
	})

	t.Run("prefix with delimiter", func(t *testing.T) {
		page, err := svc.ListKeys(context.Background(), ListKeysParams{
			CollectionID: collection.ID,
			Markers: model.MarkerParams{
				Prefix:    null.StringFrom("a/"),
				Delimiter: null.StringFrom("/"),
			},
		})
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(page.Data) != 2 {
			t.Fatalf("expected a/one and a/two, got %+v", page.Data)
		}
	})

	t.Run("truncation with marker resume", func(t *testing.T) {
		page, err := svc.ListKeys(context.Background(), ListKeysParams{
			CollectionID: collection.ID,
			MaxCount:     null.Int32From(3),
		})
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(page.Data) != 3 || !page.Truncated {
			t.Fatalf("expected truncated page of 3, got %d", len(page.Data))
		}

		rest, err := svc.ListKeys(context.Background(), ListKeysParams{
			CollectionID: collection.ID,
			Markers: model.MarkerParams{
				KeyMarker: null.StringFrom(page.Data[2].Key),
			},
		})
		if err != nil {
			t.Fatalf("failed to list rest: %v", err)
		}
		if len(rest.Data) != 1 || rest.Truncated {
			t.Errorf("expected final page of 1, got %+v", rest)
		}
	})
}

func TestListKeysTrailingRollup(t *testing.T) {
	svc, _, collection := testService(t)

	// everything past the full page collapses into the final prefix entry
	for _, key := range []string{"top", "z-1", "z-2", "z-3"} {
		archiveContent(t, svc, collection.ID, key, []byte(key))
	}

	page, err := svc.ListKeys(context.Background(), ListKeysParams{
		CollectionID: collection.ID,
		Markers: model.MarkerParams{
			Delimiter: null.StringFrom("-"),
		},
		MaxCount: null.Int32From(2),
	})
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(page.Data) != 2 || page.Data[0].Key != "top" || page.Data[1].Key != "z-" {
		t.Fatalf("expected top and z-, got %+v", page.Data)
	}
	if page.Truncated {
		t.Error("no entry exists beyond the page, truncated must be false")
	}
}

func TestListVersionsService(t *testing.T) {
	svc, _, collection := testService(t)

	archiveContent(t, svc, collection.ID, "a", []byte("1"))
	second := archiveContent(t, svc, collection.ID, "a", []byte("2"))
	archiveContent(t, svc, collection.ID, "b", []byte("3"))

	page, err := svc.ListVersions(context.Background(), ListVersionsParams{CollectionID: collection.ID})
	if err != nil {
		t.Fatalf("failed to list versions: %v", err)
	}
	if len(page.Data) != 3 {
		t.Fatalf("expected 3 versions, got %d", len(page.Data))
	}
	if page.Data[1].VersionID != second.VersionID {
		t.Errorf("expected key-then-version order, got %+v", page.Data)
	}
}

func TestUsage(t *testing.T) {
	svc, acct, collection := testService(t)
	acct.report = accounting.UsageReport{CollectionID: collection.ID, BytesAdded: 42}

	report, err := svc.Usage(context.Background(), collection.ID)
	if err != nil {
		t.Fatalf("failed to get usage: %v", err)
	}
	if report.BytesAdded != 42 {
		t.Errorf("expected report passthrough, got %+v", report)
	}

	acct.err = accounting.ErrUnavailable.Fmt("down")
	if _, err := svc.Usage(context.Background(), collection.ID); model.KindOf(err) != model.KindDependencyUnavailable {
		t.Errorf("expected dependency_unavailable, got %v", err)
	}
}

func TestVerifyPassword(t *testing.T) {
	svc, _, _ := testService(t)

	digest, err := blake3.Keyed(svc.passwordKey, []byte("secret"))
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	collection := db.Collection{PasswordHash: null.StringFrom(digest)}

	if err := svc.VerifyPassword(collection, "secret"); err != nil {
		t.Errorf("expected password accepted, got %v", err)
	}
	if err := svc.VerifyPassword(collection, "wrong"); model.KindOf(err) != model.KindUnauthorized {
		t.Errorf("expected unauthorized, got %v", err)
	}
	if err := svc.VerifyPassword(db.Collection{}, "secret"); model.KindOf(err) != model.KindUnauthorized {
		t.Errorf("expected unauthorized without stored hash, got %v", err)
	}
	if err := svc.VerifyPassword(collection, ""); model.KindOf(err) != model.KindUnauthorized {
		t.Errorf("expected unauthorized for empty password, got %v", err)
	}
}
