package sdk

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client is the Cumulus gateway SDK client. The gateway exposes two
// listeners; reads go to readerURL and writes to writerURL.
type Client struct {
	readerURL  string
	writerURL  string
	password   string
	httpClient *http.Client
}

// NewClient creates a new SDK client, e.g.
// NewClient("http://localhost:8080", "http://localhost:8081").
func NewClient(readerURL, writerURL string) *Client {
	return &Client{
		readerURL: readerURL,
		writerURL: writerURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewClientWithHTTPClient creates an SDK client with a custom HTTP client
func NewClientWithHTTPClient(readerURL, writerURL string, httpClient *http.Client) *Client {
	return &Client{
		readerURL:  readerURL,
		writerURL:  writerURL,
		httpClient: httpClient,
	}
}

// WithPassword returns a copy of the client presenting a collection
// password on every request.
func (c *Client) WithPassword(password string) *Client {
	clone := *c
	clone.password = password
	return &clone
}

// ArchiveResult is the server's acknowledgment of a stored object or part.
type ArchiveResult struct {
	Key       string `json:"key"`
	VersionID string `json:"version_identifier"`
	Size      int64  `json:"size"`
}

// Archive stores body as a new version of key in the collection.
func (c *Client) Archive(collection, key string, body io.Reader) (*ArchiveResult, error) {
	var result ArchiveResult
	err := c.doPOST(c.writerURL+dataPath(collection, key), nil, body, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ArchivePart uploads one part of an open conjoined archive. Parts number
// from 1 and may arrive in any order.
func (c *Client) ArchivePart(collection, key, conjoinedID string, part int32, body io.Reader) (*ArchiveResult, error) {
	query := url.Values{}
	query.Set("conjoined_identifier", conjoinedID)
	query.Set("conjoined_part", strconv.FormatInt(int64(part), 10))

	var result ArchiveResult
	err := c.doPOST(c.writerURL+dataPath(collection, key), query, body, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Delete tombstones every live version of key.
func (c *Client) Delete(collection, key string) error {
	query := url.Values{}
	query.Set("action", "delete")
	return c.doPOST(c.writerURL+dataPath(collection, key), query, nil, nil)
}

// RetrieveOptions narrow a retrieval to one version or byte range. Nil
// fields mean current version and full content; RangeEnd is inclusive and
// nil means to end of object.
type RetrieveOptions struct {
	VersionID  *string
	RangeStart *int64
	RangeEnd   *int64
}

// ObjectInfo describes the object an opened retrieval will deliver.
type ObjectInfo struct {
	VersionID     string
	ContentLength int64
	ContentType   string
	LastModified  time.Time
}

// Retrieve opens a content stream for key. The caller owns the returned
// reader and must close it.
func (c *Client) Retrieve(collection, key string, opts *RetrieveOptions) (io.ReadCloser, *ObjectInfo, error) {
	httpReq, err := http.NewRequest(http.MethodGet, c.readerURL+dataPath(collection, key), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	c.applyRetrieveOptions(httpReq, opts)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, nil, fmt.Errorf("send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		defer resp.Body.Close()
		return nil, nil, decodeFailure(resp)
	}

	info := &ObjectInfo{
		VersionID:     resp.Header.Get("X-Version-Identifier"),
		ContentLength: resp.ContentLength,
		ContentType:   resp.Header.Get("Content-Type"),
	}
	if t, err := http.ParseTime(resp.Header.Get("Last-Modified")); err == nil {
		info.LastModified = t
	}
	return resp.Body, info, nil
}

// Metadata is the JSON form of a version description.
type Metadata struct {
	Key           string    `json:"key"`
	VersionID     string    `json:"version_identifier"`
	TotalSize     int64     `json:"total_size"`
	ContentLength int64     `json:"content_length"`
	LastModified  time.Time `json:"last_modified"`
	ContentType   string    `json:"content_type"`
}

// Describe fetches a version's metadata without its content.
func (c *Client) Describe(collection, key string, opts *RetrieveOptions) (*Metadata, error) {
	query := url.Values{}
	query.Set("action", "meta")
	if opts != nil && opts.VersionID != nil {
		query.Set("version_identifier", *opts.VersionID)
	}

	var meta Metadata
	if err := c.doGET(c.readerURL+dataPath(collection, key), query, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (c *Client) applyRetrieveOptions(req *http.Request, opts *RetrieveOptions) {
	if opts == nil {
		return
	}
	if opts.VersionID != nil {
		q := req.URL.Query()
		q.Set("version_identifier", *opts.VersionID)
		req.URL.RawQuery = q.Encode()
	}
	if opts.RangeStart != nil {
		spec := fmt.Sprintf("bytes=%d-", *opts.RangeStart)
		if opts.RangeEnd != nil {
			spec = fmt.Sprintf("bytes=%d-%d", *opts.RangeStart, *opts.RangeEnd)
		}
		req.Header.Set("Range", spec)
	}
}

// ConjoinedEntry is one conjoined archive as the server reports it.
type ConjoinedEntry struct {
	ConjoinedID     string     `json:"conjoined_identifier"`
	Key             string     `json:"key"`
	State           string     `json:"state"`
	CreateTimestamp time.Time  `json:"create_timestamp"`
	CompleteTime    *time.Time `json:"complete_timestamp,omitempty"`
	AbortTime       *time.Time `json:"abort_timestamp,omitempty"`
}

// StartConjoined opens a conjoined archive for key and returns its
// identifier for subsequent part uploads.
func (c *Client) StartConjoined(collection, key string) (*ConjoinedEntry, error) {
	query := url.Values{}
	query.Set("action", "start")

	var entry ConjoinedEntry
	err := c.doPOST(c.writerURL+conjoinedPath(collection, key), query, nil, &entry)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// FinishConjoined completes an archive, making the assembled object the
// key's live version.
func (c *Client) FinishConjoined(collection, key, conjoinedID string) (*ConjoinedEntry, error) {
	return c.terminateConjoined(collection, key, conjoinedID, "finish")
}

// AbortConjoined abandons an archive and discards its parts.
func (c *Client) AbortConjoined(collection, key, conjoinedID string) (*ConjoinedEntry, error) {
	return c.terminateConjoined(collection, key, conjoinedID, "abort")
}

func (c *Client) terminateConjoined(collection, key, conjoinedID, action string) (*ConjoinedEntry, error) {
	query := url.Values{}
	query.Set("action", action)
	query.Set("conjoined_identifier", conjoinedID)

	var entry ConjoinedEntry
	err := c.doPOST(c.writerURL+conjoinedPath(collection, key), query, nil, &entry)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// KeyPage is one page of a key listing.
type KeyPage struct {
	Data []struct {
		Key          string    `json:"key"`
		VersionID    string    `json:"version_identifier"`
		Timestamp    time.Time `json:"timestamp"`
		FileSize     int64     `json:"file_size"`
		CommonPrefix bool      `json:"common_prefix"`
	} `json:"data"`
	Truncated bool `json:"truncated"`
}

// ListKeys pages through the distinct keys of a collection.
func (c *Client) ListKeys(collection string, query url.Values) (*KeyPage, error) {
	var page KeyPage
	if err := c.doGET(c.readerURL+"/"+url.PathEscape(collection)+"/data", query, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// UsageReport is a collection's running byte counters.
type UsageReport struct {
	CollectionID   int64 `json:"collection_id"`
	BytesAdded     int64 `json:"bytes_added"`
	BytesRetrieved int64 `json:"bytes_retrieved"`
	BytesDeleted   int64 `json:"bytes_deleted"`
}

// Usage fetches a collection's usage counters.
func (c *Client) Usage(collection string) (*UsageReport, error) {
	var report UsageReport
	if err := c.doGET(c.readerURL+"/"+url.PathEscape(collection)+"/usage", nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func dataPath(collection, key string) string {
	return "/" + url.PathEscape(collection) + "/data/" + url.PathEscape(key)
}

func conjoinedPath(collection, key string) string {
	return "/" + url.PathEscape(collection) + "/conjoined/" + url.PathEscape(key)
}
