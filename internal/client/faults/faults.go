// Package faults pushes failure events to the external fault-tracking
// collaborator. Every unexpected internal failure is recorded here before it
// propagates.
package faults

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
)

type Reporter interface {
	// Exception records an unexpected failure with its class and message.
	Exception(class, message string)
}

type event struct {
	Source    string `json:"source"`
	Class     string `json:"class"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// HTTPReporter pushes fault events to a tracking endpoint. Delivery is
// best-effort: a failure to report must never mask the original fault.
type HTTPReporter struct {
	source     string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

func NewHTTPReporter(source, baseURL string, timeout time.Duration) *HTTPReporter {
	return &HTTPReporter{
		source:  source,
		baseURL: baseURL,
		timeout: timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (r *HTTPReporter) Exception(class, message string) {
	body, err := sonic.Marshal(event{
		Source:    r.source,
		Class:     class,
		Message:   message,
		Timestamp: time.Now().UnixNano(),
	})
	if err != nil {
		slog.Error("failed to encode fault event", "class", class, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.baseURL+"/events", bytes.NewReader(body))
	if err != nil {
		slog.Error("failed to build fault event request", "class", class, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		slog.Error("failed to push fault event", "class", class, "error", err)
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// LogReporter reports faults to the process log only. Used when no tracking
// endpoint is configured, and in tests.
type LogReporter struct{}

func (LogReporter) Exception(class, message string) {
	slog.Error("unexpected failure", "class", class, "message", message)
}
