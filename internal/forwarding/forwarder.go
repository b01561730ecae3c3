// Package forwarding issues the single bounded outbound POST that delivers
// an admitted, routed document to its destination.
package forwarding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// OutcomeKind classifies the terminal result of a forward attempt.
type OutcomeKind string

const (
	OutcomeOK              OutcomeKind = "ok"
	OutcomeTimeout         OutcomeKind = "timeout"
	OutcomeConnectionError OutcomeKind = "connection_error"
	OutcomeBadResponse     OutcomeKind = "bad_response"
)

// Outcome is the result of one Forward call.
type Outcome struct {
	Kind       OutcomeKind
	StatusCode int
	Content    interface{} // parsed JSON, or the raw string if unparseable
	Reason     string
	Elapsed    time.Duration
}

// correlationHeaders are propagated verbatim from the inbound request to
// the outbound one, in addition to the minted request ID.
var correlationHeaders = []string{"X-Request-Id", "X-Correlation-Id", "X-Trace-Id"}

// Forwarder issues exactly one bounded POST per call over a shared,
// pooled transport.
type Forwarder struct {
	client *http.Client
}

// NewForwarder builds a Forwarder with a pooled transport sized for a
// moderate number of concurrent outbound calls. Per-call timeouts are
// supplied to Forward, not baked into the client.
func NewForwarder() *Forwarder {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Forwarder{client: &http.Client{Transport: transport}}
}

// Forward sends body to destURL as a single bounded POST, propagating
// requestID as X-Request-ID and any correlation headers present on
// inboundHeaders. timeout bounds connection establishment through
// response completion.
func (f *Forwarder) Forward(ctx context.Context, destURL string, body []byte, requestID string, inboundHeaders http.Header, timeout time.Duration) Outcome {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, destURL, bytes.NewReader(body))
	if err != nil {
		return Outcome{Kind: OutcomeConnectionError, Reason: err.Error(), Elapsed: time.Since(start)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	for _, h := range correlationHeaders {
		if v := inboundHeaders.Get(h); v != "" {
			req.Header.Add(h, v)
		}
	}

	resp, err := f.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return classifyTransportError(err, elapsed)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Outcome{Kind: OutcomeConnectionError, Reason: err.Error(), Elapsed: time.Since(start)}
	}

	return Outcome{
		Kind:       OutcomeOK,
		StatusCode: resp.StatusCode,
		Content:    decodeBody(resp.Header.Get("Content-Type"), raw),
		Elapsed:    elapsed,
	}
}

// decodeBody returns the parsed JSON value when the body parses as JSON,
// otherwise the raw string — regardless of whether Content-Type claims
// JSON, per the recommended handling of an absent/mismatched header.
func decodeBody(contentType string, raw []byte) interface{} {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return ""
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err == nil {
		return v
	}
	return string(raw)
}

func classifyTransportError(err error, elapsed time.Duration) Outcome {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Outcome{Kind: OutcomeTimeout, Reason: err.Error(), Elapsed: elapsed}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Outcome{Kind: OutcomeTimeout, Reason: err.Error(), Elapsed: elapsed}
	}
	return Outcome{Kind: OutcomeConnectionError, Reason: err.Error(), Elapsed: elapsed}
}
