// ============================================================================
// rowplan Workflow - optimization service client
// ============================================================================
//
// Package: internal/workflow
// File: client.go
// Function: HTTP client for the remote timing optimizer. Converts between the
//           service's JSON records and the internal types in pkg/types.
//
// Endpoints:
//   POST /api/upload     multipart "file"          -> {holes, count}
//   POST /api/optimize   {holes, rows, constraints} -> {options, metrics}
//   POST /api/export     {timing, summary}          -> {csv}
//   POST /api/validate   {holes, rows}              -> {status, errors}
//   GET  /health                                    -> {status}
//
// Failure model:
//   - no answer / unreadable answer -> wraps ErrTransport
//   - non-2xx answer                -> *ServiceError (message verbatim)
//   Calls are never retried here.
//
// Every call runs in its own span and carries the trace context plus an
// X-Request-ID header.
//
// ============================================================================

package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/ChuLiYu/rowplan/pkg/types"
)

var log = slog.Default()

// DefaultTimeout bounds a single round trip.
const DefaultTimeout = 30 * time.Second

// ArtifactName is the file name of the exported timing table.
const ArtifactName = "timing-results.csv"

const maxBody = 32 << 20

// Client talks to the optimization service.
type Client struct {
	baseURL string
	http    *http.Client
	tracer  trace.Tracer
}

// NewClient returns a client for the service at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		tracer:  otel.Tracer("github.com/ChuLiYu/rowplan/internal/workflow"),
	}
}

// BaseURL returns the service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// UploadResult is the parsed hole collection.
type UploadResult struct {
	Holes []types.Hole
	Count int
}

// OptimizeRequest is everything optimize sends.
type OptimizeRequest struct {
	Snapshot    types.Snapshot
	Constraints types.Constraints
}

// OptimizeResult holds the candidate options and the service's free-form
// summary metrics.
type OptimizeResult struct {
	Options []types.Option
	Metrics json.RawMessage
}

// Upload sends a hole file for parsing.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (UploadResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return UploadResult{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return UploadResult{}, fmt.Errorf("%w: read %s: %v", ErrTransport, filename, err)
	}
	if err := mw.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	var resp uploadResponse
	if err := c.do(ctx, OpUpload, http.MethodPost, "/api/upload", mw.FormDataContentType(), &body, &resp); err != nil {
		return UploadResult{}, err
	}
	holes := holesFromWire(resp.Holes)
	count := resp.Count
	if count == 0 {
		count = len(holes)
	}
	return UploadResult{Holes: holes, Count: count}, nil
}

// Optimize asks the service for timing options.
func (c *Client) Optimize(ctx context.Context, req OptimizeRequest) (OptimizeResult, error) {
	payload := optimizeRequest{
		Holes:       holesToWire(req.Snapshot.Holes),
		Rows:        rowsToWire(req.Snapshot.Rows),
		Constraints: constraintsToWire(req.Constraints),
	}
	var resp optimizeResponse
	if err := c.postJSON(ctx, OpOptimize, "/api/optimize", payload, &resp); err != nil {
		return OptimizeResult{}, err
	}

	options := optionsFromWire(resp.Options)
	if len(options) == 0 && len(resp.Timing) > 0 {
		options = []types.Option{{ID: "1", Timing: timingFromWire(resp.Timing)}}
	}
	return OptimizeResult{Options: options, Metrics: resp.Metrics}, nil
}

// Export submits the selected option's timing and summary and returns the
// rendered CSV text.
func (c *Client) Export(ctx context.Context, timing []types.HoleTiming, summary []types.SummaryRow) ([]byte, error) {
	payload := exportRequest{
		Timing:  timingToWire(timing),
		Summary: summaryToWire(summary),
	}
	var resp exportResponse
	if err := c.postJSON(ctx, OpExport, "/api/export", payload, &resp); err != nil {
		return nil, err
	}
	return []byte(resp.CSV), nil
}

// Validate runs the service-side pre-flight checks. An invalid layout is not
// an error: the problems are returned.
func (c *Client) Validate(ctx context.Context, snap types.Snapshot) ([]string, error) {
	payload := validateRequest{
		Holes: holesToWire(snap.Holes),
		Rows:  rowsToWire(snap.Rows),
	}
	var resp validateResponse
	err := c.postJSON(ctx, OpValidate, "/api/validate", payload, &resp)
	var se *ServiceError
	if errors.As(err, &se) && se.Status == http.StatusBadRequest && se.invalid != nil {
		return se.invalid, nil
	}
	if err != nil {
		return nil, err
	}
	return resp.Errors, nil
}

// Health returns the service's reported status.
func (c *Client) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, OpHealth, http.MethodGet, "/health", "", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

func (c *Client) postJSON(ctx context.Context, op Op, path string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%w: encode %s request: %v", ErrTransport, op, err)
	}
	return c.do(ctx, op, http.MethodPost, path, "application/json", bytes.NewReader(b), out)
}

func (c *Client) do(ctx context.Context, op Op, method, path, contentType string, body io.Reader, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, "optimizer."+string(op),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.url", c.baseURL+path),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		log.Debug("optimizer request failed", "op", op, "request_id", requestID, "error", err)
		return fmt.Errorf("%w: %s: %v", ErrTransport, op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("%w: %s: read body: %v", ErrTransport, op, err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	log.Debug("optimizer response",
		"op", op,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return serviceError(op, resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s: decode response: %v", ErrTransport, op, err)
	}
	return nil
}

func serviceError(op Op, status int, raw []byte) error {
	se := &ServiceError{Op: op, Status: status}
	var e errorResponse
	if json.Unmarshal(raw, &e) == nil {
		se.Message = e.Error
	}
	if op == OpValidate {
		var v validateResponse
		if json.Unmarshal(raw, &v) == nil && v.Status == "invalid" {
			se.invalid = v.Errors
			if se.invalid == nil {
				se.invalid = []string{}
			}
		}
	}
	return se
}
