package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	// DefaultCallTimeout bounds a single classifier round-trip.
	DefaultCallTimeout = 30 * time.Second
	// DefaultMaxResponseBytes caps the classifier response body read into memory.
	DefaultMaxResponseBytes = 16 << 20

	// InputPartName carries the asset bytes in multipart requests.
	InputPartName = "infile"
	// ParamsPartName carries the JSON parameter block in multipart requests.
	ParamsPartName = "contentAnalyzerRequests"

	correlationHeader = "x-request-id"
	cacheControl      = "no-cache,no-cache"
)

// Invoker executes classifier calls.
type Invoker struct {
	client   *resty.Client
	timeout  time.Duration
	maxBytes int64
}

// Option customizes the invoker.
type Option func(*Invoker)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(i *Invoker) {
		if client != nil {
			i.client = resty.NewWithClient(client)
		}
	}
}

// WithCallTimeout overrides the per-call timeout.
func WithCallTimeout(timeout time.Duration) Option {
	return func(i *Invoker) {
		if timeout > 0 {
			i.timeout = timeout
		}
	}
}

// WithMaxResponseBytes overrides the response body cap.
func WithMaxResponseBytes(limit int64) Option {
	return func(i *Invoker) {
		if limit > 0 {
			i.maxBytes = limit
		}
	}
}

// NewInvoker constructs an invoker.
func NewInvoker(opts ...Option) *Invoker {
	inv := &Invoker{
		client:   resty.New(),
		timeout:  DefaultCallTimeout,
		maxBytes: DefaultMaxResponseBytes,
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

type assetRef struct {
	Type  string `json:"type"`
	Asset string `json:"asset"`
}

type jsonRequest struct {
	Threshold float64    `json:"threshold"`
	TopN      int        `json:"top_n"`
	Assets    []assetRef `json:"assets"`
}

type analysisParams struct {
	Operation   string  `json:"operation"`
	InputPart   string  `json:"input_part"`
	InputFormat string  `json:"input_format"`
	OutputPart  string  `json:"output_part"`
	Threshold   float64 `json:"threshold"`
	TopN        int     `json:"top_n"`
}

type vendorError struct {
	Message      string `json:"message"`
	ErrorMessage string `json:"error_message"`
	Title        string `json:"title"`
	Error        any    `json:"error"`
}

// Invoke performs exactly one call to the target.
func (i *Invoker) Invoke(ctx context.Context, target Target, req Request, creds Credentials) (RawResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	r := i.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+creds.Token).
		SetHeader("x-api-key", creds.APIKey).
		SetHeader("x-gw-ims-org-id", creds.OrgID).
		SetHeader("cache-control", cacheControl).
		SetDoNotParseResponse(true)

	if err := attachBody(r, req); err != nil {
		return RawResponse{}, &CallError{ClassifierID: target.ID, Err: err}
	}

	resp, err := r.Post(target.URL())
	if err != nil {
		return RawResponse{}, &CallError{ClassifierID: target.ID, Err: err}
	}

	raw := RawResponse{
		StatusCode: resp.StatusCode(),
		Header:     resp.Header(),
	}
	raw.Body, err = i.readBody(resp.RawBody())
	if err != nil {
		return raw, &CallError{
			ClassifierID:  target.ID,
			StatusCode:    raw.StatusCode,
			CorrelationID: raw.Header.Get(correlationHeader),
			Err:           err,
		}
	}
	if raw.StatusCode < 200 || raw.StatusCode > 299 {
		return raw, &CallError{
			ClassifierID:  target.ID,
			StatusCode:    raw.StatusCode,
			CorrelationID: raw.Header.Get(correlationHeader),
			VendorMessage: vendorMessage(raw.Body),
		}
	}
	return raw, nil
}

var errResponseTooLarge = errors.New("response body exceeds size limit")

// readBody drains at most maxBytes of the response body and closes it.
func (i *Invoker) readBody(body io.ReadCloser) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, i.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if int64(len(data)) > i.maxBytes {
		return nil, fmt.Errorf("%w of %d bytes", errResponseTooLarge, i.maxBytes)
	}
	return data, nil
}

// CorrelationHeader returns the correlation id of a raw response.
func (r RawResponse) CorrelationHeader() string {
	if r.Header == nil {
		return ""
	}
	return r.Header.Get(correlationHeader)
}

func attachBody(r *resty.Request, req Request) error {
	switch req.Encoding {
	case EncodingMultipart:
		if len(req.Asset) == 0 {
			return fmt.Errorf("multipart request without asset bytes")
		}
		params, err := json.Marshal(analysisParams{
			Operation:   req.Operation,
			InputPart:   InputPartName,
			InputFormat: req.ContentType,
			OutputPart:  "result",
			Threshold:   req.Threshold,
			TopN:        req.TopN,
		})
		if err != nil {
			return fmt.Errorf("encode parameters: %w", err)
		}
		name := req.AssetName
		if name == "" {
			name = "asset"
		}
		contentType := req.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		r.SetMultipartFormData(map[string]string{ParamsPartName: string(params)})
		r.SetMultipartField(InputPartName, name, contentType, bytes.NewReader(req.Asset))
		return nil
	default:
		if strings.TrimSpace(req.AssetURL) == "" {
			return fmt.Errorf("json request without asset url")
		}
		body, err := json.Marshal(jsonRequest{
			Threshold: req.Threshold,
			TopN:      req.TopN,
			Assets:    []assetRef{{Type: "url", Asset: req.AssetURL}},
		})
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		r.SetHeader("Content-Type", "application/json")
		r.SetBody(body)
		return nil
	}
}

func vendorMessage(body []byte) string {
	var parsed vendorError
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	for _, candidate := range []string{parsed.Message, parsed.ErrorMessage, parsed.Title} {
		if candidate = strings.TrimSpace(candidate); candidate != "" {
			return candidate
		}
	}
	switch v := parsed.Error.(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		if msg, ok := v["message"].(string); ok {
			return strings.TrimSpace(msg)
		}
	}
	return ""
}
