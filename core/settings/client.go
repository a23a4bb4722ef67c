package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultBaseURL = "http://localhost:8000"

var ErrStatus = errors.New("unexpected settings status")

// Client reads and writes the backend's /api/settings resource.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type ClientOption func(*Client)

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = client }
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		)},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get fetches the backend settings. Keys the backend omits keep their
// default values and unknown keys are ignored.
func (c *Client) Get(ctx context.Context) (Settings, error) {
	ctx, span := tracer.Start(ctx, "settings get")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/settings", nil)
	if err != nil {
		err = fmt.Errorf("error creating HTTP request: %w", err)
		span.RecordError(err)
		return Settings{}, err
	}
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return Settings{}, err
	}

	s := Default()
	if err := json.Unmarshal(body, &s); err != nil {
		err = fmt.Errorf("error decoding settings: %w", err)
		span.RecordError(err)
		return Settings{}, err
	}
	return s, nil
}

// Update validates s and posts it to the backend.
func (c *Client) Update(ctx context.Context, s Settings) error {
	ctx, span := tracer.Start(ctx, "settings update")
	defer span.End()

	if err := s.Validate(); err != nil {
		span.RecordError(err)
		return err
	}

	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("error marshalling settings: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/settings", bytes.NewReader(payload))
	if err != nil {
		err = fmt.Errorf("error creating HTTP request: %w", err)
		span.RecordError(err)
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	if _, err := c.do(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return err
	}

	logger.InfoContext(ctx, "settings updated", "voice", s.TTSVoiceName, "vad_long_ms", s.VADLongMS, "sentence_mode", s.SentenceMode)
	return nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	trace.SpanFromContext(req.Context()).SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d %s", ErrStatus, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
