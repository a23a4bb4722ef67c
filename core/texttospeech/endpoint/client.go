package endpoint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const DefaultBaseURL = "http://localhost:8000"

// ErrStatus is returned when the endpoint answers with a non-2xx status.
var ErrStatus = errors.New("unexpected tts status")

// Client fetches prompt audio rendered by the backend for a segment index.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.httpClient = client }
}

func NewClient(baseURL string, opts ...Option) *Client {
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

// Fetch performs GET {base}/api/tts?seg={index}.
func (c *Client) Fetch(ctx context.Context, index int) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "tts endpoint fetch")
	defer span.End()
	span.SetAttributes(attribute.Int("segment.index", index))

	query := url.Values{}
	query.Set("seg", strconv.Itoa(index))
	endpoint := c.baseURL + "/api/tts?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		err = fmt.Errorf("error creating HTTP request: %w", err)
		span.RecordError(err)
		return nil, err
	}
	req.Header.Set("Accept", "audio/*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("error sending request: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("%w: %d %s", ErrStatus, resp.StatusCode, strings.TrimSpace(string(body)))
		span.RecordError(err)
		span.SetStatus(codes.Error, "non-2xx response")
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("error reading audio body: %w", err)
		span.RecordError(err)
		return nil, err
	}

	logger.DebugContext(ctx, "fetched prompt audio", "segment", index, "bytes", len(data), "content_type", resp.Header.Get("Content-Type"))
	return data, nil
}
