package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/leofalp/chatmux/providers/observability"
)

// maxResponseBodySize is the maximum response body size (10 MB). Enforced via
// io.LimitReader to prevent unbounded memory allocation from rogue responses.
const maxResponseBodySize int64 = 10 * 1024 * 1024

// HeaderOption is an extra request header applied after the defaults.
type HeaderOption struct {
	Key   string
	Value string
}

// HTTPError is returned for every non-2xx response. Body holds at most
// maxResponseBodySize bytes of the response.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("non-2xx status %d: %s", e.StatusCode, TruncateString(e.Body, 0))
}

// CloseWithLog closes closer and logs, rather than returns, a close failure so
// it never overrides the primary error of the caller.
func CloseWithLog(closer io.Closer) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		slog.Warn("failed to close response body", "error", err.Error())
	}
}

// JoinURL appends path to base with exactly one slash between them.
func JoinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// DoJSON performs an HTTP request with an optional JSON body and decodes the
// JSON response into OutputStruct. A nil body sends no payload. An empty
// response body (e.g. 204) yields a zero OutputStruct rather than an error.
//
// Error Handling Strategy:
//   - Context errors (timeout, cancellation) are returned wrapped
//   - Non-2xx statuses return an *HTTPError carrying the response body
//   - Response body close errors are logged but don't override primary errors
//   - JSON parsing errors include a response preview for debugging
func DoJSON[OutputStruct any](ctx context.Context, client *http.Client, method, url, apiKey string, body any, headers ...HeaderOption) (*http.Response, *OutputStruct, error) {
	var reader io.Reader
	bodySize := 0
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("error marshaling body: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
		bodySize = len(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("error creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	return do[OutputStruct](ctx, client, req, apiKey, bodySize, headers)
}

// MultipartFile describes the file part of a multipart upload.
type MultipartFile struct {
	Field       string
	Filename    string
	ContentType string
	Reader      io.Reader
}

// DoMultipart uploads file together with the plain form fields and decodes the
// JSON response into OutputStruct.
func DoMultipart[OutputStruct any](ctx context.Context, client *http.Client, url, apiKey string, fields map[string]string, file MultipartFile, headers ...HeaderOption) (*http.Response, *OutputStruct, error) {
	var payload bytes.Buffer
	writer := multipart.NewWriter(&payload)

	partHeader := make(textproto.MIMEHeader)
	partHeader.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.Field, file.Filename))
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	partHeader.Set("Content-Type", contentType)

	part, err := writer.CreatePart(partHeader)
	if err != nil {
		return nil, nil, fmt.Errorf("error creating file part: %w", err)
	}
	if _, err = io.Copy(part, file.Reader); err != nil {
		return nil, nil, fmt.Errorf("error writing file part: %w", err)
	}
	for key, value := range fields {
		if err = writer.WriteField(key, value); err != nil {
			return nil, nil, fmt.Errorf("error writing field %s: %w", key, err)
		}
	}
	if err = writer.Close(); err != nil {
		return nil, nil, fmt.Errorf("error closing multipart writer: %w", err)
	}

	bodySize := payload.Len()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &payload)
	if err != nil {
		return nil, nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return do[OutputStruct](ctx, client, req, apiKey, bodySize, headers)
}

func do[OutputStruct any](ctx context.Context, client *http.Client, req *http.Request, apiKey string, bodySize int, headers []HeaderOption) (*http.Response, *OutputStruct, error) {
	span := observability.SpanFromContext(ctx)

	httpClient := client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	for _, header := range headers {
		req.Header.Set(header.Key, header.Value)
	}

	if span != nil {
		span.AddEvent(observability.EventHTTPRequestPrepared,
			observability.String(observability.AttrHTTPMethod, req.Method),
			observability.String(observability.AttrHTTPURL, req.URL.String()),
			observability.Int(observability.AttrHTTPRequestBodySize, bodySize),
		)
	}

	requestStart := time.Now()
	res, err := httpClient.Do(req)
	requestDuration := time.Since(requestStart)
	if err != nil {
		if span != nil {
			span.AddEvent(observability.EventHTTPRequestError,
				observability.Error(err),
				observability.Duration("http.request.duration", requestDuration),
			)
		}
		return res, nil, fmt.Errorf("error sending request: %w", err)
	}
	defer CloseWithLog(res.Body)

	respBody, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBodySize))
	if err != nil {
		return res, nil, fmt.Errorf("error reading response body: %w", err)
	}

	if span != nil {
		span.AddEvent(observability.EventHTTPResponseReceived,
			observability.Int(observability.AttrHTTPStatusCode, res.StatusCode),
			observability.Int(observability.AttrHTTPResponseBodySize, len(respBody)),
			observability.Duration("http.request.duration", requestDuration),
		)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return res, nil, &HTTPError{
			Method:     req.Method,
			URL:        req.URL.String(),
			StatusCode: res.StatusCode,
			Body:       string(respBody),
		}
	}

	var resStruct OutputStruct
	if len(bytes.TrimSpace(respBody)) == 0 {
		return res, &resStruct, nil
	}
	if err = json.Unmarshal(respBody, &resStruct); err != nil {
		return res, nil, fmt.Errorf("error unmarshaling response body (status %d): %w\nResponse preview: %s", res.StatusCode, err, TruncateString(string(respBody), 500))
	}

	return res, &resStruct, nil
}
