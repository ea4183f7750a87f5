package invoke

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultHTTPTimeout = 30 * time.Second

// maxBodySize caps how much of a response body is inspected.
const maxBodySize = 1 << 20

// HTTPInvoker posts payloads to a function URL.
type HTTPInvoker struct {
	client *http.Client
}

func NewHTTPInvoker(client *http.Client) *HTTPInvoker {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &HTTPInvoker{client: client}
}

func (h *HTTPInvoker) Invoke(ctx context.Context, url string, body string) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return Response{StatusCode: resp.StatusCode}, fmt.Errorf("failed to read response: %w", err)
	}

	return Response{
		StatusCode: resp.StatusCode,
		Problem:    inspectBody(raw),
	}, nil
}

// inspectBody looks for the error fields Lambda runtimes set. A body
// without a data field is a problem too.
func inspectBody(raw []byte) string {
	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil {
		return fmt.Sprintf("response is not a JSON object: %s", truncate(raw))
	}

	for _, key := range []string{"error", "errorMessage", "errorType"} {
		if v, ok := body[key]; ok && !isNull(v) {
			return fmt.Sprintf("%s: %s", key, truncate(v))
		}
	}

	if v, ok := body["data"]; !ok || isNull(v) {
		return "response has no data"
	}
	return ""
}

func isNull(v json.RawMessage) bool {
	return len(bytes.TrimSpace(v)) == 0 || bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

func truncate(b []byte) string {
	const limit = 200
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
