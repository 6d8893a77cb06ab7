package nodes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/flowscript/orchestrator/sdk"
)

// Responses larger than this are truncated when read back into state.
const maxResponseBytes = 10 << 20

const defaultRequestTimeout = 30 * time.Second

// httpRequestNode performs an outbound HTTP call. Transport failures
// and guard rejections route to the error edge; any HTTP response,
// whatever its status code, routes to success with the status in the
// payload.
type httpRequestNode struct {
	client *http.Client
	guard  *urlGuard
}

func (n *httpRequestNode) Metadata() sdk.Metadata {
	return sdk.Metadata{
		Name:        "httpRequest",
		Description: "Calls an external HTTP endpoint",
		Type:        sdk.TypeAction,
		AIHints: map[string]interface{}{
			"example": map[string]interface{}{
				"url":    "https://api.example.com/orders",
				"method": "POST",
				"body":   map[string]interface{}{"id": "{{orderId}}"},
			},
		},
		ExpectedEdges: []string{"success", "error"},
	}
}

func (n *httpRequestNode) Execute(ctx context.Context, ec *sdk.ExecutionContext) (*sdk.Result, error) {
	rawURL, ok := sdk.StringValue(ec.Config, "url")
	if !ok || rawURL == "" {
		return nil, fmt.Errorf("httpRequest requires a url")
	}
	if err := n.guard.validate(rawURL); err != nil {
		return errorEdge(fmt.Errorf("request blocked: %w", err)), nil
	}

	method, _ := sdk.StringValue(ec.Config, "method")
	if method == "" {
		method = http.MethodGet
	}
	method = strings.ToUpper(method)

	body, contentType, err := requestBody(ec.Config["body"])
	if err != nil {
		return errorEdge(err), nil
	}

	timeout, ok := sdk.DurationMS(ec.Config, "timeoutMs")
	if !ok || timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, rawURL, body)
	if err != nil {
		return errorEdge(fmt.Errorf("failed to build request: %w", err)), nil
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if headers, ok := sdk.MapValue(ec.Config, "headers"); ok {
		for name, value := range headers {
			req.Header.Set(name, fmt.Sprint(value))
		}
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return errorEdge(fmt.Errorf("request failed: %w", err)), nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return errorEdge(fmt.Errorf("failed to read response: %w", err)), nil
	}

	return sdk.Success(map[string]interface{}{
		"status":  resp.StatusCode,
		"body":    decodeBody(resp.Header.Get("Content-Type"), raw),
		"headers": flattenHeaders(resp.Header),
	}), nil
}

func errorEdge(err error) *sdk.Result {
	return sdk.NewResult().StaticEdge("error", map[string]interface{}{
		"error": err.Error(),
	})
}

// requestBody renders the configured body: strings go out verbatim,
// maps and sequences are marshaled as JSON with a matching content
// type.
func requestBody(v interface{}) (io.Reader, string, error) {
	switch body := v.(type) {
	case nil:
		return nil, "", nil
	case string:
		return strings.NewReader(body), "", nil
	case map[string]interface{}, []interface{}:
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, "", fmt.Errorf("failed to marshal request body: %w", err)
		}
		return bytes.NewReader(encoded), "application/json", nil
	default:
		return strings.NewReader(fmt.Sprint(body)), "", nil
	}
}

// decodeBody parses JSON responses into structured data and keeps
// everything else as a string.
func decodeBody(contentType string, raw []byte) interface{} {
	if strings.Contains(contentType, "application/json") {
		var decoded interface{}
		if err := json.Unmarshal(raw, &decoded); err == nil {
			return decoded
		}
	}
	return string(raw)
}

func flattenHeaders(h http.Header) map[string]interface{} {
	out := make(map[string]interface{}, len(h))
	for name, values := range h {
		if len(values) > 0 {
			out[name] = values[0]
		}
	}
	return out
}
