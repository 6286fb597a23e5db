// Package graph is the gateway to the remote GraphQL data service. It sends
// exactly one request per call and classifies every failure as a transport,
// malformed-response, or semantic error.
package graph

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

const (
	defaultEndpoint = "https://graphql.fauna.com/graphql"
	defaultTimeout  = 10 * time.Second

	// Opts the schema into partialUpdateTodo and friends.
	schemaPreview = "partial-update-mutation"

	maxResponseBytes = 1 << 20
)

// Client executes parameterized operations against the data service. The
// bearer token is fixed for the lifetime of the client; there is no retrying,
// batching, or caching.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
}

// NewClient builds a gateway for the given endpoint and bearer token. An
// empty endpoint selects the hosted service. The timeout bounds each call end
// to end; callers can tighten it further per request via the context.
func NewClient(endpoint, token string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		endpoint: endpoint,
		token:    token,
		http:     &http.Client{Timeout: timeout},
	}
}

type wireRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type wireResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []ResponseError `json:"errors"`
}

// Execute posts one operation and returns the raw data payload. Variable
// values must be JSON-representable. The caller decodes the payload; Execute
// only branches on the error envelope.
func (c *Client) Execute(ctx context.Context, operation string, variables map[string]any) (json.RawMessage, error) {
	body, err := json.Marshal(wireRequest{Query: operation, Variables: variables})
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Schema-Preview", schemaPreview)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))}
	}

	var parsed wireResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &MalformedResponseError{Reason: "body is not valid JSON", Err: err}
	}
	if len(parsed.Errors) > 0 {
		first := parsed.Errors[0]
		return nil, &SemanticError{
			Message:   first.Message,
			Locations: first.Locations,
			Path:      first.Path,
			All:       parsed.Errors,
		}
	}
	if len(parsed.Data) == 0 || string(parsed.Data) == "null" {
		return nil, &MalformedResponseError{Reason: "body carries neither data nor errors"}
	}
	return parsed.Data, nil
}
