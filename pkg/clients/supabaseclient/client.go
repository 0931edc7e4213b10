package supabaseclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/supabase-community/postgrest-go"
	"go.uber.org/zap"

	"github.com/voisinsolidaire/voisin/pkg/db"
)

var _ db.Backend = (*Client)(nil)

// Client implements db.Backend over the PostgREST and auth HTTP APIs
type Client struct {
	baseURL      string
	apiKey       string
	accessToken  string
	httpClient   *http.Client
	pollInterval time.Duration
	logger       *zap.Logger
}

// NewClient creates a client for the project at baseURL using the anon key.
// pollInterval paces the notification subscriber.
func NewClient(baseURL, apiKey string, pollInterval time.Duration, logger *zap.Logger) *Client {
	if !strings.HasPrefix(baseURL, "http") {
		baseURL = "https://" + baseURL
	}

	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		pollInterval: pollInterval,
		logger:       logger,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithAccessToken returns a copy of the client that authenticates as the
// session's user, so row-level security and auth.uid() apply
func (c *Client) WithAccessToken(token string) *Client {
	clone := *c
	clone.accessToken = token
	return &clone
}

// Close releases idle connections of the auth client
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func (c *Client) bearer() string {
	if c.accessToken != "" {
		return c.accessToken
	}
	return c.apiKey
}

// rest builds a PostgREST client for one call. ClientError lives on the
// client, so calls never share one.
func (c *Client) rest() *postgrest.Client {
	return postgrest.NewClient(c.baseURL+"/rest/v1", "public", map[string]string{
		"apikey":        c.apiKey,
		"Authorization": "Bearer " + c.bearer(),
	})
}

// from starts a query on a table or view
func (c *Client) from(table string) *postgrest.QueryBuilder {
	return c.rest().From(table)
}

// execute runs a built query. The library takes no context, so ctx is only
// checked before the request goes out.
func (c *Client) execute(ctx context.Context, table string, query *postgrest.FilterBuilder) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, _, err := query.Execute()
	if err != nil {
		c.logger.Debug("Backend query failed", zap.String("table", table), zap.Error(err))
		return nil, parseRestError(err)
	}
	return data, nil
}

// rpc calls a remote procedure with named arguments
func (c *Client) rpc(ctx context.Context, name string, args map[string]any) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rest := c.rest()
	body := rest.Rpc(name, "", args)
	if rest.ClientError != nil {
		c.logger.Debug("Procedure call failed", zap.String("procedure", name), zap.Error(rest.ClientError))
		return nil, parseRestError(rest.ClientError)
	}

	data := []byte(body)
	if re, ok := procedureError(data); ok {
		c.logger.Debug("Procedure raised an error", zap.String("procedure", name), zap.String("code", re.Code))
		return nil, re.backendError(0)
	}
	return data, nil
}

// restError is the error body PostgREST returns, including errors raised by procedures
type restError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (re restError) backendError(status int) error {
	kind := db.KindForCode(re.Code)
	if kind == nil {
		kind = kindForStatus(status)
	}

	return &db.BackendError{
		Status:  status,
		Code:    re.Code,
		Message: re.Message,
		Details: re.Details,
		Hint:    re.Hint,
		Kind:    kind,
	}
}

var (
	// codedError is how the library reports a PostgREST error body
	codedError = regexp.MustCompile(`^\(([^)]*)\) (.*)$`)
	// statusError is what it reports when the body was not JSON
	statusError = regexp.MustCompile(`^(\d{3})\b`)
)

// parseRestError turns a query error back into a db.BackendError
func parseRestError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("failed to send request: %w", err)
	}

	msg := err.Error()
	if m := codedError.FindStringSubmatch(msg); m != nil {
		return restError{Code: m[1], Message: m[2]}.backendError(0)
	}
	if m := statusError.FindStringSubmatch(msg); m != nil {
		status, _ := strconv.Atoi(m[1])
		return restError{Message: msg}.backendError(status)
	}
	return fmt.Errorf("failed to query backend: %w", err)
}

// procedureError recognizes the error body PostgREST sends in place of a
// procedure result
func procedureError(data []byte) (restError, bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return restError{}, false
	}

	var re restError
	if err := json.Unmarshal(trimmed, &re); err != nil || re.Code == "" || re.Message == "" {
		return restError{}, false
	}
	return re, true
}

func kindForStatus(status int) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return db.ErrUnauthorized
	case http.StatusNotFound:
		return db.ErrNotFound
	case http.StatusConflict:
		return db.ErrAlreadyRegistered
	}
	return nil
}

// decodeOne decodes a single row from either an object or a one-element array
func decodeOne(data []byte, v any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var rows []json.RawMessage
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return fmt.Errorf("failed to decode rows: %w", err)
		}
		if len(rows) == 0 {
			return &db.BackendError{
				Status:  http.StatusNotAcceptable,
				Code:    db.CodePostgRESTNoRows,
				Message: "no rows returned",
				Kind:    db.ErrNotFound,
			}
		}
		trimmed = rows[0]
	}

	if err := json.Unmarshal(trimmed, v); err != nil {
		return fmt.Errorf("failed to decode row: %w", err)
	}
	return nil
}

// postAuth sends a JSON body to the auth service, which postgrest-go does not cover
func (c *Client) postAuth(ctx context.Context, path string, query url.Values, body any) ([]byte, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		c.logger.Debug("Auth request failed", zap.String("path", path), zap.Int("status", resp.StatusCode))
		return nil, parseAuthError(resp.StatusCode, respBody)
	}
	return respBody, nil
}
