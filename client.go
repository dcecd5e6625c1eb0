package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultHTTPTimeout = 15 * time.Second
	maxErrorBodyWidth  = 200
)

var errMissingBaseURL = errors.New("api base URL is not configured; set api.base_url or QA_CONSOLE_API_BASE_URL")

// apiError is a non-2xx backend response.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend %d", e.Status)
	}
	return fmt.Sprintf("backend %d: %s", e.Status, e.Message)
}

type apiErrorEnvelope struct {
	Detail string `json:"detail"`
	Error  string `json:"error"`
}

// httpBackend talks to the support backend's REST API.
type httpBackend struct {
	baseURL string
	token   string
	http    *http.Client
	log     zerolog.Logger
}

func newHTTPBackend(cfg apiConfig, log zerolog.Logger) (*httpBackend, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, errMissingBaseURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("parse api base URL %q: %w", base, err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &httpBackend{
		baseURL: base,
		token:   strings.TrimSpace(cfg.Token),
		http:    &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "http_backend").Logger(),
	}, nil
}

func (c *httpBackend) ListConversations(ctx context.Context, userID recordID) (PageResult[Conversation], error) {
	query := url.Values{}
	if userID != "" {
		query.Set("user", userID.String())
	}
	body, err := c.get(ctx, query, "conversations")
	if err != nil {
		return PageResult[Conversation]{}, fmt.Errorf("list conversations: %w", err)
	}
	page, err := decodePage[Conversation](body)
	if err != nil {
		return PageResult[Conversation]{}, fmt.Errorf("list conversations: %w", err)
	}
	return page, nil
}

func (c *httpBackend) ListMessages(ctx context.Context, conversationID recordID) (PageResult[Message], error) {
	body, err := c.get(ctx, nil, "conversations", url.PathEscape(conversationID.String()), "messages")
	if err != nil {
		return PageResult[Message]{}, fmt.Errorf("list messages for %s: %w", conversationID, err)
	}
	page, err := decodePage[Message](body)
	if err != nil {
		return PageResult[Message]{}, fmt.Errorf("list messages for %s: %w", conversationID, err)
	}
	return page, nil
}

func (c *httpBackend) ListQARecords(ctx context.Context, q QueryDescriptor) (PageResult[QARecord], error) {
	body, err := c.get(ctx, q.Values(), "qa-data")
	if err != nil {
		return PageResult[QARecord]{}, fmt.Errorf("list qa records: %w", err)
	}
	page, err := decodePage[QARecord](body)
	if err != nil {
		return PageResult[QARecord]{}, fmt.Errorf("list qa records: %w", err)
	}
	return page, nil
}

func (c *httpBackend) get(ctx context.Context, query url.Values, segments ...string) ([]byte, error) {
	endpoint, err := url.JoinPath(c.baseURL, segments...)
	if err != nil {
		return nil, fmt.Errorf("build URL: %w", err)
	}
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call backend: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	c.log.Debug().
		Str("request_id", requestID).
		Str("url", endpoint).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(started)).
		Msg("backend request")

	if resp.StatusCode >= 300 {
		apiErr := &apiError{Status: resp.StatusCode}
		var envelope apiErrorEnvelope
		if json.Unmarshal(body, &envelope) == nil {
			apiErr.Message = strings.TrimSpace(envelope.Detail + " " + envelope.Error)
		}
		if apiErr.Message == "" {
			apiErr.Message = fitWidth(oneLine(string(body)), maxErrorBodyWidth)
		}
		return nil, apiErr
	}
	return body, nil
}
