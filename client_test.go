package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"unicode/utf8"
)

func newTestHTTPBackend(t *testing.T, fn roundTripFunc) *httpBackend {
	t.Helper()
	backend, err := newHTTPBackend(apiConfig{BaseURL: "https://support.example.com/api/", Token: "secret"}, testLogger())
	if err != nil {
		t.Fatalf("new http backend: %v", err)
	}
	backend.http = &http.Client{Transport: fn}
	return backend
}

func TestHTTPBackendListQARecordsSendsFiltersAndHeaders(t *testing.T) {
	t.Parallel()

	backend := newTestHTTPBackend(t, func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/api/qa-data" {
			t.Fatalf("unexpected path %q", req.URL.Path)
		}
		query := req.URL.Query()
		if query.Get("page") != "2" || query.Get("page_size") != "10" || query.Get("search") != "refund" {
			t.Fatalf("unexpected query %q", req.URL.RawQuery)
		}
		if _, ok := query["date_from"]; ok {
			t.Fatalf("absent date_from must not be sent: %q", req.URL.RawQuery)
		}
		if got := req.Header.Get("Authorization"); got != "Bearer secret" {
			t.Fatalf("unexpected authorization header %q", got)
		}
		if req.Header.Get("X-Request-ID") == "" {
			t.Fatalf("expected X-Request-ID header")
		}
		return jsonResponse(http.StatusOK, `{"count": 11, "results": [{"id": 1, "question": "Q", "answer": "A"}]}`), nil
	})

	page, err := backend.ListQARecords(context.Background(), QueryDescriptor{Page: 2, PageSize: 10, Search: "refund"})
	if err != nil {
		t.Fatalf("list qa records: %v", err)
	}
	if page.TotalCount != 11 || len(page.Items) != 1 {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestHTTPBackendConversationAndMessagePaths(t *testing.T) {
	t.Parallel()

	var paths []string
	backend := newTestHTTPBackend(t, func(req *http.Request) (*http.Response, error) {
		paths = append(paths, req.URL.EscapedPath()+"?"+req.URL.RawQuery)
		return jsonResponse(http.StatusOK, `[]`), nil
	})

	if _, err := backend.ListConversations(context.Background(), "42"); err != nil {
		t.Fatalf("list conversations: %v", err)
	}
	if _, err := backend.ListMessages(context.Background(), "a/b"); err != nil {
		t.Fatalf("list messages: %v", err)
	}

	want := []string{"/api/conversations?user=42", "/api/conversations/a%2Fb/messages?"}
	if len(paths) != len(want) {
		t.Fatalf("expected %d requests, got %v", len(want), paths)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Fatalf("request %d: got %q want %q", i, paths[i], want[i])
		}
	}
}

func TestHTTPBackendStatusErrorCarriesDetail(t *testing.T) {
	t.Parallel()

	backend := newTestHTTPBackend(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusForbidden, `{"detail": "You do not have permission."}`), nil
	})

	_, err := backend.ListConversations(context.Background(), "1")
	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected apiError, got %v", err)
	}
	if apiErr.Status != http.StatusForbidden || apiErr.Message != "You do not have permission." {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

func TestHTTPBackendStatusErrorFallsBackToBody(t *testing.T) {
	t.Parallel()

	backend := newTestHTTPBackend(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusBadGateway, "<html>\n  bad gateway\n</html>"), nil
	})

	_, err := backend.ListMessages(context.Background(), "1")
	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected apiError, got %v", err)
	}
	if apiErr.Message != "<html> bad gateway </html>" {
		t.Fatalf("unexpected fallback message %q", apiErr.Message)
	}
}

func TestHTTPBackendStatusErrorTruncatesOnRuneBoundary(t *testing.T) {
	t.Parallel()

	backend := newTestHTTPBackend(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusInternalServerError, strings.Repeat("é", 300)), nil
	})

	_, err := backend.ListQARecords(context.Background(), QueryDescriptor{Page: 1, PageSize: 10})
	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected apiError, got %v", err)
	}
	if !utf8.ValidString(apiErr.Message) {
		t.Fatalf("message split a rune: %q", apiErr.Message)
	}
	if !strings.HasSuffix(apiErr.Message, "...") || utf8.RuneCountInString(apiErr.Message) > maxErrorBodyWidth {
		t.Fatalf("expected message cut to %d columns with a tail, got %d runes", maxErrorBodyWidth, utf8.RuneCountInString(apiErr.Message))
	}
}

func TestNewHTTPBackendRequiresBaseURL(t *testing.T) {
	t.Parallel()

	if _, err := newHTTPBackend(apiConfig{}, testLogger()); !errors.Is(err, errMissingBaseURL) {
		t.Fatalf("expected errMissingBaseURL, got %v", err)
	}
}
