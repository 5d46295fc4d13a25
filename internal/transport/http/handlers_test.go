package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/joshdurbin/ns-shortener/internal/domain"
	"github.com/joshdurbin/ns-shortener/internal/service"
	"github.com/joshdurbin/ns-shortener/internal/service/mocks"
)

var created = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestHandler(svc *mocks.URLService, opts Options) http.Handler {
	if opts.ServerURL == "" {
		opts.ServerURL = "http://localhost:8080"
	}
	return NewServer(svc, opts).Handler()
}

func doRequest(t *testing.T, h http.Handler, method, target string, body any, user string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) domain.ErrorResponse {
	t.Helper()
	var resp domain.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{domain.ErrShortcodeTaken, http.StatusConflict},
		{domain.ErrGenerationExhausted, http.StatusServiceUnavailable},
		{domain.ErrInvalidURL, http.StatusBadRequest},
		{domain.ErrInvalidShortcode, http.StatusBadRequest},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrExpired, http.StatusGone},
		{domain.ErrPrivate, http.StatusForbidden},
		{domain.ErrForbidden, http.StatusForbidden},
		{domain.ErrStoreUnavailable, http.StatusServiceUnavailable},
		{domain.ErrTimeout, http.StatusGatewayTimeout},
		{domain.ErrInvalidRequest, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", domain.ErrExpired), http.StatusGone},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.status, statusFor(tt.err))
		})
	}
}

func TestHandler_CreateURL(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    any
		setupMocks     func(*mocks.URLService)
		expectedStatus int
		expectedCode   string
	}{
		{
			name:        "successful creation",
			requestBody: domain.CreateURLRequest{URL: "https://example.com", Shortcode: "abc123", Tags: []string{"promo"}},
			setupMocks: func(m *mocks.URLService) {
				m.On("CreateShortURL", mock.Anything, service.CreateRequest{
					NamespaceID: "mktg",
					Shortcode:   "abc123",
					TargetURL:   "https://example.com",
					Caller:      domain.Caller{UserID: "alice"},
					Options:     domain.CreateOptions{Tags: []string{"promo"}},
				}).Return(&domain.ShortURL{
					NamespaceID: "mktg",
					Shortcode:   "abc123",
					TargetURL:   "https://example.com",
					CreatedAt:   created,
				}, nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "invalid JSON",
			requestBody:    "invalid json",
			setupMocks:     func(m *mocks.URLService) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   domain.CodeInvalidRequest,
		},
		{
			name:        "shortcode taken",
			requestBody: domain.CreateURLRequest{URL: "https://example.com", Shortcode: "abc123"},
			setupMocks: func(m *mocks.URLService) {
				m.On("CreateShortURL", mock.Anything, mock.Anything).Return(nil, domain.ErrShortcodeTaken)
			},
			expectedStatus: http.StatusConflict,
			expectedCode:   domain.CodeShortcodeTaken,
		},
		{
			name:        "invalid URL",
			requestBody: domain.CreateURLRequest{URL: "nope"},
			setupMocks: func(m *mocks.URLService) {
				m.On("CreateShortURL", mock.Anything, mock.Anything).
					Return(nil, fmt.Errorf("%w: not absolute", domain.ErrInvalidURL))
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   domain.CodeInvalidURL,
		},
		{
			name:        "forbidden",
			requestBody: domain.CreateURLRequest{URL: "https://example.com"},
			setupMocks: func(m *mocks.URLService) {
				m.On("CreateShortURL", mock.Anything, mock.Anything).Return(nil, domain.ErrForbidden)
			},
			expectedStatus: http.StatusForbidden,
			expectedCode:   domain.CodeForbidden,
		},
		{
			name:        "store unavailable",
			requestBody: domain.CreateURLRequest{URL: "https://example.com"},
			setupMocks: func(m *mocks.URLService) {
				m.On("CreateShortURL", mock.Anything, mock.Anything).Return(nil, domain.ErrStoreUnavailable)
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedCode:   domain.CodeStoreUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &mocks.URLService{}
			tt.setupMocks(mockService)
			h := newTestHandler(mockService, Options{})

			w := doRequest(t, h, http.MethodPost, "/api/namespaces/mktg/urls", tt.requestBody, "alice")

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, decodeError(t, w).Code)
			} else {
				var resp domain.CreateURLResponse
				require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
				assert.Equal(t, "http://localhost:8080/mktg/abc123", resp.ShortURL)
				assert.Equal(t, "abc123", resp.ShortCode)
			}
			mockService.AssertExpectations(t)
		})
	}
}

func TestHandler_BulkCreate(t *testing.T) {
	mockService := &mocks.URLService{}
	mockService.On("BulkCreate", mock.Anything, service.BulkRequest{
		NamespaceID: "mktg",
		Caller:      domain.Caller{UserID: "alice"},
		Items: []service.BulkEntry{
			{Shortcode: "one", TargetURL: "https://one.example"},
			{Shortcode: "two", TargetURL: "https://two.example"},
		},
	}).Return([]domain.BulkResult{
		{Index: 0, Record: &domain.ShortURL{NamespaceID: "mktg", Shortcode: "one"}},
		{Index: 1, Err: domain.ErrShortcodeTaken},
	}, nil)

	h := newTestHandler(mockService, Options{})
	w := doRequest(t, h, http.MethodPost, "/api/namespaces/mktg/urls/bulk", domain.BulkCreateRequest{
		Items: []domain.CreateURLRequest{
			{Shortcode: "one", URL: "https://one.example"},
			{Shortcode: "two", URL: "https://two.example"},
		},
	}, "alice")

	assert.Equal(t, http.StatusMultiStatus, w.Code)
	var resp domain.BulkCreateResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Created)
	assert.Equal(t, 1, resp.Failed)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "http://localhost:8080/mktg/one", resp.Results[0].ShortURL)
	assert.Equal(t, domain.CodeShortcodeTaken, resp.Results[1].Code)
	mockService.AssertExpectations(t)
}

func TestHandler_BulkCreate_Rejected(t *testing.T) {
	mockService := &mocks.URLService{}
	mockService.On("BulkCreate", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: no items supplied", domain.ErrInvalidRequest))

	h := newTestHandler(mockService, Options{})
	w := doRequest(t, h, http.MethodPost, "/api/namespaces/mktg/urls/bulk", domain.BulkCreateRequest{}, "alice")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_Redirect(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
	}{
		{"found", nil, http.StatusFound},
		{"not found", domain.ErrNotFound, http.StatusNotFound},
		{"expired", domain.ErrExpired, http.StatusGone},
		{"private", domain.ErrPrivate, http.StatusForbidden},
		{"unavailable", domain.ErrStoreUnavailable, http.StatusServiceUnavailable},
		{"timeout", domain.ErrTimeout, http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "https://example.com"
			if tt.err != nil {
				target = ""
			}
			mockService := &mocks.URLService{}
			mockService.On("Resolve", mock.Anything, mock.MatchedBy(func(req service.ResolveRequest) bool {
				return req.NamespaceID == "mktg" && req.Shortcode == "abc123" &&
					req.Meta.IPAddress == "203.0.113.5" &&
					req.Meta.Referrer == "https://news.example.com/" &&
					req.Meta.UserAgent == "test-agent"
			})).Return(target, tt.err)

			h := newTestHandler(mockService, Options{TrustProxy: true})
			req := httptest.NewRequest(http.MethodGet, "/mktg/abc123", nil)
			req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
			req.Header.Set("Referer", "https://news.example.com/")
			req.Header.Set("User-Agent", "test-agent")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.err == nil {
				assert.Equal(t, "https://example.com", w.Header().Get("Location"))
			}
			mockService.AssertExpectations(t)
		})
	}
}

func TestHandler_ListURLs(t *testing.T) {
	alice := domain.Caller{UserID: "alice"}
	next := &domain.Cursor{CreatedAt: created, ID: uuid.New()}
	records := []*domain.ShortURL{{NamespaceID: "mktg", Shortcode: "abc"}}

	t.Run("paged", func(t *testing.T) {
		mockService := &mocks.URLService{}
		mockService.On("ListShortURLs", mock.Anything, alice, "mktg", service.ListOptions{Limit: 1}).
			Return(&service.ListPage{URLs: records, NextCursor: next}, nil)

		w := doRequest(t, newTestHandler(mockService, Options{}), http.MethodGet, "/api/namespaces/mktg/urls?limit=1", nil, "alice")
		require.Equal(t, http.StatusOK, w.Code)

		var resp domain.ListURLsResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Len(t, resp.URLs, 1)
		assert.Equal(t, service.EncodeCursor(next), resp.NextCursor)
	})

	t.Run("cursor is decoded", func(t *testing.T) {
		mockService := &mocks.URLService{}
		mockService.On("ListShortURLs", mock.Anything, alice, "mktg", mock.MatchedBy(func(opts service.ListOptions) bool {
			return opts.After != nil && opts.After.ID == next.ID && opts.After.CreatedAt.Equal(next.CreatedAt)
		})).Return(&service.ListPage{}, nil)

		w := doRequest(t, newTestHandler(mockService, Options{}), http.MethodGet,
			"/api/namespaces/mktg/urls?cursor="+service.EncodeCursor(next), nil, "alice")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"urls":[]`)
		mockService.AssertExpectations(t)
	})

	t.Run("by creator", func(t *testing.T) {
		mockService := &mocks.URLService{}
		mockService.On("ListByCreator", mock.Anything, alice, "mktg", "bob", 0).Return(records, nil)

		w := doRequest(t, newTestHandler(mockService, Options{}), http.MethodGet, "/api/namespaces/mktg/urls?created_by=bob", nil, "alice")
		assert.Equal(t, http.StatusOK, w.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("expired and private filters", func(t *testing.T) {
		mockService := &mocks.URLService{}
		mockService.On("ListExpired", mock.Anything, alice, "mktg", 10).Return(records, nil)
		mockService.On("ListPrivate", mock.Anything, alice, "mktg", 0).Return(records, nil)
		h := newTestHandler(mockService, Options{})

		assert.Equal(t, http.StatusOK, doRequest(t, h, http.MethodGet, "/api/namespaces/mktg/urls?filter=expired&limit=10", nil, "alice").Code)
		assert.Equal(t, http.StatusOK, doRequest(t, h, http.MethodGet, "/api/namespaces/mktg/urls?filter=private", nil, "alice").Code)
		mockService.AssertExpectations(t)
	})

	t.Run("bad input", func(t *testing.T) {
		mockService := &mocks.URLService{}
		h := newTestHandler(mockService, Options{})

		for _, target := range []string{
			"/api/namespaces/mktg/urls?limit=-1",
			"/api/namespaces/mktg/urls?limit=many",
			"/api/namespaces/mktg/urls?filter=recent",
			"/api/namespaces/mktg/urls?cursor=!!!",
		} {
			w := doRequest(t, h, http.MethodGet, target, nil, "alice")
			assert.Equal(t, http.StatusBadRequest, w.Code, target)
		}
		mockService.AssertNotCalled(t, "ListShortURLs", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestHandler_Management(t *testing.T) {
	alice := domain.Caller{UserID: "alice"}
	rec := &domain.ShortURL{NamespaceID: "mktg", Shortcode: "abc", TargetURL: "https://example.com"}

	mockService := &mocks.URLService{}
	mockService.On("GetShortURL", mock.Anything, alice, "mktg", "abc").Return(rec, nil)
	mockService.On("GetShortURL", mock.Anything, domain.Caller{}, "mktg", "abc").Return(nil, domain.ErrForbidden)
	mockService.On("UpdateShortURL", mock.Anything, alice, "mktg", "abc", mock.MatchedBy(func(c domain.URLChanges) bool {
		return c.TargetURL != nil && *c.TargetURL == "https://new.example" && c.IsActive == nil
	})).Return(rec, nil)
	mockService.On("DeleteShortURL", mock.Anything, alice, "mktg", "abc").Return(nil)
	mockService.On("DeleteShortURL", mock.Anything, alice, "mktg", "gone").Return(domain.ErrNotFound)
	mockService.On("DeleteNamespace", mock.Anything, alice, "mktg").Return(nil)
	mockService.On("GetNamespaceStats", mock.Anything, alice, "mktg").
		Return(&domain.NamespaceStats{NamespaceID: "mktg", TotalURLs: 3}, nil)
	mockService.On("GetURLAnalytics", mock.Anything, alice, "mktg", "abc", "30days").
		Return(&domain.ClickReport{NamespaceID: "mktg", Shortcode: "abc", TotalClicks: 7}, nil)
	mockService.On("GetNamespaceAnalytics", mock.Anything, alice, "mktg", "").
		Return(&domain.ClickReport{NamespaceID: "mktg", TotalClicks: 9}, nil)

	h := newTestHandler(mockService, Options{})
	newTarget := "https://new.example"

	tests := []struct {
		name     string
		method   string
		target   string
		body     any
		user     string
		status   int
		contains string
	}{
		{"get", http.MethodGet, "/api/namespaces/mktg/urls/abc", nil, "alice", http.StatusOK, `"shortcode":"abc"`},
		{"get anonymous", http.MethodGet, "/api/namespaces/mktg/urls/abc", nil, "", http.StatusForbidden, domain.CodeForbidden},
		{"update", http.MethodPatch, "/api/namespaces/mktg/urls/abc", domain.UpdateURLRequest{URL: &newTarget}, "alice", http.StatusOK, ""},
		{"update bad JSON", http.MethodPatch, "/api/namespaces/mktg/urls/abc", "{", "alice", http.StatusBadRequest, "Invalid JSON"},
		{"delete", http.MethodDelete, "/api/namespaces/mktg/urls/abc", nil, "alice", http.StatusNoContent, ""},
		{"delete missing", http.MethodDelete, "/api/namespaces/mktg/urls/gone", nil, "alice", http.StatusNotFound, domain.CodeNotFound},
		{"delete namespace", http.MethodDelete, "/api/namespaces/mktg", nil, "alice", http.StatusAccepted, ""},
		{"stats", http.MethodGet, "/api/namespaces/mktg/stats", nil, "alice", http.StatusOK, `"total_urls":3`},
		{"url analytics", http.MethodGet, "/api/namespaces/mktg/urls/abc/analytics?window=30days", nil, "alice", http.StatusOK, `"total_clicks":7`},
		{"namespace analytics", http.MethodGet, "/api/namespaces/mktg/analytics", nil, "alice", http.StatusOK, `"total_clicks":9`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, h, tt.method, tt.target, tt.body, tt.user)
			assert.Equal(t, tt.status, w.Code)
			if tt.contains != "" {
				assert.Contains(t, w.Body.String(), tt.contains)
			}
		})
	}
	mockService.AssertExpectations(t)
}

func TestHandler_Health(t *testing.T) {
	mockService := &mocks.URLService{}

	healthy := newTestHandler(mockService, Options{Health: func(ctx context.Context) error { return nil }})
	w := doRequest(t, healthy, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")

	unhealthy := newTestHandler(mockService, Options{Health: func(ctx context.Context) error { return errors.New("db down") }})
	w = doRequest(t, unhealthy, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestServer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "shortener_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	h := newTestHandler(&mocks.URLService{}, Options{Gatherer: reg})
	w := doRequest(t, h, http.MethodGet, "/metrics", nil, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "shortener_test_total 1")
}

func TestServer_RateLimit(t *testing.T) {
	mockService := &mocks.URLService{}
	mockService.On("DeleteShortURL", mock.Anything, mock.Anything, "mktg", "abc").Return(nil)
	mockService.On("GetShortURL", mock.Anything, mock.Anything, "mktg", "abc").
		Return(&domain.ShortURL{NamespaceID: "mktg", Shortcode: "abc"}, nil)

	h := newTestHandler(mockService, Options{RateLimitRPS: 0.001, RateLimitBurst: 1})

	send := func(method, peer, user, forwarded string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "/api/namespaces/mktg/urls/abc", nil)
		req.RemoteAddr = peer
		if user != "" {
			req.Header.Set(UserHeader, user)
		}
		if forwarded != "" {
			req.Header.Set("X-Forwarded-For", forwarded)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusNoContent, send(http.MethodDelete, "198.51.100.1:5000", "alice", "").Code)

	w := send(http.MethodDelete, "198.51.100.1:5001", "alice", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, domain.CodeRateLimited, decodeError(t, w).Code)

	// rotating client-supplied headers does not open a new budget
	assert.Equal(t, http.StatusTooManyRequests, send(http.MethodDelete, "198.51.100.1:5002", "mallory", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, send(http.MethodDelete, "198.51.100.1:5003", "", "203.0.113.9").Code)

	// another peer has its own budget
	assert.Equal(t, http.StatusNoContent, send(http.MethodDelete, "198.51.100.2:5000", "alice", "").Code)

	// reads are not limited
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, send(http.MethodGet, "198.51.100.1:5004", "alice", "").Code)
	}
}

func TestServer_RateLimitBehindTrustedProxy(t *testing.T) {
	mockService := &mocks.URLService{}
	mockService.On("DeleteShortURL", mock.Anything, mock.Anything, "mktg", "abc").Return(nil)

	h := newTestHandler(mockService, Options{RateLimitRPS: 0.001, RateLimitBurst: 1, TrustProxy: true})

	send := func(forwarded string) int {
		req := httptest.NewRequest(http.MethodDelete, "/api/namespaces/mktg/urls/abc", nil)
		req.RemoteAddr = "10.0.0.2:443"
		req.Header.Set("X-Forwarded-For", forwarded)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusNoContent, send("203.0.113.5"))
	assert.Equal(t, http.StatusTooManyRequests, send("203.0.113.5, 10.0.0.1"))
	assert.Equal(t, http.StatusNoContent, send("203.0.113.6"))
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name      string
		trust     bool
		forwarded string
		realIP    string
		want      string
	}{
		{name: "peer by default", forwarded: "203.0.113.5", realIP: "203.0.113.6", want: "198.51.100.7"},
		{name: "trusted forwarded", trust: true, forwarded: " 203.0.113.5 , 10.0.0.1", want: "203.0.113.5"},
		{name: "trusted real ip", trust: true, realIP: "203.0.113.6", want: "203.0.113.6"},
		{name: "trusted without headers", trust: true, want: "198.51.100.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "198.51.100.7:4321"
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			assert.Equal(t, tt.want, clientIP(req, tt.trust))
		})
	}
}

func TestRateLimiter_Prune(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	now := time.Now()
	rl.limiterFor("alice", now.Add(-time.Hour))
	rl.limiterFor("bob", now)

	assert.Equal(t, 1, rl.Prune(now))
	assert.Len(t, rl.visitors, 1)
	assert.Contains(t, rl.visitors, "bob")
}

func TestLoggingMiddleware(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	mockService := &mocks.URLService{}
	mockService.On("Resolve", mock.Anything, mock.Anything).Return("", domain.ErrNotFound)

	h := newTestHandler(mockService, Options{Verbose: true, Logger: zap.New(core)})
	doRequest(t, h, http.MethodGet, "/mktg/missing", nil, "")

	entries := logs.FilterMessage("http request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/mktg/missing", fields["path"])
	assert.EqualValues(t, http.StatusNotFound, fields["status"])
	assert.Equal(t, 1, logs.FilterMessage("error response body").Len())
}
