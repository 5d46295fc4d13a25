package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/joshdurbin/ns-shortener/internal/domain"
	"github.com/joshdurbin/ns-shortener/internal/service"
)

// UserHeader carries the caller identity; requests without it are anonymous
const UserHeader = "X-User-ID"

// Handler holds the HTTP handlers for the URL shortener
type Handler struct {
	service   service.URLService
	serverURL string
	health    func(ctx context.Context) error
	logger    *zap.Logger

	trustProxy bool
}

// NewHandler creates a new HTTP handler. health may be nil.
func NewHandler(svc service.URLService, serverURL string, health func(ctx context.Context) error, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		service:   svc,
		serverURL: strings.TrimSuffix(serverURL, "/"),
		health:    health,
		logger:    logger,
	}
}

func callerOf(r *http.Request) domain.Caller {
	return domain.Caller{UserID: strings.TrimSpace(r.Header.Get(UserHeader))}
}

// clientIP returns the peer address. Behind a trusted proxy it prefers the
// first X-Forwarded-For hop, then X-Real-IP.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
		if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (h *Handler) shortURL(namespaceID, shortcode string) string {
	return h.serverURL + "/" + namespaceID + "/" + shortcode
}

// statusFor maps a service error onto an HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrShortcodeTaken):
		return http.StatusConflict
	case errors.Is(err, domain.ErrGenerationExhausted), errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrInvalidURL), errors.Is(err, domain.ErrInvalidShortcode),
		errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrExpired):
		return http.StatusGone
	case errors.Is(err, domain.ErrPrivate), errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", fields...)
	} else {
		h.logger.Debug("request rejected", fields...)
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "Internal server error"
	}
	h.writeJSON(w, status, domain.ErrorResponse{Error: msg, Code: domain.ErrorCode(err)})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeJSON(w, http.StatusBadRequest, domain.ErrorResponse{Error: "Invalid JSON", Code: domain.CodeInvalidRequest})
		return false
	}
	return true
}

// CreateURL handles POST /api/namespaces/{ns}/urls
func (h *Handler) CreateURL(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateURLRequest
	if !h.decode(w, r, &req) {
		return
	}

	ns := r.PathValue("ns")
	rec, err := h.service.CreateShortURL(r.Context(), service.CreateRequest{
		NamespaceID: ns,
		Shortcode:   req.Shortcode,
		TargetURL:   req.URL,
		Caller:      callerOf(r),
		Options:     req.Options(),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, domain.CreateURLResponse{
		NamespaceID: rec.NamespaceID,
		ShortCode:   rec.Shortcode,
		ShortURL:    h.shortURL(rec.NamespaceID, rec.Shortcode),
		OriginalURL: rec.TargetURL,
		CreatedAt:   rec.CreatedAt,
		ExpiresAt:   rec.ExpiresAt,
	})
}

// BulkCreate handles POST /api/namespaces/{ns}/urls/bulk
func (h *Handler) BulkCreate(w http.ResponseWriter, r *http.Request) {
	var req domain.BulkCreateRequest
	if !h.decode(w, r, &req) {
		return
	}

	entries := make([]service.BulkEntry, len(req.Items))
	for i, item := range req.Items {
		entries[i] = service.BulkEntry{Shortcode: item.Shortcode, TargetURL: item.URL, Options: item.Options()}
	}

	ns := r.PathValue("ns")
	results, err := h.service.BulkCreate(r.Context(), service.BulkRequest{
		NamespaceID: ns,
		Caller:      callerOf(r),
		Items:       entries,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := domain.BulkCreateResponse{Results: make([]domain.BulkItemResult, len(results))}
	for i, res := range results {
		item := domain.BulkItemResult{Index: res.Index}
		if res.OK() {
			resp.Created++
			item.ShortCode = res.Record.Shortcode
			item.ShortURL = h.shortURL(ns, res.Record.Shortcode)
		} else {
			resp.Failed++
			item.Error = res.Err.Error()
			item.Code = domain.ErrorCode(res.Err)
		}
		resp.Results[i] = item
	}

	status := http.StatusCreated
	if resp.Failed > 0 {
		status = http.StatusMultiStatus
	}
	h.writeJSON(w, status, resp)
}

// ListURLs handles GET /api/namespaces/{ns}/urls. The optional created_by and
// filter (expired|private) parameters select the secondary listings.
func (h *Handler) ListURLs(w http.ResponseWriter, r *http.Request) {
	ns := r.PathValue("ns")
	caller := callerOf(r)
	query := r.URL.Query()

	limit := 0
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.writeError(w, r, fmt.Errorf("%w: limit must be a non-negative integer", domain.ErrInvalidRequest))
			return
		}
		limit = n
	}

	var (
		urls []*domain.ShortURL
		next string
		err  error
	)
	switch {
	case query.Get("created_by") != "":
		urls, err = h.service.ListByCreator(r.Context(), caller, ns, query.Get("created_by"), limit)
	case query.Get("filter") == "expired":
		urls, err = h.service.ListExpired(r.Context(), caller, ns, limit)
	case query.Get("filter") == "private":
		urls, err = h.service.ListPrivate(r.Context(), caller, ns, limit)
	case query.Get("filter") != "":
		err = fmt.Errorf("%w: filter must be expired or private", domain.ErrInvalidRequest)
	default:
		var after *domain.Cursor
		after, err = service.DecodeCursor(query.Get("cursor"))
		if err != nil {
			break
		}
		var page *service.ListPage
		page, err = h.service.ListShortURLs(r.Context(), caller, ns, service.ListOptions{After: after, Limit: limit})
		if err == nil {
			urls, next = page.URLs, service.EncodeCursor(page.NextCursor)
		}
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if urls == nil {
		urls = []*domain.ShortURL{}
	}
	h.writeJSON(w, http.StatusOK, domain.ListURLsResponse{URLs: urls, NextCursor: next})
}

// GetURL handles GET /api/namespaces/{ns}/urls/{code}
func (h *Handler) GetURL(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.GetShortURL(r.Context(), callerOf(r), r.PathValue("ns"), r.PathValue("code"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

// UpdateURL handles PATCH /api/namespaces/{ns}/urls/{code}
func (h *Handler) UpdateURL(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateURLRequest
	if !h.decode(w, r, &req) {
		return
	}

	rec, err := h.service.UpdateShortURL(r.Context(), callerOf(r), r.PathValue("ns"), r.PathValue("code"), req.Changes())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

// DeleteURL handles DELETE /api/namespaces/{ns}/urls/{code}
func (h *Handler) DeleteURL(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteShortURL(r.Context(), callerOf(r), r.PathValue("ns"), r.PathValue("code")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// URLAnalytics handles GET /api/namespaces/{ns}/urls/{code}/analytics?window=7days
func (h *Handler) URLAnalytics(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.GetURLAnalytics(r.Context(), callerOf(r), r.PathValue("ns"), r.PathValue("code"), r.URL.Query().Get("window"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

// NamespaceAnalytics handles GET /api/namespaces/{ns}/analytics?window=7days
func (h *Handler) NamespaceAnalytics(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.GetNamespaceAnalytics(r.Context(), callerOf(r), r.PathValue("ns"), r.URL.Query().Get("window"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

// NamespaceStats handles GET /api/namespaces/{ns}/stats
func (h *Handler) NamespaceStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.GetNamespaceStats(r.Context(), callerOf(r), r.PathValue("ns"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, st)
}

// DeleteNamespace handles DELETE /api/namespaces/{ns}
func (h *Handler) DeleteNamespace(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteNamespace(r.Context(), callerOf(r), r.PathValue("ns")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// Health handles GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Redirect handles GET /{ns}/{code} - redirects to the target URL
func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	target, err := h.service.Resolve(r.Context(), service.ResolveRequest{
		NamespaceID: r.PathValue("ns"),
		Shortcode:   r.PathValue("code"),
		Caller:      callerOf(r),
		Meta: domain.RequestMeta{
			IPAddress: clientIP(r, h.trustProxy),
			UserAgent: r.UserAgent(),
			Referrer:  r.Referer(),
		},
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	http.Redirect(w, r, target, http.StatusFound)
}
