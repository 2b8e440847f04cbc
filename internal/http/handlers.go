package httpapi

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/yourname/go-shortly/internal/config"
	"github.com/yourname/go-shortly/internal/core"
	"github.com/yourname/go-shortly/internal/metrics"
)

type Router struct {
	cfg     config.Config
	svc     *core.Service
	limiter *rateLimiter
}

func NewRouter(cfg config.Config, svc *core.Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(log.Logger))
	r.Use(hlog.RequestIDHandler("req_id", "Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", dur).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(cfg.AllowedOrigins))

	api := &Router{
		cfg:     cfg,
		svc:     svc,
		limiter: newRateLimiter(cfg.CreateRateRPS, cfg.CreateRateBurst),
	}

	r.MethodFunc(http.MethodGet, "/healthz", api.handleHealth)
	r.MethodFunc(http.MethodGet, "/readyz", api.handleReady)
	r.MethodFunc(http.MethodGet, "/metrics", metrics.Handler)

	r.Route("/api/urls", func(r chi.Router) {
		r.Post("/", api.handleShorten)
		r.Get("/", api.handleList)
		r.Get("/{code}/stats", api.handleStats)
		r.Delete("/{code}", api.handleDelete)
	})

	// Redirect path; /api and the ops endpoints above are reserved codes,
	// so they can never be shadowed here.
	r.MethodFunc(http.MethodGet, "/{code}", api.handleRedirect)

	return r
}

type shortenReq struct {
	OriginalURL string     `json:"originalUrl"`
	CustomAlias string     `json:"customAlias,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

type shortenResp struct {
	Code      string     `json:"code"`
	ShortURL  string     `json:"shortUrl"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

type clickResp struct {
	ClickedAt time.Time `json:"clickedAt"`
	IPAddress string    `json:"ipAddress,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
}

type statsResp struct {
	Code        string      `json:"code"`
	OriginalURL string      `json:"originalUrl"`
	CreatedAt   time.Time   `json:"createdAt"`
	ExpiresAt   *time.Time  `json:"expiresAt,omitempty"`
	TotalClicks int64       `json:"totalClicks"`
	LastClicks  []clickResp `json:"lastClicks"`
}

type listItemResp struct {
	Code        string     `json:"code"`
	OriginalURL string     `json:"originalUrl"`
	CreatedAt   time.Time  `json:"createdAt"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	TotalClicks int64      `json:"totalClicks"`
	ShortURL    string     `json:"shortUrl"`
}

func (rt *Router) handleShorten(w http.ResponseWriter, r *http.Request) {
	if !rt.limiter.Allow(clientIP(r)) {
		writeError(w, http.StatusTooManyRequests, "too many requests, slow down")
		return
	}

	var req shortenReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	res, err := rt.svc.Shorten(r.Context(), core.ShortenRequest{
		OriginalURL: req.OriginalURL,
		CustomAlias: req.CustomAlias,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, shortenResp{
		Code:      res.Code,
		ShortURL:  res.ShortURL,
		ExpiresAt: res.ExpiresAt,
	}, http.StatusCreated)
}

func (rt *Router) handleRedirect(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	target, err := rt.svc.Resolve(r.Context(), code, clientIP(r), r.UserAgent(), r.Referer())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	http.Redirect(w, r, target, http.StatusMovedPermanently)
}

func (rt *Router) handleStats(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	stats, err := rt.svc.Stats(r.Context(), code)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	last := make([]clickResp, len(stats.LastClicks))
	for i, c := range stats.LastClicks {
		last[i] = clickResp{ClickedAt: c.ClickedAt, IPAddress: c.IP, UserAgent: c.UserAgent}
	}
	writeJSON(w, statsResp{
		Code:        stats.Code,
		OriginalURL: stats.OriginalURL,
		CreatedAt:   stats.CreatedAt,
		ExpiresAt:   stats.ExpiresAt,
		TotalClicks: stats.TotalClicks,
		LastClicks:  last,
	}, http.StatusOK)
}

func (rt *Router) handleList(w http.ResponseWriter, r *http.Request) {
	items, err := rt.svc.List(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}

	out := make([]listItemResp, len(items))
	for i, it := range items {
		out[i] = listItemResp{
			Code:        it.Code,
			OriginalURL: it.OriginalURL,
			CreatedAt:   it.CreatedAt,
			ExpiresAt:   it.ExpiresAt,
			TotalClicks: it.TotalClicks,
			ShortURL:    it.ShortURL,
		}
	}
	writeJSON(w, out, http.StatusOK)
}

func (rt *Router) handleDelete(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if err := rt.svc.Delete(r.Context(), code); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (rt *Router) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := rt.svc.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

type errorResp struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
}

func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidURL),
		errors.Is(err, core.ErrInvalidAlias),
		errors.Is(err, core.ErrReservedAlias),
		errors.Is(err, core.ErrInvalidExpiry):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, core.ErrAliasTaken):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, core.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrExpired):
		writeError(w, http.StatusGone, err.Error())
	case errors.Is(err, core.ErrExhausted):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		log.Error().Err(err).Msg("engine failure")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, errorResp{Status: status, Error: msg}, status)
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func clientIP(r *http.Request) string {
	// Try X-Forwarded-For or Real-IP first
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if rip := r.Header.Get("X-Real-Ip"); rip != "" {
		return rip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
