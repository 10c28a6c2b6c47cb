package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	appanalysis "github.com/ethica-ai/ethica-relay/internal/application/analysis"
	domain "github.com/ethica-ai/ethica-relay/internal/domain/analysis"
	"github.com/ethica-ai/ethica-relay/internal/middleware"
)

const (
	HeaderSource         = "X-Analysis-Source"
	HeaderFallbackReason = "X-Analysis-Fallback-Reason"
)

var errBadParam = errors.New("invalid parameter")

// Options configures the HTTP surface around the relay service.
type Options struct {
	ExposeSource   bool
	MaxBodyBytes   int64
	AllowedOrigins []string
	APIKeys        map[string]string
	Limiter        *middleware.RateLimiter // nil disables rate limiting
	Checks         map[string]middleware.HealthChecker
	Log            logrus.FieldLogger
}

type Router struct {
	svc  *appanalysis.Service
	opts Options
	log  logrus.FieldLogger
}

func NewRouter(svc *appanalysis.Service, opts Options) http.Handler {
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	r := &Router{svc: svc, opts: opts, log: opts.Log}
	mux := chi.NewRouter()

	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{HeaderSource, HeaderFallbackReason, middleware.RequestIDHeader},
		MaxAge:         300,
	}))
	mux.Use(middleware.LoggingMiddleware(opts.Log))
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(middleware.APIKeyAuth(opts.APIKeys))
	if opts.Limiter != nil {
		mux.Use(middleware.RateLimitMiddleware(opts.Limiter))
	}

	mux.Get("/health", middleware.HealthHandler(opts.Checks))
	mux.Get("/ready", middleware.ReadinessHandler)
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/api", func(rt chi.Router) {
		rt.Post("/analyze", r.handleAnalyze)
		if svc.Archive != nil {
			rt.Get("/analyses", r.wrap(r.handleList))
			rt.Get("/analyses/{id}", r.wrap(r.handleGet))
		}
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			switch {
			case errors.Is(err, domain.ErrNotFound):
				http.Error(w, "not found", http.StatusNotFound)
			case errors.Is(err, errBadParam):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.Is(err, domain.ErrQuotaExceeded):
				http.Error(w, "analysis quota exceeded", http.StatusTooManyRequests)
			default:
				r.log.WithError(err).WithField("path", req.URL.Path).Error("request failed")
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}
	}
}

// POST /api/analyze
// Any body is accepted. The response is always 200 with an analysis result,
// either the upstream bytes or the fallback document.
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) {
	cmd := appanalysis.RelayCommand{Client: middleware.GetClientFromContext(req.Context())}
	body := io.Reader(req.Body)
	if r.opts.MaxBodyBytes > 0 {
		body = http.MaxBytesReader(w, req.Body, r.opts.MaxBodyBytes)
	}
	cmd.Body, cmd.ReadErr = io.ReadAll(body)

	out := r.svc.Relay(req.Context(), cmd)
	middleware.RecordRelay(out)

	if r.opts.ExposeSource {
		w.Header().Set(HeaderSource, string(out.Source))
		if out.IsFallback() {
			w.Header().Set(HeaderFallbackReason, string(out.Reason))
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(out.Body); err != nil {
		r.log.WithError(err).WithField("request_id", middleware.GetRequestID(req.Context())).Debug("write analysis response")
	}
}

// GET /api/analyses?page=&page_size=
func (r *Router) handleList(w http.ResponseWriter, req *http.Request) error {
	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))

	list, err := r.svc.ListRecords(req.Context(), middleware.ValidatePage(page), middleware.ValidateLimit(size))
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}

// GET /api/analyses/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateRecordID(id); err != nil {
		return fmt.Errorf("%w: %v", errBadParam, err)
	}

	rec, err := r.svc.GetRecord(req.Context(), domain.RecordID(id))
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(rec)
}
