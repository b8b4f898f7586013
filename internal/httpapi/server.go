package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ezagent/internal/controller"
	"ezagent/internal/core"
)

// maxBodyBytes bounds the JSON payload accepted for one event.
var maxBodyBytes int64 = 1 << 20

// Options configures the optional parts of the router.
type Options struct {
	AllowedOrigins []string
	Gatherer       prometheus.Gatherer
	Hub            *Hub
	Logger         *zerolog.Logger
}

// DispatchResponse is the body returned by POST /events/{type}.
type DispatchResponse struct {
	Type    string   `json:"type"`
	Handled bool     `json:"handled"`
	Errors  []string `json:"errors,omitempty"`
}

// NewMux builds the HTTP surface over a controller.
func NewMux(c *controller.Controller, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = &log.Logger
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "X-Request-Id"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Post("/events/{type}", eventHandler(c))
	if opts.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	if opts.Hub != nil {
		r.Method(http.MethodGet, "/ws", opts.Hub)
	}
	return r
}

func eventHandler(c *controller.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventType := chi.URLParam(r, "type")
		data := core.Payload{}
		body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := json.NewDecoder(body).Decode(&data); err != nil && !errors.Is(err, io.EOF) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON object: " + err.Error()})
			return
		}

		rep := c.Dispatch(r.Context(), eventType, data)
		resp := DispatchResponse{Type: eventType, Handled: rep.Handled}
		if rep.HandlerErr != nil {
			resp.Errors = append(resp.Errors, rep.HandlerErr.Error())
		}
		for _, err := range rep.AgentErrs {
			resp.Errors = append(resp.Errors, err.Error())
		}
		status := http.StatusAccepted
		if !rep.Handled {
			status = http.StatusNotFound
			resp.Errors = append(resp.Errors, rep.Err().Error())
		}
		writeJSON(w, status, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func requestLogger(logger *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("http request")
		})
	}
}
