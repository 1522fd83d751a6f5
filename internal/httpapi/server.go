package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ent0n29/taskboard/internal/config"
	"github.com/ent0n29/taskboard/internal/observability"
	"github.com/ent0n29/taskboard/internal/tasks"
)

const (
	requestIDHeader = "X-Request-ID"
	maxBodyBytes    = 1 << 20
)

type Server struct {
	cfg       config.Config
	tasks     *tasks.Manager
	metrics   *observability.Metrics
	upgrader  websocket.Upgrader
	startedAt time.Time
}

func New(cfg config.Config, manager *tasks.Manager, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:       cfg,
		tasks:     manager,
		metrics:   metrics,
		startedAt: time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.observe)
	r.Use(s.recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "not_found", "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method Not Allowed")
	})

	r.Get("/", s.handleRoot)
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/livez", s.handleLive)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/perf/latency", s.handlePerfLatency)
		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", s.handleListTasks)
			r.Post("/", s.handleCreateTask)
			r.Get("/stats/summary", s.handleTaskSummary)
			r.Get("/ws", s.handleTaskStream)
			r.Get("/{id}", s.handleGetTask)
			r.Put("/{id}", s.handleUpdateTask)
			r.Delete("/{id}", s.handleDeleteTask)
		})
	})

	return r
}

// requestID echoes a caller-supplied X-Request-ID or mints one.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
			if websocket.IsWebSocketUpgrade(r) {
				status = http.StatusSwitchingProtocols
			}
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		s.metrics.ObserveHTTPRequest(r.Method, route, status, elapsed)
		if s.cfg.Debug {
			log.Printf("%s %s %d %s request_id=%s", r.Method, r.URL.Path, status, elapsed.Round(time.Microsecond), w.Header().Get(requestIDHeader))
		}
	})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			log.Printf("panic serving %s %s: %v\n%s", r.Method, r.URL.Path, rec, debug.Stack())
			respondError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
		}()
		next.ServeHTTP(w, r)
	})
}

type errorResponse struct {
	Error      string             `json:"error"`
	Code       string             `json:"code"`
	StatusCode int                `json:"status_code"`
	Timestamp  time.Time          `json:"timestamp"`
	RequestID  string             `json:"request_id,omitempty"`
	Details    []tasks.FieldError `json:"details,omitempty"`
}

var errEmptyBody = errors.New("empty body")

// decodeJSON maps type mismatches to validation errors so they surface as 422
// like any other field violation. Malformed documents stay plain errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			field := typeErr.Field
			if field == "" {
				field = "body"
			}
			return tasks.NewValidationError(field, fmt.Sprintf("must be of type %s", jsonTypeName(typeErr)))
		}
		return err
	}
	return nil
}

func jsonTypeName(err *json.UnmarshalTypeError) string {
	if err.Type == nil {
		return "value"
	}
	switch err.Type.Kind().String() {
	case "string":
		return "string"
	case "struct", "map":
		return "object"
	case "slice", "array":
		return "array"
	default:
		return err.Type.String()
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{
		Error:      message,
		Code:       code,
		StatusCode: status,
		Timestamp:  time.Now().UTC(),
		RequestID:  w.Header().Get(requestIDHeader),
	})
}

func respondValidation(w http.ResponseWriter, verr *tasks.ValidationError) {
	respondJSON(w, http.StatusUnprocessableEntity, errorResponse{
		Error:      "Validation failed",
		Code:       "validation_error",
		StatusCode: http.StatusUnprocessableEntity,
		Timestamp:  time.Now().UTC(),
		RequestID:  w.Header().Get(requestIDHeader),
		Details:    verr.Fields,
	})
}

// respondTaskError is the single place task errors become HTTP statuses.
func respondTaskError(w http.ResponseWriter, err error) {
	var verr *tasks.ValidationError
	switch {
	case errors.As(err, &verr):
		respondValidation(w, verr)
	case errors.Is(err, tasks.ErrTaskNotFound):
		respondError(w, http.StatusNotFound, "task_not_found", err.Error())
	default:
		log.Printf("task operation failed: %v", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}
