package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/secmon-lab/vidqa/pkg/domain/model"
	"github.com/secmon-lab/vidqa/pkg/utils/logging"
	"github.com/secmon-lab/vidqa/pkg/utils/safe"
)

// AnswerUseCase answers a question about a video
type AnswerUseCase interface {
	Answer(ctx context.Context, req model.AskRequest) (*model.Answer, error)
}

const defaultMaxBodyBytes = 64 << 10

type Server struct {
	router         *chi.Mux
	answerUC       AnswerUseCase
	allowedOrigins []string
	maxBodyBytes   int64
}

type Options func(*Server)

// WithAllowedOrigins restricts CORS to origins. The default allows any origin so the
// browser extension can call the API.
func WithAllowedOrigins(origins ...string) Options {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

// WithMaxBodyBytes limits the size of request bodies
func WithMaxBodyBytes(n int64) Options {
	return func(s *Server) {
		s.maxBodyBytes = n
	}
}

func New(answerUC AnswerUseCase, opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router:         r,
		answerUC:       answerUC,
		allowedOrigins: []string{"*"},
		maxBodyBytes:   defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Post("/ask", askHandler(s.answerUC, s.maxBodyBytes))
	r.Get("/health", healthHandler)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logging.From(r.Context()).Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// requestLogger stores a logger tagged with the chi request ID in the request context
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if reqID := middleware.GetReqID(ctx); reqID != "" {
			ctx = logging.With(ctx, logging.From(ctx).With("http_request_id", reqID))
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	safe.Write(r.Context(), w, []byte("ok"))
}
