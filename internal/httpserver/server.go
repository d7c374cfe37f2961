// internal/httpserver/server.go
//
// HTTP server wiring for the storytelling backend.
// Responsibilities:
//   - Router + middleware (request IDs, access log, JSON, CORS, timeouts, panic recovery).
//   - Public endpoints: "/", "/health".
//   - Auth endpoints: /auth/signup, /auth/login, /auth/logout, /auth/me.
//   - Game endpoints (require auth): /games, /games/{gameId}, /games/{gameId}/moves.
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - Every JSON body uses the envelope in respond.go.
//   - The authenticated account ID is passed to the engine as the player ID.

package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/andthen/internal/accounts"
	"github.com/robalobadob/andthen/internal/engine"
)

// Options carries transport settings taken from config.
type Options struct {
	CookieName     string
	SecureCookies  bool
	ClientOrigins  []string
	RequestTimeout time.Duration
	Logger         *zerolog.Logger // defaults to the global logger
}

// Server bundles the router and the domain services behind it.
type Server struct {
	r         *chi.Mux
	engine    *engine.Engine
	lifecycle *engine.Lifecycle
	accounts  *accounts.Service
	opts      Options
}

// New constructs a Server, installs middleware, and registers routes.
func New(e *engine.Engine, l *engine.Lifecycle, a *accounts.Service, opts Options) *Server {
	if opts.CookieName == "" {
		opts.CookieName = "andthen_auth"
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	s := &Server{r: chi.NewRouter(), engine: e, lifecycle: l, accounts: a, opts: opts}

	// --- middleware ---
	s.r.Use(chimw.RequestID)
	s.r.Use(chimw.RealIP)
	s.r.Use(hlog.NewHandler(logger))
	s.r.Use(requestIDLogField)
	s.r.Use(hlog.AccessHandler(accessLog))
	s.r.Use(chimw.Recoverer)
	s.r.Use(chimw.Timeout(opts.RequestTimeout))
	s.r.Use(jsonContentType)
	s.r.Use(cors(opts.ClientOrigins))

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		success(w, http.StatusOK, map[string]any{
			"service":   "andthen",
			"endpoints": []string{"/health", "/auth/*", "GET/POST /games", "GET /games/{gameId}", "POST /games/{gameId}/moves"},
		})
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		success(w, http.StatusOK, map[string]bool{"ok": true})
	})

	s.mountAuthRoutes()
	s.mountGameRoutes()

	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not_found", "no route for "+r.URL.Path)
	})
	s.r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", r.Method+" not allowed on "+r.URL.Path)
	})

	return s
}

// ServeHTTP lets the Server be used directly as an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.r.ServeHTTP(w, r) }

// ----------------------------- middleware ----------------------------------

func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// requestIDLogField copies chi's request ID into the request logger.
func requestIDLogField(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := chimw.GetReqID(r.Context()); id != "" {
			hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("reqId", id)
			})
		}
		next.ServeHTTP(w, r)
	})
}

func accessLog(r *http.Request, status, size int, d time.Duration) {
	level := zerolog.InfoLevel
	if status >= 500 {
		level = zerolog.ErrorLevel
	}
	hlog.FromRequest(r).WithLevel(level).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("size", size).
		Dur("duration", d).
		Msg("request")
}

// cors enables credentialed CORS for the configured origins. A request from
// an unlisted origin gets no Allow-Origin header.
func cors(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("Vary", "Origin")
			if origin := r.Header.Get("Origin"); allowed[origin] || allowed["*"] && origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
