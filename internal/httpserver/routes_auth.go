package httpserver

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/robalobadob/andthen/internal/store"
)

type credentialsReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionRes struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

// mountAuthRoutes registers /auth/*.
func (s *Server) mountAuthRoutes() {
	s.r.Post("/auth/signup", s.handleSignup)
	s.r.Post("/auth/login", s.handleLogin)
	s.r.Post("/auth/logout", s.handleLogout)
	s.r.With(s.requireAuth).Get("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		me := currentAccount(r.Context())
		success(w, http.StatusOK, map[string]any{"id": me.ID, "username": me.Username, "createdAt": me.CreatedAt})
	})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var body credentialsReq
	if !decode(w, r, &body) {
		return
	}
	a, err := s.accounts.Signup(r.Context(), body.Username, body.Password)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	s.startSession(w, r, http.StatusCreated, a)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body credentialsReq
	if !decode(w, r, &body) {
		return
	}
	a, err := s.accounts.Login(r.Context(), body.Username, body.Password)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	s.startSession(w, r, http.StatusOK, a)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.clearAuthCookie(w)
	success(w, http.StatusOK, map[string]bool{"ok": true})
}

// startSession signs a token, sets the auth cookie and writes the session body.
func (s *Server) startSession(w http.ResponseWriter, r *http.Request, status int, a store.Account) {
	tok, exp, err := s.accounts.IssueToken(a)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	s.setAuthCookie(w, tok, exp)
	success(w, status, sessionRes{ID: a.ID, Username: a.Username, Token: tok})
}

// ------------------------------ cookies ------------------------------------

func (s *Server) cookie(value string) *http.Cookie {
	sameSite := http.SameSiteLaxMode
	if s.opts.SecureCookies {
		sameSite = http.SameSiteNoneMode
	}
	return &http.Cookie{
		Name:     s.opts.CookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.opts.SecureCookies,
		SameSite: sameSite,
	}
}

func (s *Server) setAuthCookie(w http.ResponseWriter, token string, exp time.Time) {
	c := s.cookie(token)
	c.Expires = exp
	http.SetCookie(w, c)
}

func (s *Server) clearAuthCookie(w http.ResponseWriter) {
	c := s.cookie("")
	c.MaxAge = -1
	http.SetCookie(w, c)
}

// bearerOrCookie extracts a bearer token from the Authorization header or the auth cookie.
func (s *Server) bearerOrCookie(r *http.Request) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if c, err := r.Cookie(s.opts.CookieName); err == nil {
		return c.Value
	}
	return ""
}

// ---------------------------- auth middleware ------------------------------

type ctxAccountKey struct{}

// requireAuth enforces a valid token and puts the account into the request context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := s.bearerOrCookie(r)
		if tok == "" {
			writeError(w, r, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		a, err := s.accounts.Verify(r.Context(), tok)
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), ctxAccountKey{}, a)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// currentAccount is only valid behind requireAuth.
func currentAccount(ctx context.Context) store.Account {
	a, _ := ctx.Value(ctxAccountKey{}).(store.Account)
	return a
}
