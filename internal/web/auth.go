package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/scanpoint/internal/auth"
	"github.com/erazemk/scanpoint/internal/backend"
	"github.com/erazemk/scanpoint/internal/store"
)

// LoginPage handles GET /login.
func (s *Server) LoginPage(w http.ResponseWriter, r *http.Request) {
	s.Templates.Render(w, "login.html", &PageData{Title: "Sign in"})
}

// LoginSubmit handles POST /login. Credentials are checked by the backend;
// the portal keeps the returned access token sealed in its session table.
func (s *Server) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	username := r.FormValue("username")
	password := r.FormValue("password")

	if username == "" || password == "" {
		s.Templates.Render(w, "login.html", &PageData{
			Title: "Sign in",
			Error: "Enter your username and password.",
		})
		return
	}

	res, err := s.Backend.Login(r.Context(), username, password)
	if err != nil {
		msg := "Sign in failed. Try again later."
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) && apiErr.Status < 500 {
			msg = apiErr.Message
		}
		slog.Warn("login failed", "username", username, "error", err)
		s.Templates.Render(w, "login.html", &PageData{Title: "Sign in", Error: msg})
		return
	}

	ttl := s.SessionTTL
	if ttl <= 0 {
		ttl = auth.TokenExpiry
	}
	sess := &store.Session{
		ID:           uuid.NewString(),
		UserID:       res.User.ID,
		Username:     res.User.Username,
		Role:         res.User.Role,
		BackendToken: res.AccessToken,
		ExpiresAt:    time.Now().Add(ttl),
	}
	if err := store.CreateSession(r.Context(), s.DB, s.Sealer, sess); err != nil {
		slog.Error("failed to create session", "error", err)
		s.Templates.Render(w, "login.html", &PageData{Title: "Sign in", Error: "Sign in failed. Try again later."})
		return
	}

	token, err := auth.GenerateToken(s.JWTSecret, sess.ID, sess.UserID, sess.Username, sess.Role, ttl)
	if err != nil {
		slog.Error("failed to sign session token", "error", err)
		s.Templates.Render(w, "login.html", &PageData{Title: "Sign in", Error: "Sign in failed. Try again later."})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(ttl / time.Second),
	})

	slog.Info("user signed in", "user", sess.Username, "role", sess.Role)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Logout handles POST /logout. The session is ended locally even if the
// backend cannot be reached.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	defer func() {
		clearAuthCookie(w)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	}()

	cookie, err := r.Cookie("token")
	if err != nil || cookie.Value == "" {
		return
	}
	claims, err := auth.ValidateToken(s.JWTSecret, cookie.Value)
	if err != nil {
		return
	}

	sess, err := store.GetSession(r.Context(), s.DB, s.Sealer, claims.SessionID())
	if err != nil {
		slog.Error("failed to load session for logout", "error", err)
	}
	if sess != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		client := s.Backend.WithTokens(backend.StaticToken(sess.BackendToken))
		if err := client.Logout(ctx); err != nil {
			slog.Warn("backend logout failed", "user", sess.Username, "error", err)
		}
		cancel()
	}

	if err := store.EndSession(r.Context(), s.DB, claims.SessionID(), claims.ExpiresAt.Time); err != nil {
		slog.Error("failed to end session", "error", err)
	}
	s.Workspaces.Drop(claims.SessionID())
	slog.Info("user signed out", "user", claims.Username)
}

// backendSignedOut ends the portal session when the backend has rejected
// its access token and sends the user back to sign in. It reports whether
// it did.
func (s *Server) backendSignedOut(w http.ResponseWriter, r *http.Request, err error) bool {
	if !backend.IsUnauthorized(err) {
		return false
	}
	sess := GetSession(r.Context())
	if err := store.EndSession(r.Context(), s.DB, sess.ID, sess.ExpiresAt); err != nil {
		slog.Error("failed to end session", "error", err)
	}
	s.Workspaces.Drop(sess.ID)
	clearAuthCookie(w)
	slog.Info("backend rejected session token", "user", sess.Username)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
	return true
}
