package relay

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ticket-market/internal/apperr"
	"ticket-market/internal/auth"
	"ticket-market/internal/session"
)

// NewServer routes the browser-facing /api surface. Signin, signout and
// currentuser are answered by the relay; everything else is forwarded to
// upstream with the caller's session attached.
func NewServer(r *Relay, upstream *url.URL) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Route("/api", func(api chi.Router) {
		api.Post("/auth/signin", r.handleSignin)
		api.Post("/auth/signout", r.handleSignout)
		api.Get("/auth/currentuser", r.handleCurrentUser)
		api.Handle("/*", r.proxy(upstream))
	})
	return router
}

func (r *Relay) handleSignin(w http.ResponseWriter, req *http.Request) {
	var creds auth.Credentials
	if err := json.NewDecoder(req.Body).Decode(&creds); err != nil {
		writeError(w, apperr.Validation(apperr.FieldError{Message: "Invalid request body"}))
		return
	}

	sess, err := r.Authenticate(WithClientIP(req.Context(), remoteIP(req)), creds)
	if err != nil {
		writeError(w, err)
		return
	}
	http.SetCookie(w, r.Cookie(sess))
	writeJSON(w, http.StatusOK, map[string]any{"user": sess.User()})
}

func (r *Relay) handleSignout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, r.ClearCookie())
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (r *Relay) handleCurrentUser(w http.ResponseWriter, req *http.Request) {
	user, err := r.CurrentIdentity(req.Context(), r.SessionFromRequest(req))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"currentUser": user})
}

func (r *Relay) proxy(upstream *url.URL) http.Handler {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL.Path = strings.TrimPrefix(pr.In.URL.Path, "/api")
			pr.Out.URL.RawPath = ""
			pr.SetURL(upstream)
			pr.SetXForwarded()
			attach(r.SessionFromRequest(pr.In), pr.Out.Header)
		},
		ModifyResponse: r.rewriteCookies,
		ErrorHandler: func(w http.ResponseWriter, req *http.Request, err error) {
			slog.Error("Relay upstream failed", "error", err, "path", req.URL.Path)
			writeError(w, apperr.ErrRelayUnavailable.Wrap(err))
		},
	}
}

// rewriteCookies reissues any session cookie the API set with the relay's
// own attributes, so the browser always stores it HttpOnly and root scoped.
func (r *Relay) rewriteCookies(resp *http.Response) error {
	cookies := resp.Cookies()
	if len(cookies) == 0 {
		return nil
	}

	resp.Header.Del("Set-Cookie")
	for _, c := range cookies {
		if c.Name == session.CookieName {
			if c.Value == "" || c.MaxAge < 0 {
				c = r.ClearCookie()
			} else {
				c = r.Cookie(&session.Session{Token: c.Value, ExpiresAt: c.Expires})
			}
		}
		if v := c.String(); v != "" {
			resp.Header.Add("Set-Cookie", v)
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := apperr.StatusCode(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Relay request failed", "error", err)
	}
	writeJSON(w, status, apperr.Body(err))
}
