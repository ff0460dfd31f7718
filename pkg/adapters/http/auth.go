package http

import (
	"context"
	"net/http"
	"strings"
)

// Anonymous namespaces. Ids under these prefixes belong to browser chats and
// websocket guests; every other id needs its credential.
var anonymousPrefixes = []string{webUserPrefix, wsUserPrefix}

type authUserKey struct{}

// identify authenticates Basic credentials (user id, secret) against the
// credential store. Requests without credentials pass through anonymously;
// wrong credentials are rejected with 401.
func (s *Server) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, secret, ok := r.BasicAuth()
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		valid, err := s.bot.Authenticate(r.Context(), userID, secret)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if !valid {
			s.unauthorized(w, "Invalid credentials")
			return
		}
		ctx := context.WithValue(r.Context(), authUserKey{}, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authenticatedUser returns the user id identify stored, if any.
func authenticatedUser(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(authUserKey{}).(string)
	return id, ok
}

func isAnonymous(userID string) bool {
	for _, p := range anonymousPrefixes {
		if strings.HasPrefix(userID, p) {
			return true
		}
	}
	return false
}

// authorize reports whether the request may act as userID, writing 401 when not.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, userID string) bool {
	if isAnonymous(userID) {
		return true
	}
	if id, ok := authenticatedUser(r.Context()); ok && id == userID {
		return true
	}
	s.logger.Debug("Request rejected", "path", r.URL.Path, "status", http.StatusUnauthorized, "user_id", userID)
	s.unauthorized(w, "Credentials for "+userID+" required")
	return false
}

// requireUser returns the authenticated caller, writing 401 for anonymous requests.
func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	if id, ok := authenticatedUser(r.Context()); ok {
		return id, true
	}
	s.unauthorized(w, "Credentials required")
	return "", false
}

func (s *Server) unauthorized(w http.ResponseWriter, details string) {
	w.Header().Set("WWW-Authenticate", `Basic realm="formbot"`)
	writeJSON(w, http.StatusUnauthorized, errorResponse{Error: http.StatusText(http.StatusUnauthorized), Details: details})
}
