package middleware

import (
	"net/http"
	"strings"

	"github.com/covalidate/licensesrv/internal/handlers/principalctx"
	"github.com/covalidate/licensesrv/internal/handlers/render"
	"github.com/covalidate/licensesrv/internal/logger"
	"github.com/covalidate/licensesrv/internal/models"
)

type tokenValidator interface {
	// Best effort subject extraction, false for any unusable token
	ExtractSubject(token string) (string, bool)
}

// Authenticate resolves the caller identity from the Authorization header
//
// It never rejects a request: a missing, malformed, expired or otherwise
// unusable token just leaves the request anonymous and lets it continue.
// Route protection is RequirePrincipal's job
func Authenticate(tokens tokenValidator, l logger.Logger) func(http.Handler) http.Handler {
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			subject, ok := tokens.ExtractSubject(raw)
			if !ok {
				l.Debug("Unusable bearer token, request stays anonymous")
				next.ServeHTTP(w, r)
				return
			}

			ctx := principalctx.New(r.Context(), models.Principal{Subject: subject})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePrincipal rejects anonymous requests with 401
func RequirePrincipal() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := principalctx.FromContext(r.Context()); !ok {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
