package handlers

import (
	"net/http"

	"github.com/covalidate/licensesrv/internal/handlers/middleware"
	"github.com/covalidate/licensesrv/internal/logger"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	tokens tokenService,
	licenses licenseService,
	l logger.Logger,
) http.Handler {
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	requireAuth := middleware.RequirePrincipal()
	withAuth := func(h http.Handler) http.Handler {
		return requireAuth(h)
	}

	apiauth := http.NewServeMux()
	apiauth.Handle("POST /token", handleIssueToken(tokens, l))

	apilicense := http.NewServeMux()
	apilicense.Handle("POST /create", withAuth(handleCreateLicense(licenses, l)))
	apilicense.Handle("POST /activate", withAuth(handleActivateLicense(licenses, l)))

	root := http.NewServeMux()
	root.Handle("/api/auth/", http.StripPrefix("/api/auth", apiauth))
	root.Handle("/api/license/", http.StripPrefix("/api/license", apilicense))

	handler := chain(root,
		middleware.LoggerMiddleware(l),
		middleware.Authenticate(tokens, l),
	)

	return handler
}
