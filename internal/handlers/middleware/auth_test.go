package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/covalidate/licensesrv/internal/handlers/principalctx"
)

// Allow to use a function as token validator
type validatorFunc func(token string) (string, bool)

func (f validatorFunc) ExtractSubject(token string) (string, bool) {
	return f(token)
}

// Echoes the principal subject, or "anonymous" when there is none
var echoHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	subject := "anonymous"
	if p, ok := principalctx.FromContext(r.Context()); ok {
		subject = p.Subject
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(subject))
})

func get(t *testing.T, url string, authHeader string) (int, string) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	defer resp.Body.Close() // nolint:errcheck

	return resp.StatusCode, string(body)
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	accepting := validatorFunc(func(token string) (string, bool) {
		if token == "good-token" {
			return "license-admin", true
		}
		return "", false
	})

	srv := httptest.NewServer(Authenticate(accepting, nil)(echoHandler))
	defer srv.Close()

	t.Run("valid token sets principal", func(t *testing.T) {
		code, body := get(t, srv.URL+"/test", "Bearer good-token")

		require.Equal(t, http.StatusOK, code)
		require.Equal(t, "license-admin", body)
	})

	t.Run("no header stays anonymous", func(t *testing.T) {
		code, body := get(t, srv.URL+"/test", "")

		require.Equal(t, http.StatusOK, code, "absent token must not reject the request")
		require.Equal(t, "anonymous", body)
	})

	t.Run("bad token stays anonymous", func(t *testing.T) {
		code, body := get(t, srv.URL+"/test", "Bearer garbage")

		require.Equal(t, http.StatusOK, code, "unusable token must not reject the request")
		require.Equal(t, "anonymous", body)
	})

	t.Run("non bearer scheme stays anonymous", func(t *testing.T) {
		code, body := get(t, srv.URL+"/test", "Basic dXNlcjpwYXNz")

		require.Equal(t, http.StatusOK, code)
		require.Equal(t, "anonymous", body)
	})

	t.Run("empty bearer value stays anonymous", func(t *testing.T) {
		code, body := get(t, srv.URL+"/test", "Bearer ")

		require.Equal(t, http.StatusOK, code)
		require.Equal(t, "anonymous", body)
	})
}

func TestRequirePrincipal(t *testing.T) {
	t.Parallel()

	accepting := validatorFunc(func(token string) (string, bool) {
		if token == "good-token" {
			return "license-admin", true
		}
		return "", false
	})

	handler := Authenticate(accepting, nil)(RequirePrincipal()(echoHandler))
	srv := httptest.NewServer(handler)
	defer srv.Close()

	t.Run("authenticated passes", func(t *testing.T) {
		code, body := get(t, srv.URL+"/test", "Bearer good-token")

		require.Equal(t, http.StatusOK, code)
		require.Equal(t, "license-admin", body)
	})

	t.Run("anonymous rejected", func(t *testing.T) {
		code, body := get(t, srv.URL+"/test", "")

		require.Equal(t, http.StatusUnauthorized, code)
		require.JSONEq(t,
			`{
				"error": "service_error",
				"message": "Unauthorized"
			}`,
			body,
		)
	})

	t.Run("bad token rejected here, not at the gate", func(t *testing.T) {
		code, _ := get(t, srv.URL+"/test", "Bearer garbage")

		require.Equal(t, http.StatusUnauthorized, code)
	})
}
