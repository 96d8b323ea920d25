package handlers

import (
	"net/http"

	"github.com/covalidate/licensesrv/internal/handlers/render"
	"github.com/covalidate/licensesrv/internal/logger"
	"github.com/covalidate/licensesrv/internal/models"
)

type tokenService interface {
	// Issue mints an encrypted token for the subject
	Issue(subject string) (models.IssuedToken, error)

	// Best effort subject extraction, false for any unusable token
	ExtractSubject(token string) (string, bool)
}

func handleIssueToken(tokens tokenService, l logger.Logger) http.Handler {
	type IssueRequest struct {
		Subject string `json:"subject" validate:"required,min=2,max=64"`
	}
	type IssueResponse struct {
		Token   string `json:"token"`
		Type    string `json:"type"`
		Subject string `json:"subject"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[IssueRequest](w, r)
		if err != nil {
			return
		}

		issued, err := tokens.Issue(data.Subject)
		if err != nil {
			l.Error("Token issuing failed", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, IssueResponse{
			Token:   issued.Value,
			Type:    "Bearer",
			Subject: data.Subject,
		})
	})
}
