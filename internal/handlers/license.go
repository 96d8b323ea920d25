package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/covalidate/licensesrv/internal/apperrors"
	"github.com/covalidate/licensesrv/internal/handlers/render"
	"github.com/covalidate/licensesrv/internal/logger"
	"github.com/covalidate/licensesrv/internal/models"
)

type licenseService interface {
	// Create stores a new unbound license
	// Has to return apperrors.ErrLicenseExists if the key is taken
	Create(ctx context.Context, licenseKey string, email string, validDays int) (models.License, error)

	// Activate binds on first use and validates on every later one
	// Has to return apperrors.ErrLicenseNotFound, apperrors.ErrHardwareMismatch
	// or apperrors.ErrLicenseExpired accordingly
	Activate(ctx context.Context, licenseKey string, hardwareID string) (models.Activation, error)
}

// Activation outcome names shared with client software
const (
	statusOK               = "OK"
	statusNotFound         = "NOT_FOUND"
	statusHardwareMismatch = "HARDWARE_MISMATCH"
	statusExpired          = "EXPIRED"
)

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func handleCreateLicense(licenses licenseService, l logger.Logger) http.Handler {
	type CreateRequest struct {
		LicenseKey string `json:"licenseKey" validate:"required,min=4,max=128"`
		Email      string `json:"email" validate:"required,email"`
		ValidDays  int    `json:"validDays" validate:"required,days30"`
	}
	type CreateResponse struct {
		ID             string `json:"id"`
		LicenseKey     string `json:"licenseKey"`
		Email          string `json:"email"`
		ExpirationDate string `json:"expirationDate"`
		Active         bool   `json:"active"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[CreateRequest](w, r)
		if err != nil {
			return
		}

		created, err := licenses.Create(r.Context(), data.LicenseKey, data.Email, data.ValidDays)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrLicenseExists):
				render.ServiceError(w, "License key already exists", http.StatusConflict)
			default:
				l.Error("License creation failed", "error", err)
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		render.JSON(w, CreateResponse{
			ID:             created.ID.String(),
			LicenseKey:     created.LicenseKey,
			Email:          created.Email,
			ExpirationDate: created.ExpirationDate.Format(time.DateOnly),
			Active:         created.Active,
		})
	})
}

func handleActivateLicense(licenses licenseService, l logger.Logger) http.Handler {
	type ActivateRequest struct {
		LicenseKey string `json:"licenseKey" validate:"required,min=4,max=128"`
		HardwareID string `json:"hwid" validate:"required,min=4,max=128"`
	}
	type ActivateResponse struct {
		Status         string `json:"status"`
		ExpirationDate string `json:"expirationDate"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[ActivateRequest](w, r)
		if err != nil {
			return
		}

		activation, err := licenses.Activate(r.Context(), data.LicenseKey, data.HardwareID)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrLicenseNotFound):
				render.JSONWithStatus(w, statusResponse{
					Status:  statusNotFound,
					Message: "License not found",
				}, http.StatusNotFound)
			case errors.Is(err, apperrors.ErrHardwareMismatch):
				render.JSONWithStatus(w, statusResponse{
					Status:  statusHardwareMismatch,
					Message: "License is bound to different hardware",
				}, http.StatusForbidden)
			case errors.Is(err, apperrors.ErrLicenseExpired):
				render.JSONWithStatus(w, statusResponse{
					Status:  statusExpired,
					Message: "License has expired",
				}, http.StatusGone)
			default:
				l.Error("License activation failed", "error", err)
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		render.JSON(w, ActivateResponse{
			Status:         statusOK,
			ExpirationDate: activation.ExpirationDate.Format(time.DateOnly),
		})
	})
}
