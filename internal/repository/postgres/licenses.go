package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/covalidate/licensesrv/internal/apperrors"
	"github.com/covalidate/licensesrv/internal/models"
)

type LicenseRepo struct {
	DB DBTX
}

const createLicense = `-- name: CreateLicense
INSERT INTO licenses (id, created_at, license_key, email, hwid, expiration_date, active)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, created_at, license_key, email, hwid, expiration_date, active
`

func (r *LicenseRepo) Create(ctx context.Context, license models.License) (models.License, error) {
	rows, _ := r.DB.Query(ctx, createLicense,
		license.ID, license.CreatedAt, license.LicenseKey, license.Email,
		license.HardwareID, license.ExpirationDate, license.Active,
	)
	l, err := pgx.CollectOneRow(rows, rowToLicense)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgerrcode.IsIntegrityConstraintViolation(pgErr.Code) {
			return l, fmt.Errorf("repo error: %w", apperrors.ErrLicenseExists)
		}
		return l, fmt.Errorf("db error: %w", err)
	}

	return l, nil
}

const getLicenseByKey = `-- name: GetLicenseByKey
SELECT id, created_at, license_key, email, hwid, expiration_date, active
FROM licenses
WHERE license_key = $1
`

func (r *LicenseRepo) GetByKey(ctx context.Context, licenseKey string) (models.License, error) {
	rows, _ := r.DB.Query(ctx, getLicenseByKey, licenseKey)
	l, err := pgx.CollectOneRow(rows, rowToLicense)

	switch {
	case err == nil:
		return l, nil
	case errors.Is(err, pgx.ErrNoRows):
		return l, fmt.Errorf("repo error: %w", apperrors.ErrLicenseNotFound)
	default:
		return l, fmt.Errorf("db error: %w", err)
	}
}

const licenseExistsByKey = `-- name: LicenseExistsByKey
SELECT EXISTS (SELECT 1 FROM licenses WHERE license_key = $1)
`

func (r *LicenseRepo) ExistsByKey(ctx context.Context, licenseKey string) (bool, error) {
	rows, _ := r.DB.Query(ctx, licenseExistsByKey, licenseKey)
	exists, err := pgx.CollectOneRow(rows, pgx.RowTo[bool])
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

// Bind hardware only if the license is unbound still
// The 'hwid IS NULL' predicate is the compare and swap: the row lock makes sure
// of two concurrent first activations exactly one gets the update
const bindHardware = `-- name: BindHardware
UPDATE licenses
SET hwid = $2, active = TRUE
WHERE license_key = $1 AND hwid IS NULL
RETURNING id, created_at, license_key, email, hwid, expiration_date, active
`

func (r *LicenseRepo) BindHardware(ctx context.Context, licenseKey string, hardwareID string) (models.License, error) {
	rows, _ := r.DB.Query(ctx, bindHardware, licenseKey, hardwareID)
	l, err := pgx.CollectOneRow(rows, rowToLicense)

	switch {
	case err == nil:
		return l, nil
	case errors.Is(err, pgx.ErrNoRows):
		// Either the license does not exist or somebody bound it first
		// The caller has to re-read and decide
		return l, fmt.Errorf("repo error: %w", apperrors.ErrLicenseAlreadyBound)
	default:
		return l, fmt.Errorf("db error: %w", err)
	}
}

const listExpiringOn = `-- name: ListExpiringOn
SELECT id, created_at, license_key, email, hwid, expiration_date, active
FROM licenses
WHERE expiration_date = $1 AND active
ORDER BY license_key
`

func (r *LicenseRepo) ListExpiringOn(ctx context.Context, date time.Time) ([]models.License, error) {
	rows, _ := r.DB.Query(ctx, listExpiringOn, models.DateOnly(date))
	licenses, err := pgx.CollectRows(rows, rowToLicense)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return licenses, nil
}

const listAllLicenses = `-- name: ListAllLicenses
SELECT id, created_at, license_key, email, hwid, expiration_date, active
FROM licenses
ORDER BY created_at
`

func (r *LicenseRepo) ListAll(ctx context.Context) ([]models.License, error) {
	rows, _ := r.DB.Query(ctx, listAllLicenses)
	licenses, err := pgx.CollectRows(rows, rowToLicense)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return licenses, nil
}

func rowToLicense(row pgx.CollectableRow) (models.License, error) {
	var l models.License
	err := row.Scan(&l.ID, &l.CreatedAt, &l.LicenseKey, &l.Email, &l.HardwareID, &l.ExpirationDate, &l.Active)
	return l, err
}
