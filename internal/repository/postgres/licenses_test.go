package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covalidate/licensesrv/internal/apperrors"
	"github.com/covalidate/licensesrv/internal/models"
	"github.com/covalidate/licensesrv/internal/testutil"
)

func newTestLicense(key string, validDays int) models.License {
	now := time.Now()
	return models.License{
		ID:             uuid.New(),
		CreatedAt:      now,
		LicenseKey:     key,
		Email:          "owner@example.com",
		HardwareID:     nil,
		ExpirationDate: models.DateOnly(now.AddDate(0, 0, validDays)),
		Active:         false,
	}
}

func Test_LicenseRepo(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	// Helper to run tests with its own LicenseRepo in transaction
	// When test end rollback
	withTx := func(dbpool *pgxpool.Pool, t *testing.T, testFunc func(*LicenseRepo)) {
		tx, err := dbpool.Begin(t.Context())
		require.NoError(t, err)

		defer func() {
			err := tx.Rollback(t.Context())
			require.NoError(t, err)
		}()

		testFunc(&LicenseRepo{DB: tx})
	}

	t.Run("create ok", func(t *testing.T) {
		withTx(pg.Pool, t, func(r *LicenseRepo) {
			license := newTestLicense("KEY-1", 30)

			created, err := r.Create(t.Context(), license)

			require.NoError(t, err)
			assert.Equal(t, license.ID, created.ID)
			assert.Equal(t, "KEY-1", created.LicenseKey)
			assert.Equal(t, "owner@example.com", created.Email)
			assert.Nil(t, created.HardwareID, "hardware id should be unset on creation")
			assert.False(t, created.Active, "license should not be active on creation")
			assert.Equal(t, license.ExpirationDate, models.DateOnly(created.ExpirationDate))
		})
	})

	t.Run("create duplicate key fails", func(t *testing.T) {
		withTx(pg.Pool, t, func(r *LicenseRepo) {
			_, err := r.Create(t.Context(), newTestLicense("KEY-DUP", 30))
			require.NoError(t, err)

			_, err = r.Create(t.Context(), newTestLicense("KEY-DUP", 60))
			assert.Error(t, err, "should fail on duplicate license key")
			assert.ErrorIs(t, err, apperrors.ErrLicenseExists, "duplicate must map to well defined error")
		})
	})

	t.Run("get by key", func(t *testing.T) {
		withTx(pg.Pool, t, func(r *LicenseRepo) {
			created, err := r.Create(t.Context(), newTestLicense("KEY-GET", 30))
			require.NoError(t, err)

			got, err := r.GetByKey(t.Context(), "KEY-GET")
			require.NoError(t, err)
			assert.Equal(t, created.ID, got.ID)

			_, err = r.GetByKey(t.Context(), "KEY-MISSING")
			assert.ErrorIs(t, err, apperrors.ErrLicenseNotFound)
		})
	})

	t.Run("exists by key", func(t *testing.T) {
		withTx(pg.Pool, t, func(r *LicenseRepo) {
			_, err := r.Create(t.Context(), newTestLicense("KEY-EXISTS", 30))
			require.NoError(t, err)

			exists, err := r.ExistsByKey(t.Context(), "KEY-EXISTS")
			require.NoError(t, err)
			assert.True(t, exists)

			exists, err = r.ExistsByKey(t.Context(), "KEY-NOPE")
			require.NoError(t, err)
			assert.False(t, exists)
		})
	})

	t.Run("bind hardware", func(t *testing.T) {
		t.Run("binds unbound license", func(t *testing.T) {
			withTx(pg.Pool, t, func(r *LicenseRepo) {
				_, err := r.Create(t.Context(), newTestLicense("KEY-BIND", 30))
				require.NoError(t, err)

				bound, err := r.BindHardware(t.Context(), "KEY-BIND", "HW-1")

				require.NoError(t, err)
				require.NotNil(t, bound.HardwareID)
				assert.Equal(t, "HW-1", *bound.HardwareID)
				assert.True(t, bound.Active, "binding must set active together with hwid")
			})
		})

		t.Run("second bind loses", func(t *testing.T) {
			withTx(pg.Pool, t, func(r *LicenseRepo) {
				_, err := r.Create(t.Context(), newTestLicense("KEY-RACE", 30))
				require.NoError(t, err)

				_, err = r.BindHardware(t.Context(), "KEY-RACE", "HW-1")
				require.NoError(t, err)

				// Second bind must not overwrite, even with another hardware id
				_, err = r.BindHardware(t.Context(), "KEY-RACE", "HW-2")
				assert.ErrorIs(t, err, apperrors.ErrLicenseAlreadyBound)

				got, err := r.GetByKey(t.Context(), "KEY-RACE")
				require.NoError(t, err)
				require.NotNil(t, got.HardwareID)
				assert.Equal(t, "HW-1", *got.HardwareID, "first binding must survive")
			})
		})

		t.Run("missing license reported as already bound", func(t *testing.T) {
			withTx(pg.Pool, t, func(r *LicenseRepo) {
				_, err := r.BindHardware(t.Context(), "KEY-GONE", "HW-1")
				assert.ErrorIs(t, err, apperrors.ErrLicenseAlreadyBound, "caller re-reads and resolves to not found")
			})
		})
	})

	t.Run("list expiring on date", func(t *testing.T) {
		withTx(pg.Pool, t, func(r *LicenseRepo) {
			tomorrow := models.DateOnly(time.Now().AddDate(0, 0, 1))

			// Expiring tomorrow and active
			_, err := r.Create(t.Context(), newTestLicense("KEY-EXP-1", 1))
			require.NoError(t, err)
			_, err = r.BindHardware(t.Context(), "KEY-EXP-1", "HW-1")
			require.NoError(t, err)

			// Expiring tomorrow but never activated: must not be warned
			_, err = r.Create(t.Context(), newTestLicense("KEY-EXP-2", 1))
			require.NoError(t, err)

			// Active but expiring later
			_, err = r.Create(t.Context(), newTestLicense("KEY-EXP-3", 30))
			require.NoError(t, err)
			_, err = r.BindHardware(t.Context(), "KEY-EXP-3", "HW-3")
			require.NoError(t, err)

			licenses, err := r.ListExpiringOn(t.Context(), tomorrow)

			require.NoError(t, err)
			require.Len(t, licenses, 1)
			assert.Equal(t, "KEY-EXP-1", licenses[0].LicenseKey)
		})
	})

	t.Run("list all", func(t *testing.T) {
		withTx(pg.Pool, t, func(r *LicenseRepo) {
			_, err := r.Create(t.Context(), newTestLicense("KEY-ALL-1", 30))
			require.NoError(t, err)
			_, err = r.Create(t.Context(), newTestLicense("KEY-ALL-2", 60))
			require.NoError(t, err)

			licenses, err := r.ListAll(t.Context())

			require.NoError(t, err)
			assert.Len(t, licenses, 2)
		})
	})
}
