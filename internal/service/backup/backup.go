// Package backup implements the nightly export of the license table to an
// S3 compatible bucket.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/covalidate/licensesrv/internal/logger"
	"github.com/covalidate/licensesrv/internal/repository"
)

// DefaultSchedule runs the export every night at two
const DefaultSchedule = "0 2 * * *"

// DefaultMaxFiles bounds how many exports are kept in the bucket
const DefaultMaxFiles = 30

const keyPrefix = "licenses-"

// ObjectStore is the slice of the bucket API the job needs
// Implemented by S3Store, faked in tests
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte) error
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
}

type Job struct {
	licenses repository.LicenseRepo
	store    ObjectStore
	logger   logger.Logger
	maxFiles int

	// Clock, replaceable in tests
	now func() time.Time
}

func NewJob(licenses repository.LicenseRepo, store ObjectStore, l logger.Logger, maxFiles int) *Job {
	if l == nil {
		l = logger.NewNoOpLogger()
	}
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}

	return &Job{
		licenses: licenses,
		store:    store,
		logger:   l,
		maxFiles: maxFiles,
		now:      time.Now,
	}
}

// Run exports every license as one timestamped JSON object and prunes the
// oldest exports beyond the configured limit
// A pruning failure is logged but does not fail the run, the new export is
// already durable at that point
func (j *Job) Run(ctx context.Context) error {
	licenses, err := j.licenses.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list licenses for backup: %w", err)
	}

	body, err := json.MarshalIndent(licenses, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal licenses for backup: %w", err)
	}

	key := keyPrefix + j.now().UTC().Format("20060102-150405") + ".json"
	if err := j.store.Put(ctx, key, body); err != nil {
		return fmt.Errorf("upload backup %q: %w", key, err)
	}

	j.logger.Info("License backup uploaded", "key", key, "licenses", len(licenses))

	if err := j.prune(ctx); err != nil {
		j.logger.Error("Backup pruning failed", "error", err)
	}

	return nil
}

// prune deletes the oldest exports once more than maxFiles accumulate
// The timestamp in the key sorts lexicographically, so plain string order is
// chronological order
func (j *Job) prune(ctx context.Context) error {
	keys, err := j.store.List(ctx, keyPrefix)
	if err != nil {
		return fmt.Errorf("list backups: %w", err)
	}
	if len(keys) <= j.maxFiles {
		return nil
	}

	sort.Strings(keys)
	for _, key := range keys[:len(keys)-j.maxFiles] {
		if err := j.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("delete old backup %q: %w", key, err)
		}
		j.logger.Info("Old license backup pruned", "key", key)
	}

	return nil
}
