// Package store reads and stamps per-subject aggregation records. The
// sub-capabilities write the records; backends differ only in where they
// keep them.
package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	cerrors "github.com/spawn-mcp/campaign-synth/pkg/errors"
	"github.com/spawn-mcp/campaign-synth/pkg/types"
)

// ErrNotFound is returned by Get when no record exists for the key.
var ErrNotFound = stderrors.New("record not found")

// Key identifies a record.
type Key struct {
	SubjectID string
	OwnerID   string
}

func (k Key) String() string {
	return k.OwnerID + "#" + k.SubjectID
}

// Consistency describes when a write becomes visible to Get.
type Consistency int

const (
	// Strong stores return every acknowledged write.
	Strong Consistency = iota
	// Eventual stores may briefly miss a recent write.
	Eventual
)

func (c Consistency) String() string {
	if c == Eventual {
		return "eventual"
	}
	return "strong"
}

// Store is an aggregation store backend.
type Store interface {
	// Get returns the record with the strongest read consistency the
	// backend offers.
	Get(ctx context.Context, key Key) (types.SubjectRecord, error)
	// Merge sets fields on the record, leaving the others untouched.
	Merge(ctx context.Context, key Key, fields map[string]any) error
	Consistency() Consistency
}

// PollConfig bounds ReadAfterWrite.
type PollConfig struct {
	Initial     time.Duration
	MaxInterval time.Duration
	// MaxElapsed is the total time spent waiting for the record to appear.
	// Zero means a single read.
	MaxElapsed time.Duration
}

// DefaultPollConfig polls for up to five seconds.
var DefaultPollConfig = PollConfig{
	Initial:     100 * time.Millisecond,
	MaxInterval: time.Second,
	MaxElapsed:  5 * time.Second,
}

// ReadAfterWrite reads the record. Strong stores get a single read; eventual
// ones are polled while the record is not yet visible. A record that never
// appears yields ErrResourceNotFound; other read errors stop at once.
func ReadAfterWrite(ctx context.Context, s Store, key Key, cfg PollConfig) (types.SubjectRecord, error) {
	var rec types.SubjectRecord
	read := func() error {
		r, err := s.Get(ctx, key)
		if stderrors.Is(err, ErrNotFound) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		rec = r
		return nil
	}

	var policy backoff.BackOff = &backoff.StopBackOff{}
	if s.Consistency() == Eventual && cfg.MaxElapsed > 0 {
		eb := backoff.NewExponentialBackOff()
		if cfg.Initial > 0 {
			eb.InitialInterval = cfg.Initial
		}
		if cfg.MaxInterval > 0 {
			eb.MaxInterval = cfg.MaxInterval
		}
		eb.MaxElapsedTime = cfg.MaxElapsed
		policy = eb
	}

	err := backoff.Retry(read, backoff.WithContext(policy, ctx))
	switch {
	case err == nil:
		return rec, nil
	case stderrors.Is(err, ErrNotFound), ctx.Err() != nil:
		return nil, cerrors.Wrapf(err, cerrors.ErrResourceNotFound, "record %s not visible", key).
			WithContext("subject_id", key.SubjectID).
			WithContext("owner_id", key.OwnerID)
	default:
		return nil, fmt.Errorf("read record %s: %w", key, err)
	}
}

// stamp adds the update time to fields without mutating the caller's map.
func stamp(fields map[string]any, now time.Time) map[string]any {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out[types.FieldUpdatedAt] = now.UTC().Format(time.RFC3339)
	return out
}
