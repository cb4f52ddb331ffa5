// Package lock serializes work on a key, both across goroutines of one
// process and across replicas sharing a store.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"labbook/pkg/timeslot"
)

// ErrNotAcquired is returned when a lock could not be taken before the wait
// deadline.
var ErrNotAcquired = errors.New("lock not acquired")

const minLeaseMargin = 250 * time.Millisecond

// Unlock releases a held lock. It is safe to call once.
type Unlock func(ctx context.Context) error

type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}

// SlotKey names the critical section for one lab on one calendar day.
func SlotKey(labID string, day time.Time) string {
	return fmt.Sprintf("slot:%s:%s", labID, timeslot.FormatDate(day))
}

// Lease is how long a holder may keep working after taking a lock that
// expires after ttl. Work still running past the lease may overlap with the
// next holder on another replica. A zero ttl means no expiry.
func Lease(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	margin := max(ttl/5, minLeaseMargin)
	if margin >= ttl {
		return ttl / 2
	}
	return ttl - margin
}

// LockAll acquires every distinct key in sorted order so two callers that
// need overlapping sets cannot deadlock. On failure the keys already held
// are released.
func LockAll(ctx context.Context, l Locker, keys ...string) (Unlock, error) {
	unique := make(map[string]struct{}, len(keys))
	ordered := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := unique[k]; ok {
			continue
		}
		unique[k] = struct{}{}
		ordered = append(ordered, k)
	}
	sort.Strings(ordered)

	held := make([]Unlock, 0, len(ordered))
	releaseAll := func(ctx context.Context) error {
		var errs []error
		for i := len(held) - 1; i >= 0; i-- {
			if err := held[i](ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	for _, k := range ordered {
		unlock, err := l.Lock(ctx, k)
		if err != nil {
			_ = releaseAll(context.WithoutCancel(ctx))
			return nil, err
		}
		held = append(held, unlock)
	}

	return releaseAll, nil
}

// retry calls try until it reports success, returns an error, or wait
// elapses.
func retry(ctx context.Context, wait time.Duration, try func(context.Context) (bool, error)) error {
	deadline := time.Now().Add(wait)
	backoff := 10 * time.Millisecond

	for {
		ok, err := try(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if time.Now().Add(backoff).After(deadline) {
			return ErrNotAcquired
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		backoff *= 2
		if backoff > 200*time.Millisecond {
			backoff = 200 * time.Millisecond
		}
	}
}
