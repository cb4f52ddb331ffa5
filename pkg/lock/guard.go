package lock

import (
	"context"
	"errors"
)

// Guard layers a process-local KeyedMutex in front of an optional
// distributed Locker, so goroutines of one replica queue locally instead of
// polling the shared store.
type Guard struct {
	local  *KeyedMutex
	remote Locker
}

func NewGuard(local *KeyedMutex, remote Locker) *Guard {
	return &Guard{local: local, remote: remote}
}

func (g *Guard) Lock(ctx context.Context, key string) (Unlock, error) {
	releaseLocal, err := g.local.Lock(ctx, key)
	if err != nil {
		return nil, err
	}
	if g.remote == nil {
		return releaseLocal, nil
	}

	releaseRemote, err := g.remote.Lock(ctx, key)
	if err != nil {
		_ = releaseLocal(ctx)
		return nil, err
	}

	return func(ctx context.Context) error {
		remoteErr := releaseRemote(ctx)
		localErr := releaseLocal(ctx)
		return errors.Join(remoteErr, localErr)
	}, nil
}
