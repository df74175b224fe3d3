package csvfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

const lockPoll = 10 * time.Millisecond

var errWouldBlock = errors.New("lock held")

// lockDir takes an exclusive lock on path, creating it if needed, and polls
// until the lock is free or ctx is done. The returned func releases it.
func lockDir(ctx context.Context, path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	ticker := time.NewTicker(lockPoll)
	defer ticker.Stop()
	for {
		err := tryLock(f)
		if err == nil {
			break
		}
		if !errors.Is(err, errWouldBlock) {
			f.Close()
			return nil, fmt.Errorf("locking %s: %w", path, err)
		}
		select {
		case <-ctx.Done():
			f.Close()
			return nil, fmt.Errorf("waiting for %s: %w", path, ctx.Err())
		case <-ticker.C:
		}
	}

	return func() {
		_ = unlock(f)
		_ = f.Close()
	}, nil
}
