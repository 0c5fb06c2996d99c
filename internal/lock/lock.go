// Package lock serializes reconciliation runs against the same persisted
// registries, either through Redis or through a lock file next to the
// registries.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrRunLocked another run holds the lock
	ErrRunLocked = errors.New("another reconciliation run holds the lock")
	// ErrNotHeld release of a lock this holder does not own
	ErrNotHeld = errors.New("lock is not held by this run")
)

// Locker run lock
type Locker interface {
	Acquire(ctx context.Context) error
	Release(ctx context.Context) error
}

// releaseScript deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock SET NX PX lock with a per-holder token
type RedisLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	token  string
	logger *zap.Logger
}

// NewRedisLock creates a lock on key. An empty token gets a random uuid.
func NewRedisLock(client *redis.Client, key string, ttl time.Duration, token string, logger *zap.Logger) *RedisLock {
	if token == "" {
		token = uuid.NewString()
	}
	return &RedisLock{client: client, key: key, ttl: ttl, token: token, logger: logger}
}

// Acquire takes the lock or fails with ErrRunLocked.
func (l *RedisLock) Acquire(ctx context.Context) error {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to acquire run lock %s: %w", l.key, err)
	}
	if !ok {
		holder, _ := l.client.Get(ctx, l.key).Result()
		l.logger.Warn("run lock is held", zap.String("key", l.key), zap.String("holder", holder))
		return fmt.Errorf("%w: %s", ErrRunLocked, l.key)
	}
	l.logger.Info("run lock acquired", zap.String("key", l.key), zap.Duration("ttl", l.ttl))
	return nil
}

// Release deletes the key if this holder still owns it. A lock that
// expired and was taken by another run yields ErrNotHeld.
func (l *RedisLock) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int()
	if err != nil {
		return fmt.Errorf("failed to release run lock %s: %w", l.key, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotHeld, l.key)
	}
	l.logger.Info("run lock released", zap.String("key", l.key))
	return nil
}

// FileLock exclusive lock file holding the owner's token. A lock file
// older than ttl is considered abandoned and is taken over.
type FileLock struct {
	path   string
	ttl    time.Duration
	token  string
	logger *zap.Logger
	now    func() time.Time
}

// NewFileLock creates a lock at path. An empty token gets a random uuid.
func NewFileLock(path string, ttl time.Duration, token string, logger *zap.Logger) *FileLock {
	if token == "" {
		token = uuid.NewString()
	}
	return &FileLock{path: path, ttl: ttl, token: token, logger: logger, now: time.Now}
}

// Acquire creates the lock file or fails with ErrRunLocked.
func (l *FileLock) Acquire(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			_, werr := f.WriteString(l.token)
			cerr := f.Close()
			if werr != nil || cerr != nil {
				_ = os.Remove(l.path)
				return fmt.Errorf("failed to write lock file %s: %w", l.path, errors.Join(werr, cerr))
			}
			l.logger.Info("run lock acquired", zap.String("path", l.path))
			return nil
		}
		if !errors.Is(err, os.ErrExist) {
			return fmt.Errorf("failed to create lock file %s: %w", l.path, err)
		}
		if attempt > 0 || !l.stale() {
			break
		}
		l.logger.Warn("removing abandoned run lock", zap.String("path", l.path))
		if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove abandoned lock file %s: %w", l.path, err)
		}
	}

	holder, _ := os.ReadFile(l.path)
	l.logger.Warn("run lock is held", zap.String("path", l.path), zap.String("holder", string(holder)))
	return fmt.Errorf("%w: %s", ErrRunLocked, l.path)
}

func (l *FileLock) stale() bool {
	if l.ttl <= 0 {
		return false
	}
	info, err := os.Stat(l.path)
	if err != nil {
		return false
	}
	return l.now().Sub(info.ModTime()) > l.ttl
}

// Release removes the lock file if it still holds this run's token.
func (l *FileLock) Release(ctx context.Context) error {
	b, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotHeld, l.path)
		}
		return fmt.Errorf("failed to read lock file %s: %w", l.path, err)
	}
	if strings.TrimSpace(string(b)) != l.token {
		return fmt.Errorf("%w: %s", ErrNotHeld, l.path)
	}
	if err := os.Remove(l.path); err != nil {
		return fmt.Errorf("failed to remove lock file %s: %w", l.path, err)
	}
	l.logger.Info("run lock released", zap.String("path", l.path))
	return nil
}
