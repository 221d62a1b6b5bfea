package crawl_test

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/fwojciec/trawl"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memKV is a map-backed trawl.KV for stateful tests. TTLs are ignored.
type memKV struct {
	mu     sync.Mutex
	values map[string]string
}

var _ trawl.KV = (*memKV)(nil)

func newMemKV() *memKV {
	return &memKV{values: make(map[string]string)}
}

func (kv *memKV) Get(_ context.Context, key string) (string, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	v, ok := kv.values[key]
	if !ok {
		return "", trawl.Errorf(trawl.ENOTFOUND, "key %q not found", key)
	}
	return v, nil
}

func (kv *memKV) Set(_ context.Context, key, value string, _ time.Duration) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.values[key] = value
	return nil
}

func (kv *memKV) SetNX(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if _, ok := kv.values[key]; ok {
		return false, nil
	}
	kv.values[key] = value
	return true, nil
}

func (kv *memKV) Del(_ context.Context, key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	delete(kv.values, key)
	return nil
}

func (kv *memKV) IncrByFloat(_ context.Context, key string, delta float64) (float64, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	var cur float64
	if raw, ok := kv.values[key]; ok {
		var err error
		if cur, err = strconv.ParseFloat(raw, 64); err != nil {
			return 0, trawl.Errorf(trawl.EINVALID, "non-numeric cell %q", key)
		}
	}
	cur += delta
	kv.values[key] = strconv.FormatFloat(cur, 'f', -1, 64)
	return cur, nil
}

// memLocker is an in-process trawl.Locker for tests.
type memLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

var _ trawl.Locker = (*memLocker)(nil)

func newMemLocker() *memLocker {
	return &memLocker{held: make(map[string]bool)}
}

func (l *memLocker) Acquire(_ context.Context, name string, _ time.Duration) (trawl.Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[name] {
		return nil, trawl.Errorf(trawl.ECONFLICT, "lock %q held", name)
	}
	l.held[name] = true
	return &memLease{locker: l, name: name}, nil
}

type memLease struct {
	locker *memLocker
	name   string
}

func (l *memLease) Extend(context.Context, time.Duration) error { return nil }

func (l *memLease) Release(context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()
	delete(l.locker.held, l.name)
	return nil
}
