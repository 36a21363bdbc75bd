// Package timeouts holds the request and job deadlines shared by handlers,
// stores and background tasks. Values come from configuration at startup.
package timeouts

import (
	"sync"
	"time"
)

const (
	DefaultShort  = 5 * time.Second
	DefaultMedium = 10 * time.Second
	DefaultBatch  = 60 * time.Second
)

// Config overrides the defaults; zero fields keep the current value.
type Config struct {
	Short  time.Duration // single-document lookups
	Medium time.Duration // aggregations and multi-query pages
	Batch  time.Duration // one background job run
}

var (
	mu     sync.RWMutex
	short  = DefaultShort
	medium = DefaultMedium
	batch  = DefaultBatch
)

// Configure applies cfg.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	if cfg.Short > 0 {
		short = cfg.Short
	}
	if cfg.Medium > 0 {
		medium = cfg.Medium
	}
	if cfg.Batch > 0 {
		batch = cfg.Batch
	}
}

// Reset restores the defaults.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	short, medium, batch = DefaultShort, DefaultMedium, DefaultBatch
}

func Short() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return short
}

func Medium() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return medium
}

func Batch() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return batch
}
