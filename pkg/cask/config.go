package cask

import (
	"time"

	"github.com/mr-karan/caskdb/internal/segment"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/zerodha/logf"
)

const (
	defaultCapacity = segment.DefaultCapacity
)

// Options represents configuration options for managing a datastore.
type Options struct {
	debug          bool                  // Enable debug logging.
	capacity       int                   // Max number of records in a segment before it's rotated.
	maxSegmentSize int64                 // Max size of a segment in bytes. 0 means no limit.
	alwaysFSync    bool                  // Should flush filesystem buffer after every write.
	syncInterval   *time.Duration        // Interval to sync the active segment on disk.
	replay         bool                  // Rebuild the keydir from the segments on disk when opening.
	allocator      segment.Allocator     // Hands out identities for new segments.
	registerer     prometheus.Registerer // Where the store's metrics are registered.
	logger         *logf.Logger          // Logger to use instead of building one.
}

// Config is a function on the Options for caskdb.
// These are used to configure particular options.
type Config func(*Options) error

func DefaultOptions() *Options {
	return &Options{
		debug:       false,
		capacity:    defaultCapacity,
		alwaysFSync: true,
	}
}

func WithDebug() Config {
	return func(o *Options) error {
		o.debug = true
		return nil
	}
}

// WithCapacity sets the max number of records a segment holds.
func WithCapacity(capacity int) Config {
	return func(o *Options) error {
		if capacity < 1 {
			return ErrInvalidCapacity
		}
		o.capacity = capacity
		return nil
	}
}

func WithMaxSegmentSize(size int64) Config {
	return func(o *Options) error {
		o.maxSegmentSize = size
		return nil
	}
}

func WithAlwaysSync() Config {
	return func(o *Options) error {
		o.alwaysFSync = true
		o.syncInterval = nil
		return nil
	}
}

// WithSyncInterval disables the fsync after every write and syncs the active
// segment in background at the given interval instead.
func WithSyncInterval(interval time.Duration) Config {
	return func(o *Options) error {
		o.alwaysFSync = false
		o.syncInterval = &interval
		return nil
	}
}

func WithReplay() Config {
	return func(o *Options) error {
		o.replay = true
		return nil
	}
}

func WithAllocator(a segment.Allocator) Config {
	return func(o *Options) error {
		o.allocator = a
		return nil
	}
}

func WithRegisterer(r prometheus.Registerer) Config {
	return func(o *Options) error {
		o.registerer = r
		return nil
	}
}

func WithLogger(lo logf.Logger) Config {
	return func(o *Options) error {
		o.logger = &lo
		return nil
	}
}
