package cask

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mr-karan/caskdb/internal/segment"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/zerodha/logf"
)

const (
	LOCKFILE = "cask.lock"
)

type Cask struct {
	sync.Mutex

	lo      logf.Logger
	bufPool sync.Pool // Pool of byte buffers used for writing.
	opts    Options
	metrics *metrics

	root     string
	keydir   KeyDir                      // In-memory hashmap of all keys.
	active   *segment.Segment            // Active segment. nil when the store isn't open.
	segments map[string]*segment.Segment // All segments by ID, the active one included.
	flockF   *os.File                    // Lockfile to prevent multiple write access to the same directory.
	done     chan struct{}               // Closed to stop background goroutines.
	wg       sync.WaitGroup

	// appendFn writes a frame to a segment. Replaced in tests to fail appends.
	appendFn func(*segment.Segment, []byte) (int64, error)
}

// initLogger initializes logger instance.
func initLogger(debug bool) logf.Logger {
	opts := logf.Opts{EnableCaller: true}
	if debug {
		opts.Level = logf.DebugLevel
	}
	return logf.New(opts)
}

// New initialises a store with the given configuration. It doesn't touch the
// filesystem; Open has to be called before the store can be used.
func New(cfg ...Config) (*Cask, error) {
	opts := DefaultOptions()
	for _, c := range cfg {
		if err := c(opts); err != nil {
			return nil, err
		}
	}

	if opts.allocator == nil {
		opts.allocator = segment.NewCalendarAllocator()
	}
	// Metrics go to a private registry unless one is given, so that multiple
	// stores can live in the same process.
	if opts.registerer == nil {
		opts.registerer = prometheus.NewRegistry()
	}

	lo := initLogger(opts.debug)
	if opts.logger != nil {
		lo = *opts.logger
	}

	return &Cask{
		lo:       lo,
		opts:     *opts,
		metrics:  newMetrics(opts.registerer),
		appendFn: (*segment.Segment).Append,
		bufPool: sync.Pool{New: func() any {
			return bytes.NewBuffer([]byte{})
		}},
	}, nil
}

// Open is a shorthand for New followed by Open on the returned store.
func Open(location string, cfg ...Config) (*Cask, error) {
	c, err := New(cfg...)
	if err != nil {
		return nil, err
	}
	if err := c.Open(location); err != nil {
		return nil, err
	}
	return c, nil
}

// Open prepares the store for reads and writes rooted at location.
// Missing directories are created. If replay is enabled, the keydir is rebuilt
// from the segments already present under location.
func (c *Cask) Open(location string) error {
	c.Lock()
	defer c.Unlock()

	if c.metrics == nil {
		return ErrUninitialised
	}
	if c.active != nil {
		return ErrAlreadyOpen
	}

	if err := os.MkdirAll(location, 0755); err != nil {
		return fmt.Errorf("error creating store directory: %w", err)
	}

	// Create a lockfile to ensure only one process writes to the directory.
	flockF, err := createFlockFile(filepath.Join(location, LOCKFILE))
	if err != nil {
		return fmt.Errorf("error creating lockfile: %w", err)
	}

	c.root = location
	c.flockF = flockF
	c.keydir = make(KeyDir, 0)
	c.segments = make(map[string]*segment.Segment)

	if c.opts.replay {
		if err := c.replay(); err != nil {
			c.release()
			return fmt.Errorf("error replaying segments: %w", err)
		}
	}

	if err := c.newActive(); err != nil {
		c.release()
		return err
	}

	c.lo.Info("opened store", "dir", location, "segment", c.active.ID(), "keys", c.keydir.Len())

	c.done = make(chan struct{})
	if c.opts.syncInterval != nil && *c.opts.syncInterval > 0 {
		c.wg.Add(1)
		go c.syncLoop(*c.opts.syncInterval, c.done)
	}

	return nil
}

// Close syncs and closes all the open file descriptors and releases the file lock.
// The store can be opened again afterwards.
func (c *Cask) Close() error {
	c.Lock()
	if c.active == nil || c.done == nil {
		c.Unlock()
		return ErrNotOpen
	}
	close(c.done)
	c.done = nil
	c.Unlock()

	// Background goroutines take the lock, so wait for them without holding it.
	c.wg.Wait()

	c.Lock()
	defer c.Unlock()

	err := c.release()
	c.lo.Info("closed store", "dir", c.root)

	return err
}

// release closes every segment and the lockfile and marks the store as not open.
// Errors are logged and the first one is returned.
func (c *Cask) release() error {
	var first error

	for id, seg := range c.segments {
		if err := seg.Close(); err != nil {
			c.lo.Error("error closing segment", "error", err, "id", id)
			if first == nil {
				first = err
			}
		}
	}

	if c.flockF != nil {
		if err := releaseFlockFile(c.flockF); err != nil {
			c.lo.Error("error releasing lock file", "error", err)
			if first == nil {
				first = err
			}
		}
	}

	c.active = nil
	c.segments = nil
	c.keydir = nil
	c.flockF = nil
	c.metrics.segments.Set(0)
	c.metrics.keys.Set(0)

	return first
}

// Put takes a key and value and encodes the data in bytes and writes to the active segment.
// It also stores the key with some metadata in memory.
// This metadata helps for faster reads as the position of the record is recorded so only
// a single disk seek is required to read value.
func (c *Cask) Put(k string, val []byte) error {
	c.Lock()
	defer c.Unlock()

	if c.active == nil {
		return ErrNotOpen
	}

	if err := validateKV(k, val); err != nil {
		return err
	}

	c.lo.Debug("storing data", "key", k, "size", len(val))
	return c.put(k, val)
}

// Get takes a key and finds the metadata in the in-memory hashtable (KeyDir).
// Using the offset present in metadata it finds the record in the segment with a single disk seek.
// It further verifies and decodes the record and returns the value for the given key.
func (c *Cask) Get(k string) ([]byte, error) {
	c.Lock()
	defer c.Unlock()

	if c.active == nil {
		return nil, ErrNotOpen
	}

	c.lo.Debug("fetching data", "key", k)
	return c.get(k)
}

// Len returns the total number of keys.
func (c *Cask) Len() int {
	c.Lock()
	defer c.Unlock()

	return len(c.keydir)
}

// Sync calls fsync(2) on the active segment.
func (c *Cask) Sync() error {
	c.Lock()
	defer c.Unlock()

	if c.active == nil {
		return ErrNotOpen
	}

	return c.active.Sync()
}

// syncLoop syncs the active segment at every interval until the store is closed.
func (c *Cask) syncLoop(interval time.Duration, done <-chan struct{}) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := c.Sync(); err != nil && !errors.Is(err, ErrNotOpen) {
				c.lo.Error("error syncing segment to disk", "error", err)
			}
		}
	}
}
