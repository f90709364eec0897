package cask

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/mr-karan/caskdb/internal/record"
	"github.com/mr-karan/caskdb/internal/segment"
)

const maxAllocAttempts = 16

func (c *Cask) get(k string) ([]byte, error) {
	// Check for entry in KeyDir.
	meta, ok := c.keydir.Get(k)
	if !ok {
		c.metrics.failures.WithLabelValues(failNotFound).Inc()
		return nil, ErrKeyNotFound
	}

	seg, ok := c.segments[meta.SegmentID]
	if !ok {
		c.metrics.failures.WithLabelValues(failSegmentMismatch).Inc()
		return nil, fmt.Errorf("%w: %s", ErrSegmentMismatch, meta.SegmentID)
	}

	// Read the record with the given offset.
	frame, err := seg.ReadAt(meta.RecordPos, meta.RecordSize)
	if err != nil {
		c.metrics.failures.WithLabelValues(failRead).Inc()
		return nil, fmt.Errorf("error reading data from segment: %w", err)
	}

	rec, err := record.Decode(frame)
	if err != nil {
		kind := failRead
		if errors.Is(err, ErrChecksumMismatch) {
			kind = failChecksum
		}
		c.metrics.failures.WithLabelValues(kind).Inc()
		c.lo.Error("error decoding record", "key", k, "segment", meta.SegmentID, "pos", meta.RecordPos, "error", err)
		return nil, fmt.Errorf("error decoding record: %w", err)
	}

	// A record which passed the checksum but belongs to another key means the
	// keydir went out of sync with the disk.
	if rec.Key != k {
		c.metrics.failures.WithLabelValues(failKeyCorruption).Inc()
		c.lo.Error("keydir points to another key", "key", k, "found", rec.Key, "segment", meta.SegmentID, "pos", meta.RecordPos)
		return nil, fmt.Errorf("%w: expected %q, found %q", ErrKeyCorruption, k, rec.Key)
	}

	c.metrics.gets.Inc()

	return rec.Value, nil
}

func (c *Cask) put(k string, val []byte) error {
	// Rotate before writing if the active segment can't take any more records.
	if !c.active.CanAppend() {
		if err := c.rotate(); err != nil {
			return err
		}
	}

	buf := c.bufPool.Get().(*bytes.Buffer)
	defer c.bufPool.Put(buf)
	buf.Reset()

	now := time.Now()

	size, err := record.Encode(buf, now, k, val)
	if err != nil {
		return fmt.Errorf("error encoding record: %w", err)
	}

	// Append to the active segment. Rotate and retry once if the segment
	// refused the record anyway.
	offset, err := c.appendFn(c.active, buf.Bytes())
	if errors.Is(err, segment.ErrFull) {
		c.lo.Warn("segment refused record, rotating", "segment", c.active.ID(), "key", k)
		if err := c.rotate(); err != nil {
			return err
		}
		offset, err = c.appendFn(c.active, buf.Bytes())
	}
	if err != nil {
		c.metrics.failures.WithLabelValues(failAppend).Inc()
		return fmt.Errorf("error writing data to segment: %w", err)
	}

	// Add entry to KeyDir.
	// We just save the value of key and some metadata for faster lookups.
	// The value is only stored in disk.
	c.keydir.Put(k, Meta{
		SegmentID:  c.active.ID(),
		ValueSize:  len(val),
		RecordSize: size,
		RecordPos:  offset,
		Timestamp:  now.UnixNano(),
	})

	c.metrics.puts.Inc()
	c.metrics.bytesWritten.Add(float64(size))
	c.metrics.keys.Set(float64(c.keydir.Len()))

	return nil
}

// newActive allocates a fresh segment and makes it the active one.
// The file itself is created on the first append.
func (c *Cask) newActive() error {
	var id string
	for i := 0; i < maxAllocAttempts && id == ""; i++ {
		next, err := c.opts.allocator.Allocate(c.root)
		if err != nil {
			return fmt.Errorf("error allocating segment: %w", err)
		}
		// Segments which haven't been written to yet have no file, so the
		// allocator can't know about them.
		if _, ok := c.segments[next]; !ok {
			id = next
		}
	}
	if id == "" {
		return fmt.Errorf("error allocating segment: %w", segment.ErrNoIdentity)
	}

	opts := []segment.Option{segment.WithSync(c.opts.alwaysFSync)}
	if c.opts.maxSegmentSize > 0 {
		opts = append(opts, segment.WithMaxSize(c.opts.maxSegmentSize))
	}

	seg := segment.New(c.root, id, c.opts.capacity, opts...)
	c.segments[id] = seg
	c.active = seg
	c.metrics.segments.Set(float64(len(c.segments)))

	return nil
}

// rotate seals the active segment and replaces it with a new one.
// The old segment stays in the registry so that keys pointing to it can still be read.
func (c *Cask) rotate() error {
	old := c.active

	if err := old.Seal(); err != nil {
		return fmt.Errorf("error sealing segment %s: %w", old.ID(), err)
	}

	if err := c.newActive(); err != nil {
		return err
	}

	c.metrics.rotations.Inc()
	c.lo.Debug("rotated segment", "old", old.ID(), "old_records", old.Count(), "new", c.active.ID())

	return nil
}
