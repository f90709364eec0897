package cask

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/mr-karan/caskdb/internal/record"
	"github.com/mr-karan/caskdb/internal/segment"
)

// replay rebuilds the keydir from the segments present in the store directory.
// Segments are applied in the order they were created, which is the order of
// their first record's timestamp, and records inside a segment in the order
// they were appended. Later records win, exactly like a live Put.
//
// Only the last segment in that order may end with a partially written
// record. It is cut off so that the segment is whole again once newer
// segments are written after it.
func (c *Cask) replay() error {
	ids, err := getSegmentIDs(c.root)
	if err != nil {
		return fmt.Errorf("error loading segments: %w", err)
	}

	type ordered struct {
		seg   *segment.Segment
		first int64
	}
	var segs []ordered

	for _, id := range ids {
		seg, err := segment.Open(c.root, id)
		if err != nil {
			return err
		}
		c.segments[id] = seg

		first, err := firstTimestamp(seg)
		if err != nil {
			return fmt.Errorf("error reading segment %s: %w", id, err)
		}
		if first < 0 {
			c.lo.Debug("skipping empty segment", "segment", id)
			continue
		}
		segs = append(segs, ordered{seg: seg, first: first})
	}

	sort.SliceStable(segs, func(i, j int) bool {
		if segs[i].first != segs[j].first {
			return segs[i].first < segs[j].first
		}
		return segs[i].seg.ID() < segs[j].seg.ID()
	})

	for i, o := range segs {
		n, err := c.scan(o.seg, i == len(segs)-1)
		if err != nil {
			return fmt.Errorf("error scanning segment %s: %w", o.seg.ID(), err)
		}
		c.lo.Debug("replayed segment", "segment", o.seg.ID(), "records", n)
	}

	c.metrics.segments.Set(float64(len(c.segments)))
	c.metrics.keys.Set(float64(c.keydir.Len()))

	return nil
}

// scan walks every record of the segment and updates the keydir.
// A record running past the end of the segment is either a write interrupted
// by a crash or corrupted sizes. The two can't be told apart, so it is only
// accepted (and truncated) at the tail of the newest segment. Anything failing
// the checksum aborts the scan.
func (c *Cask) scan(seg *segment.Segment, newest bool) (int, error) {
	r, err := seg.NewReader()
	if err != nil {
		return 0, err
	}
	defer r.Close()

	var (
		pos   int64
		count int
	)
	for {
		frame, err := record.ReadFrame(r, seg.Size()-pos)
		if errors.Is(err, io.EOF) {
			return count, nil
		}
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, record.ErrInvalidSize) {
			if !newest {
				return count, fmt.Errorf("%w: record at %d, segment is %d bytes", ErrCorrupted, pos, seg.Size())
			}

			c.lo.Warn("truncating torn record at the end of segment", "segment", seg.ID(), "pos", pos, "dropped", seg.Size()-pos, "error", err)
			if err := seg.Truncate(pos); err != nil {
				return count, err
			}
			return count, nil
		}
		if err != nil {
			return count, err
		}

		rec, err := record.Decode(frame)
		if err != nil {
			return count, fmt.Errorf("record at %d: %w", pos, err)
		}

		c.keydir.Put(rec.Key, Meta{
			SegmentID:  seg.ID(),
			ValueSize:  len(rec.Value),
			RecordSize: len(frame),
			RecordPos:  pos,
			Timestamp:  rec.Header.Timestamp,
		})

		pos += int64(len(frame))
		count++
	}
}

// firstTimestamp returns the timestamp of the first record in the segment
// or -1 if the segment is empty.
//
// If the first record runs past the end of the segment, the timestamp in its
// header is returned unverified. A torn write is the most recent one so this
// orders the segment last, while a record with corrupted sizes keeps its place
// and fails the scan. A segment too short to hold a single header is ordered
// last as well.
func firstTimestamp(seg *segment.Segment) (int64, error) {
	if seg.Size() == 0 {
		return -1, nil
	}
	if seg.Size() < record.HeaderSize {
		return math.MaxInt64, nil
	}

	r, err := seg.NewReader()
	if err != nil {
		return 0, err
	}
	defer r.Close()

	frame, err := record.ReadFrame(r, seg.Size())
	if errors.Is(err, record.ErrInvalidSize) {
		hdr, err := seg.ReadAt(0, record.HeaderSize)
		if err != nil {
			return 0, err
		}
		h, err := record.ParseHeader(hdr)
		if err != nil {
			return 0, err
		}
		if h.Timestamp < 0 {
			return 0, nil
		}
		return h.Timestamp, nil
	}
	if err != nil {
		return 0, err
	}

	rec, err := record.Decode(frame)
	if err != nil {
		return 0, err
	}

	return rec.Header.Timestamp, nil
}
