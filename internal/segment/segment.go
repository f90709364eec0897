package segment

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const (
	Ext = ".chunk"

	DefaultCapacity = 1000
)

var (
	ErrFull       = errors.New("segment is full")
	ErrSealed     = errors.New("segment is sealed")
	ErrOutOfRange = errors.New("read beyond end of segment")
)

// Segment is an append-only file bounded by the number of records it holds.
// The backing file is only created on the first append, so allocating a
// segment has no side effects on the filesystem.
type Segment struct {
	root string
	id   string

	writer *os.File
	reader *os.File

	capacity int
	maxSize  int64
	sync     bool

	count  int
	offset int64
	sealed bool
}

// Option configures a segment.
type Option func(*Segment)

// WithMaxSize bounds the segment by size in bytes in addition to record count.
func WithMaxSize(size int64) Option {
	return func(s *Segment) {
		s.maxSize = size
	}
}

// WithSync makes every append fsync the file before returning.
func WithSync(sync bool) Option {
	return func(s *Segment) {
		s.sync = sync
	}
}

// New initialises a segment identified by id under root.
func New(root, id string, capacity int, opts ...Option) *Segment {
	s := &Segment{
		root:     root,
		id:       id,
		capacity: capacity,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open attaches to an existing segment file. The segment is sealed, it can be
// read from but never appended to.
func Open(root, id string) (*Segment, error) {
	s := &Segment{
		root:   root,
		id:     id,
		sealed: true,
	}

	stat, err := os.Stat(s.Path())
	if err != nil {
		return nil, errors.Wrapf(err, "error fetching stats for segment %s", id)
	}
	s.offset = stat.Size()

	return s, nil
}

// ID returns the identity of the segment, relative to the store root.
func (s *Segment) ID() string {
	return s.id
}

// Path returns the location of the backing file.
func (s *Segment) Path() string {
	return filepath.Join(s.root, filepath.FromSlash(s.id))
}

// Count returns the number of records appended through this handle.
func (s *Segment) Count() int {
	return s.count
}

// Size returns the number of bytes written to the segment.
func (s *Segment) Size() int64 {
	return s.offset
}

func (s *Segment) Capacity() int {
	return s.capacity
}

func (s *Segment) Sealed() bool {
	return s.sealed
}

// CanAppend reports whether the next append would be accepted.
func (s *Segment) CanAppend() bool {
	return !s.sealed && !s.full()
}

func (s *Segment) full() bool {
	if s.count >= s.capacity {
		return true
	}
	return s.maxSize > 0 && s.offset >= s.maxSize
}

// Append writes the data at the end of the segment and returns the offset
// at which it begins.
func (s *Segment) Append(data []byte) (int64, error) {
	if s.sealed {
		return -1, ErrSealed
	}
	if s.full() {
		return -1, ErrFull
	}

	if s.writer == nil {
		if err := s.create(); err != nil {
			return -1, err
		}
	}

	offset := s.offset

	if _, err := s.writer.Write(data); err != nil {
		// Drop whatever part of the record made it to the file.
		if terr := s.writer.Truncate(offset); terr != nil {
			return -1, errors.Wrapf(terr, "error truncating segment after failed write: %v", err)
		}
		return -1, errors.Wrap(err, "error writing to segment")
	}

	if s.sync {
		if err := s.writer.Sync(); err != nil {
			return -1, errors.Wrap(err, "error syncing segment")
		}
	}

	s.count++
	s.offset += int64(len(data))

	return offset, nil
}

// create makes the parent directories and opens the backing file for appends.
func (s *Segment) create() error {
	path := s.Path()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "error creating segment directory")
	}

	writer, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrap(err, "error opening file for writing segment")
	}
	s.writer = writer

	return nil
}

// ReadAt reads size bytes starting at offset.
func (s *Segment) ReadAt(offset int64, size int) ([]byte, error) {
	if offset < 0 || size < 0 || offset+int64(size) > s.offset {
		return nil, ErrOutOfRange
	}

	if s.reader == nil {
		reader, err := os.Open(s.Path())
		if err != nil {
			return nil, errors.Wrap(err, "error opening file for reading segment")
		}
		s.reader = reader
	}

	data := make([]byte, size)

	n, err := s.reader.ReadAt(data, offset)
	if err != nil {
		return nil, errors.Wrap(err, "error reading segment")
	}
	if n != size {
		return nil, errors.New("error fetching record, invalid size")
	}

	return data, nil
}

// Truncate drops everything past size. Used to cut off a record that was
// only partially written when the process died.
func (s *Segment) Truncate(size int64) error {
	if size < 0 || size > s.offset {
		return ErrOutOfRange
	}

	var err error
	if s.writer != nil {
		err = s.writer.Truncate(size)
	} else {
		err = os.Truncate(s.Path(), size)
	}
	if err != nil {
		return errors.Wrapf(err, "error truncating segment %s", s.id)
	}
	s.offset = size

	return nil
}

// NewReader returns a sequential reader over everything written to the segment.
func (s *Segment) NewReader() (io.ReadCloser, error) {
	f, err := os.Open(s.Path())
	if err != nil {
		return nil, errors.Wrap(err, "error opening file for reading segment")
	}
	return &sectionReadCloser{
		SectionReader: io.NewSectionReader(f, 0, s.offset),
		f:             f,
	}, nil
}

type sectionReadCloser struct {
	*io.SectionReader
	f *os.File
}

func (r *sectionReadCloser) Close() error {
	return r.f.Close()
}

// Sync flushes the in-memory buffers to the disk.
func (s *Segment) Sync() error {
	if s.writer == nil {
		return nil
	}
	return s.writer.Sync()
}

// Seal syncs and closes the write handle. The segment stays readable.
func (s *Segment) Seal() error {
	s.sealed = true
	if s.writer == nil {
		return nil
	}

	if err := s.writer.Sync(); err != nil {
		return errors.Wrap(err, "error syncing segment")
	}
	if err := s.writer.Close(); err != nil {
		return errors.Wrap(err, "error closing segment writer")
	}
	s.writer = nil

	return nil
}

// Close closes the file descriptors of the underlying segment file.
func (s *Segment) Close() error {
	if err := s.Seal(); err != nil {
		return err
	}

	if s.reader != nil {
		if err := s.reader.Close(); err != nil {
			return errors.Wrap(err, "error closing segment reader")
		}
		s.reader = nil
	}

	return nil
}
