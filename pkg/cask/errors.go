package cask

import (
	"errors"

	"github.com/mr-karan/caskdb/internal/record"
	"github.com/mr-karan/caskdb/internal/segment"
)

var (
	ErrNotOpen          = errors.New("store is not open")
	ErrAlreadyOpen      = errors.New("store is already open")
	ErrUninitialised    = errors.New("store must be created with New")
	ErrLocked           = errors.New("a lockfile already exists")
	ErrEmptyKey         = errors.New("empty key")
	ErrLargeKey         = errors.New("invalid key: size is too large")
	ErrLargeValue       = errors.New("invalid value: size is too large")
	ErrInvalidCapacity  = errors.New("invalid capacity: must be at least 1")
	ErrKeyNotFound      = errors.New("invalid key: key not found")
	ErrSegmentMismatch  = errors.New("key points to an unknown segment")
	ErrKeyCorruption    = errors.New("key mismatch: record on disk belongs to another key")
	ErrCorrupted        = errors.New("invalid data: record overruns its segment")
	ErrSegmentFull      = segment.ErrFull
	ErrChecksumMismatch = record.ErrChecksumMismatch
)
