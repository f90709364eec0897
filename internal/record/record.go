package record

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"time"
)

const (
	// HeaderSize is the fixed width of the header present at the start of every frame.
	HeaderSize = 20

	MaxKeySize   = 1<<32 - 1
	MaxValueSize = 1<<32 - 1
)

var (
	ErrChecksumMismatch = errors.New("invalid data: checksum does not match")
	ErrTruncated        = errors.New("invalid data: frame is shorter than its header")
	ErrInvalidSize      = errors.New("invalid data: declared sizes do not match frame")
)

/*
Record is a binary representation of how each record is persisted in the disk.
Header represents how the record is stored along with some metadata.
The checksum, key size and value size use 4 bytes each (uint32) and the timestamp
uses 8 bytes (unix nanoseconds). So the max size of a key or a value
can not be more than 2^32-1 which is ~ 4.3GB.

The checksum covers every byte after the checksum field, so a reader can detect
corruption of the sizes before trusting where the key ends and the value begins.
Keys and values are raw bytes and can contain any character.

Representation of the record stored on disk.
-----------------------------------------------------------------
| crc(4) | time(8) | key_size(4) | val_size(4) | key | val      |
-----------------------------------------------------------------
*/
type Record struct {
	Header Header
	Key    string
	Value  []byte
}

// Header represents the fixed width fields present at the start of every record.
type Header struct {
	Checksum  uint32
	Timestamp int64
	KeySize   uint32
	ValSize   uint32
}

// ChecksumError is returned when the checksum stored in a frame doesn't match
// the one computed over its payload.
type ChecksumError struct {
	Stored   uint32
	Computed uint32
	Payload  []byte
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("%s: stored=%d computed=%d payload=%q", ErrChecksumMismatch, e.Stored, e.Computed, e.Payload)
}

func (e *ChecksumError) Is(target error) bool {
	return target == ErrChecksumMismatch
}

// Size returns the length of a frame holding a key and value of the given sizes.
func Size(keySize, valSize int) int {
	return HeaderSize + keySize + valSize
}

// Time returns the timestamp of the record.
func (r *Record) Time() time.Time {
	return time.Unix(0, r.Header.Timestamp)
}

// Encode appends a frame for the given key/value to the buffer and
// returns the number of bytes appended.
func Encode(buf *bytes.Buffer, ts time.Time, key string, val []byte) (int, error) {
	if uint64(len(key)) > MaxKeySize || uint64(len(val)) > MaxValueSize {
		return 0, ErrInvalidSize
	}

	start := buf.Len()

	// The checksum is filled in once the payload is in the buffer.
	header := Header{
		Timestamp: ts.UnixNano(),
		KeySize:   uint32(len(key)),
		ValSize:   uint32(len(val)),
	}
	if err := binary.Write(buf, binary.LittleEndian, &header); err != nil {
		return 0, err
	}

	buf.WriteString(key)
	buf.Write(val)

	frame := buf.Bytes()[start:]
	binary.LittleEndian.PutUint32(frame[:4], crc32.ChecksumIEEE(frame[4:]))

	return len(frame), nil
}

// Decode verifies the checksum of a single frame and returns the record it holds.
func Decode(frame []byte) (*Record, error) {
	if len(frame) < HeaderSize {
		return nil, ErrTruncated
	}

	var (
		stored   = binary.LittleEndian.Uint32(frame[:4])
		computed = crc32.ChecksumIEEE(frame[4:])
	)
	if stored != computed {
		return nil, &ChecksumError{Stored: stored, Computed: computed, Payload: frame[4:]}
	}

	header, err := ParseHeader(frame)
	if err != nil {
		return nil, err
	}

	if Size(int(header.KeySize), int(header.ValSize)) != len(frame) {
		return nil, ErrInvalidSize
	}

	keyEnd := HeaderSize + int(header.KeySize)

	return &Record{
		Header: header,
		Key:    string(frame[HeaderSize:keyEnd]),
		Value:  frame[keyEnd:],
	}, nil
}

// ParseHeader reads the fixed width fields at the start of b without
// verifying the checksum. Nothing in it can be trusted until the whole frame
// passes Decode.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, ErrTruncated
	}
	return Header{
		Checksum:  binary.LittleEndian.Uint32(b[0:4]),
		Timestamp: int64(binary.LittleEndian.Uint64(b[4:12])),
		KeySize:   binary.LittleEndian.Uint32(b[12:16]),
		ValSize:   binary.LittleEndian.Uint32(b[16:20]),
	}, nil
}

// ReadFrame reads exactly one frame from a sequential reader.
// It returns io.EOF if the reader is exhausted at a frame boundary and
// io.ErrUnexpectedEOF if the frame is cut short. Frames declaring more than
// limit bytes are rejected with ErrInvalidSize before anything is allocated.
func ReadFrame(r io.Reader, limit int64) ([]byte, error) {
	hdr := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, err
	}

	header, err := ParseHeader(hdr)
	if err != nil {
		return nil, err
	}

	size := HeaderSize + int64(header.KeySize) + int64(header.ValSize)
	if size > limit {
		return nil, ErrInvalidSize
	}

	frame := make([]byte, size)
	copy(frame, hdr)
	if _, err := io.ReadFull(r, frame[HeaderSize:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}

	return frame, nil
}
