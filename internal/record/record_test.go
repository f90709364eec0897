package record

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
	"time"

	"github.com/go-faker/faker/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encode(t *testing.T, key string, val []byte) []byte {
	t.Helper()

	buf := bytes.NewBuffer([]byte{})
	n, err := Encode(buf, time.Now(), key, val)
	require.NoError(t, err)
	require.Equal(t, buf.Len(), n)

	return buf.Bytes()
}

func TestRoundTrip(t *testing.T) {
	cases := map[string]struct {
		key string
		val []byte
	}{
		"simple":        {"test_key", []byte("test_value")},
		"empty_value":   {"key_empty", []byte{}},
		"long_value":    {"long_key", bytes.Repeat([]byte("a"), 1000)},
		"delimiter":     {"a|b", []byte("c|d|e")},
		"newlines":      {"multi\nline", []byte("first\nsecond\n")},
		"binary":        {"bin", []byte{0x00, 0xff, 0x0a, 0x7c}},
		"generated":     {faker.Word(), []byte(faker.Sentence())},
		"generated_utf": {faker.Name(), []byte(faker.Paragraph())},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			ts := time.Now()

			buf := bytes.NewBuffer([]byte{})
			_, err := Encode(buf, ts, tc.key, tc.val)
			require.NoError(t, err)

			rec, err := Decode(buf.Bytes())
			require.NoError(t, err)
			assert.Equal(t, tc.key, rec.Key)
			assert.Equal(t, len(tc.val), len(rec.Value))
			assert.True(t, bytes.Equal(tc.val, rec.Value), "value is not equal")
			assert.Equal(t, ts.UnixNano(), rec.Time().UnixNano())
			assert.Equal(t, uint32(len(tc.key)), rec.Header.KeySize)
			assert.Equal(t, uint32(len(tc.val)), rec.Header.ValSize)
		})
	}
}

func TestEncodedByteLayout(t *testing.T) {
	ts := time.Unix(0, 42)

	buf := bytes.NewBuffer([]byte{})
	_, err := Encode(buf, ts, "a", []byte("bc"))
	require.NoError(t, err)

	frame := buf.Bytes()
	require.Len(t, frame, Size(1, 2))

	assert.Equal(t, int64(42), int64(binary.LittleEndian.Uint64(frame[4:12])))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(frame[12:16]))
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(frame[16:20]))
	assert.Equal(t, "abc", string(frame[HeaderSize:]))
}

func TestParseHeader(t *testing.T) {
	frame := encode(t, "key", []byte("value"))

	h, err := ParseHeader(frame)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), h.KeySize)
	assert.Equal(t, uint32(5), h.ValSize)
	assert.Equal(t, binary.LittleEndian.Uint32(frame[:4]), h.Checksum)

	// Sizes are taken as is, even when they are corrupted.
	frame[15] ^= 0xff
	h, err = ParseHeader(frame)
	require.NoError(t, err)
	assert.Equal(t, uint32(3)|0xff<<24, h.KeySize)

	_, err = ParseHeader(frame[:HeaderSize-1])
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestEncodeAppends(t *testing.T) {
	buf := bytes.NewBuffer([]byte{})

	first, err := Encode(buf, time.Now(), "k1", []byte("v1"))
	require.NoError(t, err)
	second, err := Encode(buf, time.Now(), "k2", []byte("value2"))
	require.NoError(t, err)

	rec, err := Decode(buf.Bytes()[:first])
	require.NoError(t, err)
	assert.Equal(t, "k1", rec.Key)

	rec, err = Decode(buf.Bytes()[first : first+second])
	require.NoError(t, err)
	assert.Equal(t, "k2", rec.Key)
	assert.Equal(t, "value2", string(rec.Value))
}

func TestChecksumMismatch(t *testing.T) {
	frame := encode(t, "key", []byte("value"))

	// Flip every byte covered by the checksum, one at a time.
	for i := 4; i < len(frame); i++ {
		tampered := append([]byte{}, frame...)
		tampered[i] ^= 0x01

		_, err := Decode(tampered)
		require.Error(t, err, "mutation at byte %d was not detected", i)
		assert.ErrorIs(t, err, ErrChecksumMismatch)

		var cerr *ChecksumError
		require.ErrorAs(t, err, &cerr)
		assert.NotEqual(t, cerr.Stored, cerr.Computed)
		assert.Equal(t, tampered[4:], cerr.Payload)
	}
}

func TestDecodeTruncated(t *testing.T) {
	frame := encode(t, "abc", []byte("xy"))

	for i := 0; i < len(frame); i++ {
		_, err := Decode(frame[:i])
		assert.Error(t, err, "expected error when decoding truncated data of length %d", i)
	}

	_, err := Decode(frame[:HeaderSize-1])
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestReadFrame(t *testing.T) {
	buf := bytes.NewBuffer([]byte{})
	for _, k := range []string{"one", "two", "three"} {
		_, err := Encode(buf, time.Now(), k, []byte("val_"+k))
		require.NoError(t, err)
	}

	var (
		r    = bytes.NewReader(buf.Bytes())
		keys []string
	)
	for {
		frame, err := ReadFrame(r, int64(buf.Len()))
		if err == io.EOF {
			break
		}
		require.NoError(t, err)

		rec, err := Decode(frame)
		require.NoError(t, err)
		assert.Equal(t, "val_"+rec.Key, string(rec.Value))
		keys = append(keys, rec.Key)
	}
	assert.Equal(t, []string{"one", "two", "three"}, keys)
}

func TestReadFrameTornTail(t *testing.T) {
	frame := encode(t, "key", []byte("value"))

	t.Run("Header", func(t *testing.T) {
		_, err := ReadFrame(bytes.NewReader(frame[:HeaderSize-3]), int64(len(frame)))
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})

	t.Run("Body", func(t *testing.T) {
		_, err := ReadFrame(bytes.NewReader(frame[:len(frame)-1]), int64(len(frame)))
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})

	t.Run("Limit", func(t *testing.T) {
		_, err := ReadFrame(bytes.NewReader(frame), int64(len(frame)-1))
		assert.ErrorIs(t, err, ErrInvalidSize)
	})
}
