package cask

// KeyDir represents an in-memory hash for faster lookups of the key.
// Once the key is found in the map, the additional metadata like the offset record
// and the segment ID is used to extract the underlying record from the disk.
// Advantage is that this approach only requires a single disk seek of the segment
// since the position offset (in bytes) is already stored.
type KeyDir map[string]Meta

// Meta represents some additional properties for the given key.
// The actual value of the key is not stored in the in-memory hashtable.
type Meta struct {
	SegmentID  string // Segment holding the latest record of the key.
	ValueSize  int
	RecordSize int   // Length of the whole record on disk, header included.
	RecordPos  int64 // Offset in the segment where the record begins.
	Timestamp  int64 // Unix nanoseconds of the write.
}

// Put records the location of the latest value of a key. Older entries are overwritten.
func (k KeyDir) Put(key string, m Meta) {
	k[key] = m
}

func (k KeyDir) Get(key string) (Meta, bool) {
	m, ok := k[key]
	return m, ok
}

func (k KeyDir) Len() int {
	return len(k)
}
