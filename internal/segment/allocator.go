package segment

import (
	"fmt"
	"math/rand"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const maxAllocAttempts = 16

var ErrNoIdentity = errors.New("unable to allocate an unused segment identity")

// Allocator hands out identities for new segments. An identity is a slash
// separated path relative to the store root.
type Allocator interface {
	Allocate(root string) (string, error)
}

// CalendarAllocator lays segments out as <year>/<month><day>/<random>.chunk.
type CalendarAllocator struct {
	mu  sync.Mutex
	rnd *rand.Rand
	now func() time.Time
}

// NewCalendarAllocator returns an allocator using the wall clock (UTC).
func NewCalendarAllocator() *CalendarAllocator {
	return &CalendarAllocator{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Allocate returns an identity whose file doesn't exist under root yet.
func (a *CalendarAllocator) Allocate(root string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	t := a.now()
	for i := 0; i < maxAllocAttempts; i++ {
		id := path.Join(
			fmt.Sprintf("%04d", t.Year()),
			fmt.Sprintf("%02d%02d", t.Month(), t.Day()),
			fmt.Sprintf("%08x%s", a.rnd.Uint32(), Ext),
		)
		if !exists(filepath.Join(root, filepath.FromSlash(id))) {
			return id, nil
		}
	}

	return "", ErrNoIdentity
}

// SequenceAllocator hands out <prefix><n>.chunk with an increasing n.
// The order of identities matches the order of allocation which makes it
// handy where deterministic names are needed.
type SequenceAllocator struct {
	mu     sync.Mutex
	Prefix string
	next   int
}

func (a *SequenceAllocator) Allocate(root string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Skip over identities left behind by earlier runs.
	for {
		id := fmt.Sprintf("%s%06d%s", a.Prefix, a.next, Ext)
		a.next++
		if !exists(filepath.Join(root, filepath.FromSlash(id))) {
			return id, nil
		}
	}
}

func exists(path string) bool {
	if _, err := os.Stat(path); err != nil {
		return false
	}
	return true
}
