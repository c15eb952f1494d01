package input

import (
	"sync"
	"time"

	"github.com/1broseidon/palettehost/internal/platform"
)

// DefaultShowGuardTTL bounds how long a click-dismiss mark can block a re-show.
const DefaultShowGuardTTL = 500 * time.Millisecond

// ShowGuard blocks the first re-show of a window right after a user click
// dismissed it. A mark is single-shot: the refusal consumes it. Marks older
// than the TTL are ignored.
type ShowGuard struct {
	mu    sync.Mutex
	marks map[platform.WindowID]time.Time
	ttl   time.Duration
	now   func() time.Time
}

// NewShowGuard creates a guard. A non-positive ttl selects DefaultShowGuardTTL;
// a nil clock selects time.Now.
func NewShowGuard(ttl time.Duration, now func() time.Time) *ShowGuard {
	if ttl <= 0 {
		ttl = DefaultShowGuardTTL
	}
	if now == nil {
		now = time.Now
	}
	return &ShowGuard{
		marks: make(map[platform.WindowID]time.Time),
		ttl:   ttl,
		now:   now,
	}
}

// MarkDismissed records that id was just dismissed by a user click.
func (g *ShowGuard) MarkDismissed(id platform.WindowID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.marks[id] = g.now()
}

// IsBlocked reports whether a show of id would currently be refused.
func (g *ShowGuard) IsBlocked(id platform.WindowID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.blockedLocked(id)
}

// Consume reports whether id is blocked and, if so, clears the mark so the
// next attempt goes through.
func (g *ShowGuard) Consume(id platform.WindowID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	blocked := g.blockedLocked(id)
	delete(g.marks, id)
	return blocked
}

// Clear removes any mark for id.
func (g *ShowGuard) Clear(id platform.WindowID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.marks, id)
}

func (g *ShowGuard) blockedLocked(id platform.WindowID) bool {
	at, ok := g.marks[id]
	if !ok {
		return false
	}
	if g.now().Sub(at) >= g.ttl {
		delete(g.marks, id)
		return false
	}
	return true
}
