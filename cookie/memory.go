package cookie

import (
	"sync"
	"time"
)

type entry struct {
	value     string
	path      string
	expiresAt time.Time
}

// MemoryJar keeps cookies in process memory. One MemoryJar stands for one
// browser profile: every store opened against it sees the same cookies.
type MemoryJar struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]entry
}

// NewMemoryJar returns an empty jar using the wall clock.
func NewMemoryJar() *MemoryJar {
	return NewMemoryJarWithClock(time.Now)
}

// NewMemoryJarWithClock returns an empty jar whose expiry checks use now.
func NewMemoryJarWithClock(now func() time.Time) *MemoryJar {
	if now == nil {
		now = time.Now
	}
	return &MemoryJar{
		now:     now,
		entries: make(map[string]entry),
	}
}

// Get returns the cookie value if it is present and not expired.
func (j *MemoryJar) Get(name string) (string, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	e, ok := j.entries[name]
	if !ok {
		return "", false
	}
	if !e.expiresAt.IsZero() && !j.now().Before(e.expiresAt) {
		delete(j.entries, name)
		return "", false
	}
	return e.value, true
}

// Set stores value under name. A negative MaxAge removes the cookie and a zero
// MaxAge keeps it until Destroy.
func (j *MemoryJar) Set(name, value string, opts Options) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if opts.MaxAge < 0 {
		delete(j.entries, name)
		return
	}

	e := entry{value: value, path: opts.Path}
	if opts.MaxAge > 0 {
		e.expiresAt = j.now().Add(opts.MaxAge)
	}
	j.entries[name] = e
}

// Destroy removes name from the jar. A jar holds one cookie per name, so the
// options are not consulted.
func (j *MemoryJar) Destroy(name string, _ Options) {
	j.mu.Lock()
	delete(j.entries, name)
	j.mu.Unlock()
}

// Expiry reports the absolute expiry and path of a stored cookie.
func (j *MemoryJar) Expiry(name string) (expiresAt time.Time, path string, ok bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	e, ok := j.entries[name]
	if !ok {
		return time.Time{}, "", false
	}
	return e.expiresAt, e.path, true
}
