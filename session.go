package fluid

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session carries flashed values from one request to the next.
// Plug in a cookie or database backed store for multi-instance deployments.
type Session interface {
	// Flash keeps value under key until the next Get of that key.
	Flash(w http.ResponseWriter, r *http.Request, key string, value any) error

	// Get returns the value flashed under key and forgets it.
	// A missing key yields nil.
	Get(w http.ResponseWriter, r *http.Request, key string) (any, error)
}

const (
	flashSessionKey = "flash"
	flashLifetime   = 24 * time.Hour
)

type flashBag struct {
	values  map[string]any
	expires time.Time
}

// MemorySession keeps flash bags in process memory, keyed by a uuid cookie.
type MemorySession struct {
	mu         sync.Mutex
	bags       map[string]*flashBag
	cookieName string
	now        func() time.Time
}

func NewMemorySession(cookieName string) *MemorySession {
	return &MemorySession{
		bags:       map[string]*flashBag{},
		cookieName: cookieName,
		now:        time.Now,
	}
}

func (m *MemorySession) Flash(w http.ResponseWriter, r *http.Request, key string, value any) error {
	id := m.id(r)
	if id == "" {
		id = m.issue(w, r)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.prune(now)

	bag := m.bags[id]
	if bag == nil {
		bag = &flashBag{values: map[string]any{}}
		m.bags[id] = bag
	}
	bag.values[key] = value
	bag.expires = now.Add(flashLifetime)

	return nil
}

func (m *MemorySession) Get(w http.ResponseWriter, r *http.Request, key string) (any, error) {
	id := m.id(r)
	if id == "" {
		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	bag := m.bags[id]
	if bag == nil || m.now().After(bag.expires) {
		delete(m.bags, id)
		return nil, nil
	}

	value, ok := bag.values[key]
	if !ok {
		return nil, nil
	}
	delete(bag.values, key)
	if len(bag.values) == 0 {
		delete(m.bags, id)
	}

	return value, nil
}

// prune drops expired bags. Callers hold m.mu.
func (m *MemorySession) prune(now time.Time) {
	for id, bag := range m.bags {
		if now.After(bag.expires) {
			delete(m.bags, id)
		}
	}
}

func (m *MemorySession) id(r *http.Request) string {
	if cookie, err := r.Cookie(m.cookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// issue starts a session for r and sends its cookie.
func (m *MemorySession) issue(w http.ResponseWriter, r *http.Request) string {
	id := uuid.NewString()

	// visible to later Flash calls on the same request
	r.AddCookie(&http.Cookie{Name: m.cookieName, Value: id})

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(flashLifetime / time.Second),
	})
	return id
}
