package cart

import (
	"path/filepath"
	"strings"
	"sync"
)

// Manager hands out one Store per cart token. Guest carts are keyed by the
// client-generated token; authenticated carts attach a user id and mirror.
type Manager struct {
	mu      sync.Mutex
	carts   map[string]*Store
	dataDir string
	mirror  MirrorRepo
}

func NewManager(dataDir string, mirror MirrorRepo) *Manager {
	return &Manager{
		carts:   make(map[string]*Store),
		dataDir: dataDir,
		mirror:  mirror,
	}
}

// Get returns the store for the token, creating it on first use. A non-empty
// userID attaches the remote mirror.
func (m *Manager) Get(token, userID string) *Store {
	m.mu.Lock()
	s, ok := m.carts[token]
	if !ok {
		path := ""
		if m.dataDir != "" && safeToken(token) {
			path = filepath.Join(m.dataDir, token+".json")
		}
		s = NewStore(path)
		m.carts[token] = s
	}
	m.mu.Unlock()

	if userID != "" && m.mirror != nil {
		s.Attach(userID, m.mirror)
	}
	return s
}

// safeToken rejects tokens that cannot be used as a file name.
func safeToken(t string) bool {
	return t != "" && !strings.ContainsAny(t, `/\.`)
}
