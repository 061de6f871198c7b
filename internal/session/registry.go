package session

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/chrissnell/spmanalyzer/internal/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrUnknownSession is returned for an id that is not open.
	ErrUnknownSession = errors.New("unknown session")
	// ErrForbiddenPath is returned when a parameter file lies outside the data root.
	ErrForbiddenPath = errors.New("path outside data root")
)

// Registry holds the open sessions of the service, keyed by a random id.
type Registry struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	cacheSize int
	dataRoot  string
	logger    *zap.SugaredLogger
}

// NewRegistry returns an empty registry. When dataRoot is not empty, Open only
// accepts parameter files below it.
func NewRegistry(cacheSize int, dataRoot string, logger *zap.SugaredLogger) *Registry {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Registry{
		sessions:  map[string]*Session{},
		cacheSize: cacheSize,
		dataRoot:  dataRoot,
		logger:    logger,
	}
}

// Open parses txtPath and registers a new session for it.
func (r *Registry) Open(txtPath string) (*Session, error) {
	path, err := r.resolve(txtPath)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	s, err := Open(path, r.cacheSize, r.logger.With("session", id))
	if err != nil {
		return nil, err
	}
	s.ID = id

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()
	metrics.SessionOpened()
	return s, nil
}

func (r *Registry) resolve(txtPath string) (string, error) {
	if txtPath == "" {
		return "", fmt.Errorf("%w: empty path", ErrNotFound)
	}
	path, err := filepath.Abs(txtPath)
	if err != nil {
		return "", err
	}
	if r.dataRoot == "" {
		return path, nil
	}
	root, err := filepath.Abs(r.dataRoot)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrForbiddenPath, txtPath)
	}
	return path, nil
}

// Get returns the session with id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	return s, nil
}

// List returns every open session, oldest first.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].OpenedAt.Before(out[j].OpenedAt)
	})
	return out
}

// Close unloads and forgets the session with id.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	s.UnloadAll()
	metrics.SessionClosed()
	r.logger.Infow("closed session", "session", id, "name", s.Name())
	return nil
}

// CloseAll closes every session.
func (r *Registry) CloseAll() {
	for _, s := range r.List() {
		_ = r.Close(s.ID)
	}
}
