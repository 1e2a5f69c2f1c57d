// Package registry tracks the connected participants of the single classroom:
// connection id -> {name, role}. It is the source of truth for role checks and
// for the eligible-voter snapshot taken when a poll starts.
package registry

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/classpulse/backend/internal/models"
)

const (
	minNameLen = 2
	maxNameLen = 20
)

var (
	ErrInvalidName = errors.New("name must be between 2 and 20 characters")
	ErrInvalidRole = errors.New("role must be teacher or student")
)

// Registry is an in-memory participant map guarded by a RWMutex. Callers are
// responsible for broadcasting roster changes.
type Registry struct {
	mu           sync.RWMutex
	participants map[string]models.Participant
	logger       *zap.Logger
}

// New creates an empty registry.
func New(logger *zap.Logger) *Registry {
	return &Registry{
		participants: make(map[string]models.Participant),
		logger:       logger,
	}
}

// Register validates and stores a participant. Re-registering the same
// connection id overwrites the prior entry (idempotent re-join).
func (r *Registry) Register(connID, name string, role models.Role) (models.Participant, error) {
	name = strings.TrimSpace(name)
	// Bounds are in characters, not bytes, so non-ASCII names measure the same
	// as ASCII ones.
	if n := utf8.RuneCountInString(name); n < minNameLen || n > maxNameLen {
		return models.Participant{}, ErrInvalidName
	}
	if !role.Valid() {
		return models.Participant{}, ErrInvalidRole
	}

	p := models.Participant{ID: connID, Name: name, Role: role}
	r.mu.Lock()
	r.participants[connID] = p
	r.mu.Unlock()

	r.logger.Debug("participant registered",
		zap.String("conn_id", connID),
		zap.String("name", p.Name),
		zap.String("role", string(p.Role)),
	)
	return p, nil
}

// Unregister removes and returns the participant for the connection, if any.
func (r *Registry) Unregister(connID string) (models.Participant, bool) {
	r.mu.Lock()
	p, ok := r.participants[connID]
	if ok {
		delete(r.participants, connID)
	}
	r.mu.Unlock()

	if ok {
		r.logger.Debug("participant unregistered",
			zap.String("conn_id", connID),
			zap.String("name", p.Name),
		)
	}
	return p, ok
}

// Lookup returns the participant for the connection, if any.
func (r *Registry) Lookup(connID string) (models.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.participants[connID]
	return p, ok
}

// ListByRole returns all participants with the given role, sorted by name.
func (r *Registry) ListByRole(role models.Role) []models.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]models.Participant, 0)
	for _, p := range r.participants {
		if p.Role == role {
			list = append(list, p)
		}
	}
	sortByName(list)
	return list
}

// ListAll returns every connected participant, sorted by name.
func (r *Registry) ListAll() []models.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]models.Participant, 0, len(r.participants))
	for _, p := range r.participants {
		list = append(list, p)
	}
	sortByName(list)
	return list
}

func sortByName(list []models.Participant) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Name == list[j].Name {
			return list[i].ID < list[j].ID
		}
		return list[i].Name < list[j].Name
	})
}
