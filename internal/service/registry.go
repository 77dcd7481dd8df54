package service

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/tasksync/internal/repo"
)

// StoreFactory builds the persistence backend for one user.
type StoreFactory func(userID string) (repo.Store, error)

// Registry hands out one Manager per user id, constructing it (and
// loading its snapshot) on first use.
type Registry struct {
	mu       sync.Mutex
	factory  StoreFactory
	logger   *zap.Logger
	managers map[string]*Manager
}

func NewRegistry(factory StoreFactory, logger *zap.Logger) *Registry {
	return &Registry{
		factory:  factory,
		logger:   logger,
		managers: make(map[string]*Manager),
	}
}

func (r *Registry) Manager(ctx context.Context, userID string) (*Manager, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.managers[userID]; ok {
		return m, nil
	}

	store, err := r.factory(userID)
	if err != nil {
		return nil, fmt.Errorf("open store for %s: %w", userID, err)
	}
	m, err := NewManager(ctx, store, r.logger.With(zap.String("user_id", userID)))
	if err != nil {
		store.Close()
		return nil, err
	}
	r.managers[userID] = m
	return m, nil
}

// Close releases every loaded manager's store. Used on shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for userID, m := range r.managers {
		if err := m.Close(); err != nil {
			r.logger.Warn("closing store", zap.String("user_id", userID), zap.Error(err))
		}
	}
	r.managers = make(map[string]*Manager)
}
