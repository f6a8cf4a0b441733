package projectregistry

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"siteops/internal/model"
)

// ProjectLoader seeds the registry from the persisted mirror on startup.
type ProjectLoader interface {
	ListProjects(ctx context.Context) ([]model.Project, error)
}

// Registry is a read-mostly mirror of the externally owned project
// registry. It answers exactly one question: may this manager see tasks
// of this project.
type Registry struct {
	mu       sync.RWMutex
	projects map[int64]model.Project
	logger   *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		projects: make(map[int64]model.Project),
		logger:   logger,
	}
}

// Warm loads the current registry from the store.
func (r *Registry) Warm(ctx context.Context, loader ProjectLoader) error {
	projects, err := loader.ListProjects(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range projects {
		r.projects[p.ID] = p
	}

	r.logger.Info("Project registry warmed", zap.Int("projects", len(projects)))
	return nil
}

// Upsert inserts or refreshes a registry entry.
func (r *Registry) Upsert(p model.Project) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.projects[p.ID] = p
}

// Project returns the registry entry for an id.
func (r *Registry) Project(id int64) (model.Project, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.projects[id]
	return p, ok
}

// Visible reports whether the manager may see tasks of the project.
// Tasks without a project (id 0) and projects unknown to the registry are
// visible to everyone; the registry scopes, it does not authorize.
func (r *Registry) Visible(projectID, managerID int64) bool {
	if projectID == 0 {
		return true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.projects[projectID]
	if !ok {
		return true
	}
	return p.VisibleTo(managerID)
}
