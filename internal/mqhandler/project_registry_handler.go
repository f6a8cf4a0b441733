package mqhandler

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	mqcontracts "siteops/contracts/mq"
	"siteops/internal/model"
	"siteops/internal/projectregistry"
	"siteops/internal/repository"
	"siteops/pkg/metrics"
)

// ProjectRegistryHandler mirrors the externally owned project registry
// into the store and the in-memory registry. Upserts are idempotent, so a
// redelivered message is harmless.
type ProjectRegistryHandler struct {
	projectRepo *repository.ProjectRepository
	registry    *projectregistry.Registry
	logger      *zap.Logger
}

func NewProjectRegistryHandler(projectRepo *repository.ProjectRepository, registry *projectregistry.Registry, logger *zap.Logger) *ProjectRegistryHandler {
	return &ProjectRegistryHandler{projectRepo: projectRepo, registry: registry, logger: logger}
}

func (h *ProjectRegistryHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	started := time.Now()

	var p mqcontracts.ProjectRegistryPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal ProjectRegistryPayload", zap.Error(err))
		return err
	}

	h.logger.Info("Handling project.registry_updated event",
		zap.Int("projects", len(p.Projects)),
	)

	for _, entry := range p.Projects {
		project := model.Project{
			ID:         entry.ProjectID,
			Name:       entry.Name,
			ManagerIDs: entry.ManagerIDs,
		}

		if err := h.projectRepo.Upsert(ctx, project); err != nil {
			h.logger.Error("Failed to upsert project",
				zap.Int64("project_id", project.ID),
				zap.Error(err),
			)
			return err
		}
		h.registry.Upsert(project)
	}

	metrics.RecordMQConsumeLatency(mqcontracts.RoutingKeyProjectRegistry, "scheduler.project.q", time.Since(started))
	return nil
}
