package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"siteops/internal/model"
)

// ProjectRepository mirrors the externally owned project registry.
type ProjectRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewProjectRepository(db *pgxpool.Pool, logger *zap.Logger) *ProjectRepository {
	return &ProjectRepository{db: db, logger: logger}
}

func (r *ProjectRepository) Upsert(ctx context.Context, p model.Project) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return storeErr("begin upsert project", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
        INSERT INTO projects (id, name)
        VALUES ($1, $2)
        ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
    `, p.ID, p.Name)
	if err != nil {
		r.logger.Error("Failed to upsert project",
			zap.Int64("project_id", p.ID),
			zap.Error(err),
		)
		return storeErr("upsert project", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM project_managers WHERE project_id = $1`, p.ID); err != nil {
		return storeErr("clear project managers", err)
	}
	for _, managerID := range p.ManagerIDs {
		_, err := tx.Exec(ctx, `
            INSERT INTO project_managers (project_id, manager_id)
            VALUES ($1, $2)
        `, p.ID, managerID)
		if err != nil {
			return storeErr("insert project manager", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return storeErr("commit upsert project", err)
	}
	return nil
}

func (r *ProjectRepository) ListProjects(ctx context.Context) ([]model.Project, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name FROM projects ORDER BY id`)
	if err != nil {
		r.logger.Error("Failed to query projects", zap.Error(err))
		return nil, storeErr("select projects", err)
	}
	defer rows.Close()

	projects := []model.Project{}
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, storeErr("scan project", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate projects", err)
	}

	for i := range projects {
		managerRows, err := r.db.Query(ctx, `
            SELECT manager_id FROM project_managers WHERE project_id = $1 ORDER BY manager_id
        `, projects[i].ID)
		if err != nil {
			return nil, storeErr("select project managers", err)
		}
		for managerRows.Next() {
			var managerID int64
			if err := managerRows.Scan(&managerID); err != nil {
				managerRows.Close()
				return nil, storeErr("scan project manager", err)
			}
			projects[i].ManagerIDs = append(projects[i].ManagerIDs, managerID)
		}
		managerRows.Close()
		if err := managerRows.Err(); err != nil {
			return nil, storeErr("iterate project managers", err)
		}
	}

	return projects, nil
}
