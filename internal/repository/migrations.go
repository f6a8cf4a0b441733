package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS weekly_tasks (
        id          BIGSERIAL PRIMARY KEY,
        title       TEXT NOT NULL,
        project_id  BIGINT NOT NULL DEFAULT 0,
        description TEXT NOT NULL DEFAULT '',
        start_date  DATE NOT NULL,
        end_date    DATE NOT NULL,
        priority    TEXT NOT NULL,
        status      TEXT NOT NULL,
        budget      NUMERIC(14,2) NOT NULL DEFAULT 0,
        manager_id  BIGINT NOT NULL,
        progress    INT NOT NULL DEFAULT 0,
        created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        CHECK (end_date >= start_date),
        CHECK (progress BETWEEN 0 AND 100)
    )`,
	`CREATE TABLE IF NOT EXISTS task_materials (
        task_id     BIGINT NOT NULL REFERENCES weekly_tasks(id) ON DELETE CASCADE,
        position    INT NOT NULL,
        material_id TEXT NOT NULL,
        quantity    INT NOT NULL,
        unit        TEXT NOT NULL DEFAULT '',
        available   BOOLEAN NOT NULL DEFAULT FALSE,
        PRIMARY KEY (task_id, position)
    )`,
	`CREATE TABLE IF NOT EXISTS task_worker_requirements (
        task_id        BIGINT NOT NULL REFERENCES weekly_tasks(id) ON DELETE CASCADE,
        specialization TEXT NOT NULL,
        count          INT NOT NULL,
        PRIMARY KEY (task_id, specialization)
    )`,
	`CREATE TABLE IF NOT EXISTS task_assignments (
        task_id        BIGINT NOT NULL REFERENCES weekly_tasks(id) ON DELETE CASCADE,
        worker_id      BIGINT NOT NULL,
        specialization TEXT NOT NULL,
        PRIMARY KEY (task_id, worker_id)
    )`,
	`CREATE TABLE IF NOT EXISTS daily_tasks (
        id           BIGSERIAL PRIMARY KEY,
        task_id      BIGINT NOT NULL REFERENCES weekly_tasks(id) ON DELETE CASCADE,
        date         DATE NOT NULL,
        title        TEXT NOT NULL,
        description  TEXT NOT NULL DEFAULT '',
        completed    BOOLEAN NOT NULL DEFAULT FALSE,
        completed_at TIMESTAMPTZ,
        completed_by BIGINT,
        notes        TEXT NOT NULL DEFAULT ''
    )`,
	`CREATE TABLE IF NOT EXISTS daily_task_workers (
        daily_task_id BIGINT NOT NULL REFERENCES daily_tasks(id) ON DELETE CASCADE,
        worker_id     BIGINT NOT NULL,
        PRIMARY KEY (daily_task_id, worker_id)
    )`,
	`CREATE TABLE IF NOT EXISTS change_requests (
        id          BIGSERIAL PRIMARY KEY,
        task_id     BIGINT NOT NULL REFERENCES weekly_tasks(id) ON DELETE CASCADE,
        type        TEXT NOT NULL,
        magnitude   INT NOT NULL,
        reason      TEXT NOT NULL,
        status      TEXT NOT NULL,
        created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        resolved_at TIMESTAMPTZ
    )`,
	`CREATE TABLE IF NOT EXISTS workers (
        id             BIGINT PRIMARY KEY,
        name           TEXT NOT NULL,
        specialization TEXT NOT NULL,
        status         TEXT NOT NULL,
        rating         DOUBLE PRECISION NOT NULL DEFAULT 0
    )`,
	`CREATE TABLE IF NOT EXISTS stock_levels (
        material_id TEXT PRIMARY KEY,
        level       INT NOT NULL,
        updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
    )`,
	`CREATE TABLE IF NOT EXISTS projects (
        id   BIGINT PRIMARY KEY,
        name TEXT NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS project_managers (
        project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
        manager_id BIGINT NOT NULL,
        PRIMARY KEY (project_id, manager_id)
    )`,
	`CREATE INDEX IF NOT EXISTS idx_weekly_tasks_status ON weekly_tasks (status)`,
	`CREATE INDEX IF NOT EXISTS idx_daily_tasks_task ON daily_tasks (task_id)`,
	`CREATE INDEX IF NOT EXISTS idx_change_requests_task ON change_requests (task_id)`,
}

// Migrate applies the schema. Statements are idempotent.
func Migrate(ctx context.Context, db *pgxpool.Pool, logger *zap.Logger) error {
	for _, stmt := range migrations {
		if _, err := db.Exec(ctx, stmt); err != nil {
			logger.Error("Migration statement failed", zap.Error(err))
			return storeErr("migrate", err)
		}
	}
	logger.Info("Schema migrations applied", zap.Int("statements", len(migrations)))
	return nil
}
