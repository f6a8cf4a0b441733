package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"siteops/internal/model"
	"siteops/internal/scheduling"
)

// WorkerRepository mirrors the externally owned worker roster. The
// assigned-task counts are derived from task_assignments and
// daily_task_workers, not stored: a worker tied to a task only through
// daily entries still carries that task in its load.
type WorkerRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewWorkerRepository(db *pgxpool.Pool, logger *zap.Logger) *WorkerRepository {
	return &WorkerRepository{db: db, logger: logger}
}

func (r *WorkerRepository) Upsert(ctx context.Context, w model.Worker) error {
	query := `
        INSERT INTO workers (id, name, specialization, status, rating)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (id) DO UPDATE
        SET name = EXCLUDED.name,
            specialization = EXCLUDED.specialization,
            status = EXCLUDED.status,
            rating = EXCLUDED.rating
    `
	_, err := r.db.Exec(ctx, query, w.ID, w.Name, w.Specialization, w.Status, w.Rating)
	if err != nil {
		r.logger.Error("Failed to upsert worker",
			zap.Int64("worker_id", w.ID),
			zap.Error(err),
		)
		return storeErr("upsert worker", err)
	}
	return nil
}

func (r *WorkerRepository) GetWorker(ctx context.Context, id int64) (model.Worker, error) {
	query := `
        SELECT w.id, w.name, w.specialization, w.status, w.rating,
               (SELECT COUNT(*) FROM (
                   SELECT a.task_id FROM task_assignments a WHERE a.worker_id = w.id
                   UNION
                   SELECT d.task_id FROM daily_task_workers dw
                   JOIN daily_tasks d ON d.id = dw.daily_task_id
                   WHERE dw.worker_id = w.id
               ) t)
        FROM workers w
        WHERE w.id = $1
    `
	var w model.Worker
	err := r.db.QueryRow(ctx, query, id).Scan(&w.ID, &w.Name, &w.Specialization, &w.Status, &w.Rating, &w.AssignedTasks)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Worker{}, fmt.Errorf("%w: id %d", scheduling.ErrWorkerNotFound, id)
		}
		return model.Worker{}, storeErr("select worker", err)
	}
	return w, nil
}

func (r *WorkerRepository) ListWorkers(ctx context.Context) ([]model.Worker, error) {
	query := `
        SELECT w.id, w.name, w.specialization, w.status, w.rating,
               (SELECT COUNT(*) FROM (
                   SELECT a.task_id FROM task_assignments a WHERE a.worker_id = w.id
                   UNION
                   SELECT d.task_id FROM daily_task_workers dw
                   JOIN daily_tasks d ON d.id = dw.daily_task_id
                   WHERE dw.worker_id = w.id
               ) t)
        FROM workers w
        ORDER BY w.id
    `
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to query workers", zap.Error(err))
		return nil, storeErr("select workers", err)
	}
	defer rows.Close()

	workers := []model.Worker{}
	for rows.Next() {
		var w model.Worker
		if err := rows.Scan(&w.ID, &w.Name, &w.Specialization, &w.Status, &w.Rating, &w.AssignedTasks); err != nil {
			return nil, storeErr("scan worker", err)
		}
		workers = append(workers, w)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate workers", err)
	}
	return workers, nil
}
