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

// TaskRepository persists WeeklyTask aggregates: the task row plus its
// materials, worker requirements, slot assignments, daily tasks and
// change requests.
type TaskRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewTaskRepository(db *pgxpool.Pool, logger *zap.Logger) *TaskRepository {
	return &TaskRepository{db: db, logger: logger}
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", scheduling.ErrStoreUnavailable, op, err)
}

func (r *TaskRepository) CreateTask(ctx context.Context, t *model.WeeklyTask) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, storeErr("begin create task", err)
	}
	defer tx.Rollback(ctx)

	query := `
        INSERT INTO weekly_tasks (title, project_id, description, start_date, end_date, priority, status, budget, manager_id, progress, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        RETURNING id
    `
	var id int64
	err = tx.QueryRow(ctx, query,
		t.Title,
		t.ProjectID,
		t.Description,
		t.StartDate,
		t.EndDate,
		t.Priority,
		t.Status,
		t.Budget,
		t.ManagerID,
		t.Progress,
		t.CreatedAt,
		t.UpdatedAt,
	).Scan(&id)
	if err != nil {
		r.logger.Error("Failed to insert weekly task",
			zap.String("title", t.Title),
			zap.Error(err),
		)
		return 0, storeErr("insert weekly task", err)
	}
	t.ID = id

	if err := r.saveChildren(ctx, tx, t); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, storeErr("commit create task", err)
	}

	r.logger.Info("Weekly task inserted",
		zap.Int64("task_id", id),
		zap.String("title", t.Title),
	)
	return id, nil
}

func (r *TaskRepository) GetTask(ctx context.Context, id int64) (*model.WeeklyTask, error) {
	query := `
        SELECT id, title, project_id, description, start_date, end_date, priority, status, budget, manager_id, progress, created_at, updated_at
        FROM weekly_tasks
        WHERE id = $1
    `
	var t model.WeeklyTask
	err := r.db.QueryRow(ctx, query, id).Scan(
		&t.ID,
		&t.Title,
		&t.ProjectID,
		&t.Description,
		&t.StartDate,
		&t.EndDate,
		&t.Priority,
		&t.Status,
		&t.Budget,
		&t.ManagerID,
		&t.Progress,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", scheduling.ErrTaskNotFound, id)
		}
		r.logger.Error("Failed to query weekly task",
			zap.Int64("task_id", id),
			zap.Error(err),
		)
		return nil, storeErr("select weekly task", err)
	}

	if err := r.loadChildren(ctx, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TaskRepository) ListTasks(ctx context.Context, status *model.TaskStatus) ([]*model.WeeklyTask, error) {
	query := `
        SELECT id, title, project_id, description, start_date, end_date, priority, status, budget, manager_id, progress, created_at, updated_at
        FROM weekly_tasks
    `
	args := []any{}
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, *status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query weekly tasks", zap.Error(err))
		return nil, storeErr("select weekly tasks", err)
	}
	defer rows.Close()

	tasks := []*model.WeeklyTask{}
	for rows.Next() {
		var t model.WeeklyTask
		if err := rows.Scan(
			&t.ID,
			&t.Title,
			&t.ProjectID,
			&t.Description,
			&t.StartDate,
			&t.EndDate,
			&t.Priority,
			&t.Status,
			&t.Budget,
			&t.ManagerID,
			&t.Progress,
			&t.CreatedAt,
			&t.UpdatedAt,
		); err != nil {
			r.logger.Error("Failed to scan weekly task row", zap.Error(err))
			return nil, storeErr("scan weekly task", err)
		}
		tasks = append(tasks, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate weekly tasks", err)
	}

	for _, t := range tasks {
		if err := r.loadChildren(ctx, t); err != nil {
			return nil, err
		}
	}
	return tasks, nil
}

// SaveTask persists the whole aggregate. Newly appended daily tasks and
// change requests (id 0) get their ids filled from the insert.
func (r *TaskRepository) SaveTask(ctx context.Context, t *model.WeeklyTask) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return storeErr("begin save task", err)
	}
	defer tx.Rollback(ctx)

	query := `
        UPDATE weekly_tasks
        SET title = $2, project_id = $3, description = $4, start_date = $5, end_date = $6, priority = $7,
            status = $8, budget = $9, manager_id = $10, progress = $11, updated_at = $12
        WHERE id = $1
    `
	tag, err := tx.Exec(ctx, query,
		t.ID,
		t.Title,
		t.ProjectID,
		t.Description,
		t.StartDate,
		t.EndDate,
		t.Priority,
		t.Status,
		t.Budget,
		t.ManagerID,
		t.Progress,
		t.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to update weekly task",
			zap.Int64("task_id", t.ID),
			zap.Error(err),
		)
		return storeErr("update weekly task", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", scheduling.ErrTaskNotFound, t.ID)
	}

	if err := r.saveChildren(ctx, tx, t); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return storeErr("commit save task", err)
	}
	return nil
}

func (r *TaskRepository) saveChildren(ctx context.Context, tx pgx.Tx, t *model.WeeklyTask) error {
	// Value collections are replaced wholesale; the single writer per
	// task makes this safe.
	for _, table := range []string{"task_materials", "task_worker_requirements", "task_assignments"} {
		if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE task_id = $1`, table), t.ID); err != nil {
			return storeErr("clear "+table, err)
		}
	}

	for i, m := range t.RequiredMaterials {
		_, err := tx.Exec(ctx, `
            INSERT INTO task_materials (task_id, position, material_id, quantity, unit, available)
            VALUES ($1, $2, $3, $4, $5, $6)
        `, t.ID, i, m.MaterialID, m.Quantity, m.Unit, m.Available)
		if err != nil {
			return storeErr("insert task material", err)
		}
	}

	for _, w := range t.RequiredWorkers {
		_, err := tx.Exec(ctx, `
            INSERT INTO task_worker_requirements (task_id, specialization, count)
            VALUES ($1, $2, $3)
        `, t.ID, w.Specialization, w.Count)
		if err != nil {
			return storeErr("insert worker requirement", err)
		}
	}

	for _, a := range t.Assignments {
		_, err := tx.Exec(ctx, `
            INSERT INTO task_assignments (task_id, worker_id, specialization)
            VALUES ($1, $2, $3)
        `, t.ID, a.WorkerID, a.Specialization)
		if err != nil {
			return storeErr("insert assignment", err)
		}
	}

	for i := range t.DailyTasks {
		d := &t.DailyTasks[i]
		d.TaskID = t.ID
		if d.ID == 0 {
			err := tx.QueryRow(ctx, `
                INSERT INTO daily_tasks (task_id, date, title, description, completed, completed_at, completed_by, notes)
                VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
                RETURNING id
            `, d.TaskID, d.Date, d.Title, d.Description, d.Completed, d.CompletedAt, d.CompletedBy, d.Notes).Scan(&d.ID)
			if err != nil {
				return storeErr("insert daily task", err)
			}
		} else {
			_, err := tx.Exec(ctx, `
                UPDATE daily_tasks
                SET date = $2, title = $3, description = $4, completed = $5, completed_at = $6, completed_by = $7, notes = $8
                WHERE id = $1
            `, d.ID, d.Date, d.Title, d.Description, d.Completed, d.CompletedAt, d.CompletedBy, d.Notes)
			if err != nil {
				return storeErr("update daily task", err)
			}
		}

		if _, err := tx.Exec(ctx, `DELETE FROM daily_task_workers WHERE daily_task_id = $1`, d.ID); err != nil {
			return storeErr("clear daily task workers", err)
		}
		for _, workerID := range d.AssignedWorkers {
			_, err := tx.Exec(ctx, `
                INSERT INTO daily_task_workers (daily_task_id, worker_id)
                VALUES ($1, $2)
            `, d.ID, workerID)
			if err != nil {
				return storeErr("insert daily task worker", err)
			}
		}
	}

	for i := range t.ChangeRequests {
		cr := &t.ChangeRequests[i]
		cr.TaskID = t.ID
		if cr.ID == 0 {
			err := tx.QueryRow(ctx, `
                INSERT INTO change_requests (task_id, type, magnitude, reason, status, created_at, resolved_at)
                VALUES ($1, $2, $3, $4, $5, $6, $7)
                RETURNING id
            `, cr.TaskID, cr.Type, cr.Magnitude, cr.Reason, cr.Status, cr.CreatedAt, cr.ResolvedAt).Scan(&cr.ID)
			if err != nil {
				return storeErr("insert change request", err)
			}
		} else {
			_, err := tx.Exec(ctx, `
                UPDATE change_requests
                SET status = $2, resolved_at = $3
                WHERE id = $1
            `, cr.ID, cr.Status, cr.ResolvedAt)
			if err != nil {
				return storeErr("update change request", err)
			}
		}
	}

	return nil
}

func (r *TaskRepository) loadChildren(ctx context.Context, t *model.WeeklyTask) error {
	rows, err := r.db.Query(ctx, `
        SELECT material_id, quantity, unit, available
        FROM task_materials
        WHERE task_id = $1
        ORDER BY position
    `, t.ID)
	if err != nil {
		return storeErr("select task materials", err)
	}
	for rows.Next() {
		var m model.MaterialRequirement
		if err := rows.Scan(&m.MaterialID, &m.Quantity, &m.Unit, &m.Available); err != nil {
			rows.Close()
			return storeErr("scan task material", err)
		}
		t.RequiredMaterials = append(t.RequiredMaterials, m)
	}
	rows.Close()
	// A mid-stream failure must not read as a shorter child list.
	if err := rows.Err(); err != nil {
		return storeErr("iterate task materials", err)
	}

	rows, err = r.db.Query(ctx, `
        SELECT specialization, count
        FROM task_worker_requirements
        WHERE task_id = $1
        ORDER BY specialization
    `, t.ID)
	if err != nil {
		return storeErr("select worker requirements", err)
	}
	for rows.Next() {
		var w model.WorkerRequirement
		if err := rows.Scan(&w.Specialization, &w.Count); err != nil {
			rows.Close()
			return storeErr("scan worker requirement", err)
		}
		t.RequiredWorkers = append(t.RequiredWorkers, w)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return storeErr("iterate worker requirements", err)
	}

	rows, err = r.db.Query(ctx, `
        SELECT worker_id, specialization
        FROM task_assignments
        WHERE task_id = $1
        ORDER BY worker_id
    `, t.ID)
	if err != nil {
		return storeErr("select assignments", err)
	}
	for rows.Next() {
		var a model.Assignment
		if err := rows.Scan(&a.WorkerID, &a.Specialization); err != nil {
			rows.Close()
			return storeErr("scan assignment", err)
		}
		t.Assignments = append(t.Assignments, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return storeErr("iterate assignments", err)
	}

	rows, err = r.db.Query(ctx, `
        SELECT id, task_id, date, title, description, completed, completed_at, completed_by, notes
        FROM daily_tasks
        WHERE task_id = $1
        ORDER BY date, id
    `, t.ID)
	if err != nil {
		return storeErr("select daily tasks", err)
	}
	for rows.Next() {
		var d model.DailyTask
		if err := rows.Scan(&d.ID, &d.TaskID, &d.Date, &d.Title, &d.Description, &d.Completed, &d.CompletedAt, &d.CompletedBy, &d.Notes); err != nil {
			rows.Close()
			return storeErr("scan daily task", err)
		}
		t.DailyTasks = append(t.DailyTasks, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return storeErr("iterate daily tasks", err)
	}

	for i := range t.DailyTasks {
		d := &t.DailyTasks[i]
		workerRows, err := r.db.Query(ctx, `
            SELECT worker_id
            FROM daily_task_workers
            WHERE daily_task_id = $1
            ORDER BY worker_id
        `, d.ID)
		if err != nil {
			return storeErr("select daily task workers", err)
		}
		for workerRows.Next() {
			var workerID int64
			if err := workerRows.Scan(&workerID); err != nil {
				workerRows.Close()
				return storeErr("scan daily task worker", err)
			}
			d.AssignedWorkers = append(d.AssignedWorkers, workerID)
		}
		workerRows.Close()
		if err := workerRows.Err(); err != nil {
			return storeErr("iterate daily task workers", err)
		}
	}

	rows, err = r.db.Query(ctx, `
        SELECT id, task_id, type, magnitude, reason, status, created_at, resolved_at
        FROM change_requests
        WHERE task_id = $1
        ORDER BY created_at, id
    `, t.ID)
	if err != nil {
		return storeErr("select change requests", err)
	}
	for rows.Next() {
		var cr model.ChangeRequest
		if err := rows.Scan(&cr.ID, &cr.TaskID, &cr.Type, &cr.Magnitude, &cr.Reason, &cr.Status, &cr.CreatedAt, &cr.ResolvedAt); err != nil {
			rows.Close()
			return storeErr("scan change request", err)
		}
		t.ChangeRequests = append(t.ChangeRequests, cr)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return storeErr("iterate change requests", err)
	}

	return nil
}
