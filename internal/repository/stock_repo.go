package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// StockRepository mirrors the externally owned inventory levels. A
// material without a row counts as out of stock.
type StockRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewStockRepository(db *pgxpool.Pool, logger *zap.Logger) *StockRepository {
	return &StockRepository{db: db, logger: logger}
}

func (r *StockRepository) SetLevel(ctx context.Context, materialID string, level int) error {
	query := `
        INSERT INTO stock_levels (material_id, level, updated_at)
        VALUES ($1, $2, NOW())
        ON CONFLICT (material_id) DO UPDATE
        SET level = EXCLUDED.level, updated_at = NOW()
    `
	_, err := r.db.Exec(ctx, query, materialID, level)
	if err != nil {
		r.logger.Error("Failed to set stock level",
			zap.String("material_id", materialID),
			zap.Error(err),
		)
		return storeErr("upsert stock level", err)
	}
	return nil
}

func (r *StockRepository) Level(ctx context.Context, materialID string) (int, error) {
	var level int
	err := r.db.QueryRow(ctx, `SELECT level FROM stock_levels WHERE material_id = $1`, materialID).Scan(&level)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, storeErr("select stock level", err)
	}
	return level, nil
}
