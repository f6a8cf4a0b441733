package inventory

import (
	"context"

	"go.uber.org/zap"

	"siteops/internal/model"
)

// StockProvider reports the current stock level for a material.
type StockProvider interface {
	Level(ctx context.Context, materialID string) (int, error)
}

// Checker marks each material line available when current stock covers
// the demanded quantity. The check is advisory: nothing is reserved or
// decremented, so two tasks can both see the same stock as available.
// Callers re-check before activating a task if staleness matters.
type Checker struct {
	provider StockProvider
	logger   *zap.Logger
}

func NewChecker(provider StockProvider, logger *zap.Logger) *Checker {
	return &Checker{provider: provider, logger: logger}
}

func (c *Checker) Check(ctx context.Context, lines []model.MaterialRequirement) ([]model.MaterialRequirement, error) {
	out := make([]model.MaterialRequirement, len(lines))
	copy(out, lines)

	for i := range out {
		level, err := c.provider.Level(ctx, out[i].MaterialID)
		if err != nil {
			c.logger.Error("Failed to read stock level",
				zap.String("material_id", out[i].MaterialID),
				zap.Error(err),
			)
			return nil, err
		}
		out[i].Available = level >= out[i].Quantity

		c.logger.Debug("Material availability checked",
			zap.String("material_id", out[i].MaterialID),
			zap.Int("required", out[i].Quantity),
			zap.Int("stock", level),
			zap.Bool("available", out[i].Available),
		)
	}

	return out, nil
}
