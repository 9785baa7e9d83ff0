package promotion

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"storefront/internal/models"

	"github.com/uptrace/bun"
)

// Validator resolves promotion codes against the promotions table. It is a
// pure read: no usage counters, no side effects, safe to call repeatedly.
type Validator struct {
	Bun *bun.DB
}

func NewValidator(bunDB *bun.DB) *Validator {
	return &Validator{Bun: bunDB}
}

// Validate normalizes the code to uppercase and returns the matching
// promotion when it is active and the current time falls inside its window.
// Anything else - wrong code, inactive, outside the window - is NotFound so a
// bad code blocks checkout with the same message regardless of why it failed.
func (v *Validator) Validate(ctx context.Context, code string) (*models.Promotion, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return nil, models.ErrBadRequest("promotion code is empty")
	}

	now := time.Now()

	var promo models.Promotion
	err := v.Bun.NewSelect().
		Model(&promo).
		Where("code = ?", normalized).
		Where("is_active = ?", true).
		Where("start_date <= ?", now).
		Where("end_date >= ?", now).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound("invalid or expired promotion code")
	}
	if err != nil {
		return nil, err
	}

	return &promo, nil
}
