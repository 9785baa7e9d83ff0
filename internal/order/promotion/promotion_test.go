package promotion_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"storefront/internal/models"
	"storefront/internal/order/promotion"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"
)

func setupValidator(t *testing.T) (*promotion.Validator, *bun.DB) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	_, err = bunDB.NewCreateTable().Model((*models.Promotion)(nil)).Exec(context.Background())
	if err != nil {
		t.Fatalf("Failed to create promotions table: %v", err)
	}

	return promotion.NewValidator(bunDB), bunDB
}

func seedPromotion(t *testing.T, bunDB *bun.DB, code string, active bool, start, end time.Time) {
	promo := &models.Promotion{
		Code:      code,
		Type:      models.PromotionPercentage,
		Value:     10,
		IsActive:  active,
		StartDate: start,
		EndDate:   end,
		CreatedAt: time.Now(),
	}
	_, err := bunDB.NewInsert().Model(promo).Exec(context.Background())
	require.NoError(t, err)
}

func TestValidate_ActiveCode(t *testing.T) {
	validator, bunDB := setupValidator(t)
	defer bunDB.Close()

	now := time.Now()
	seedPromotion(t, bunDB, "SAVE10", true, now.Add(-24*time.Hour), now.Add(24*time.Hour))

	promo, err := validator.Validate(context.Background(), "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", promo.Code)
	assert.Equal(t, models.PromotionPercentage, promo.Type)
}

func TestValidate_NormalizesCase(t *testing.T) {
	validator, bunDB := setupValidator(t)
	defer bunDB.Close()

	now := time.Now()
	seedPromotion(t, bunDB, "SAVE10", true, now.Add(-24*time.Hour), now.Add(24*time.Hour))

	promo, err := validator.Validate(context.Background(), "  save10 ")
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", promo.Code)
}

func TestValidate_EmptyCode(t *testing.T) {
	validator, bunDB := setupValidator(t)
	defer bunDB.Close()

	promo, err := validator.Validate(context.Background(), "   ")
	assert.Nil(t, promo)
	assert.True(t, models.IsKind(err, models.KindBadRequest))
}

func TestValidate_UnknownCode(t *testing.T) {
	validator, bunDB := setupValidator(t)
	defer bunDB.Close()

	promo, err := validator.Validate(context.Background(), "NOPE")
	assert.Nil(t, promo)
	assert.True(t, models.IsKind(err, models.KindNotFound))
}

func TestValidate_InactiveCode(t *testing.T) {
	validator, bunDB := setupValidator(t)
	defer bunDB.Close()

	now := time.Now()
	seedPromotion(t, bunDB, "PAUSED", false, now.Add(-24*time.Hour), now.Add(24*time.Hour))

	promo, err := validator.Validate(context.Background(), "PAUSED")
	assert.Nil(t, promo)
	assert.True(t, models.IsKind(err, models.KindNotFound))
}

func TestValidate_OutsideWindow(t *testing.T) {
	validator, bunDB := setupValidator(t)
	defer bunDB.Close()

	now := time.Now()
	seedPromotion(t, bunDB, "EXPIRED20", true, now.Add(-48*time.Hour), now.Add(-24*time.Hour))
	seedPromotion(t, bunDB, "SOON", true, now.Add(24*time.Hour), now.Add(48*time.Hour))

	for _, code := range []string{"EXPIRED20", "SOON"} {
		promo, err := validator.Validate(context.Background(), code)
		assert.Nil(t, promo)
		assert.True(t, models.IsKind(err, models.KindNotFound))
	}
}

func TestDiscountOn(t *testing.T) {
	percentage := &models.Promotion{Type: models.PromotionPercentage, Value: 10}
	assert.Equal(t, 100.0, percentage.DiscountOn(1000))
	assert.Equal(t, 0.0, percentage.DiscountOn(0))

	fixed := &models.Promotion{Type: models.PromotionFixedAmount, Value: 200}
	assert.Equal(t, 200.0, fixed.DiscountOn(1000))
	// Never discounts past the subtotal.
	assert.Equal(t, 150.0, fixed.DiscountOn(150))
}
