package models

import (
	"time"

	"github.com/uptrace/bun"
)

type PromotionType string

const (
	PromotionPercentage  PromotionType = "PERCENTAGE"
	PromotionFixedAmount PromotionType = "FIXED_AMOUNT"
)

// Promotion is read-only from the checkout flow's perspective. Codes are
// stored uppercase and matched case-insensitively.
type Promotion struct {
	bun.BaseModel `bun:"table:promotions"`

	ID        int64         `bun:"id,pk,autoincrement" json:"id"`
	Code      string        `bun:"code,notnull,unique" json:"code"`
	Type      PromotionType `bun:"type,notnull" json:"type"`
	Value     float64       `bun:"value,notnull" json:"value"`
	IsActive  bool          `bun:"is_active,notnull,default:true" json:"is_active"`
	StartDate time.Time     `bun:"start_date,notnull" json:"start_date"`
	EndDate   time.Time     `bun:"end_date,notnull" json:"end_date"`
	CreatedAt time.Time     `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// DiscountOn computes the discount this promotion yields for the given
// subtotal. The result never exceeds the subtotal.
func (p *Promotion) DiscountOn(subtotal float64) float64 {
	var discount float64
	switch p.Type {
	case PromotionPercentage:
		discount = subtotal * p.Value / 100
	case PromotionFixedAmount:
		discount = p.Value
	}
	if discount > subtotal {
		discount = subtotal
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}
