package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Product struct {
	bun.BaseModel `bun:"table:products"`

	ID           int64    `bun:"id,pk,autoincrement" json:"id"`
	Name         string   `bun:"name,notnull" json:"name"`
	RegularPrice float64  `bun:"regular_price,notnull" json:"regular_price"`
	SalePrice    *float64 `bun:"sale_price,nullzero" json:"sale_price,omitempty"`
	// Stock is decremented on order commit without a lower bound; see the
	// checkout service for the oversell semantics.
	Stock     int       `bun:"stock,notnull,default:0" json:"stock"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// EffectivePrice is the sale price when present, else the regular price.
// Checkout always charges this, never a client-supplied price.
func (p *Product) EffectivePrice() float64 {
	if p.SalePrice != nil {
		return *p.SalePrice
	}
	return p.RegularPrice
}

type User struct {
	bun.BaseModel `bun:"table:users"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	Name      string    `bun:"name,nullzero" json:"name"`
	Phone     string    `bun:"phone,nullzero" json:"phone"`
	Email     string    `bun:"email,notnull,unique" json:"email"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

type Address struct {
	bun.BaseModel `bun:"table:addresses"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	UserID      int64     `bun:"user_id,notnull" json:"user_id"`
	FullAddress string    `bun:"full_address,notnull" json:"full_address"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}
