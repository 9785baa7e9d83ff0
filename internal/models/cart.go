package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Cart is transient pre-order state. The checkout flow consumes and deletes
// it on successful order commitment; it survives a rejected checkout.
type Cart struct {
	bun.BaseModel `bun:"table:carts"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	UserID    *int64    `bun:"user_id,nullzero" json:"user_id,omitempty"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`

	Items []*CartItem `bun:"rel:has-many,join:id=cart_id" json:"items,omitempty"`
}

type CartItem struct {
	bun.BaseModel `bun:"table:cart_items"`

	ID        int64 `bun:"id,pk,autoincrement" json:"id"`
	CartID    int64 `bun:"cart_id,notnull" json:"cart_id"`
	ProductID int64 `bun:"product_id,notnull" json:"product_id"`
	Quantity  int   `bun:"quantity,notnull" json:"quantity"`
}
