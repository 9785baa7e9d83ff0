package models

import (
	"time"

	"github.com/uptrace/bun"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "PENDING"
	OrderPaid       OrderStatus = "PAID"
	OrderProcessing OrderStatus = "PROCESSING"
	OrderShipped    OrderStatus = "SHIPPED"
	OrderDelivered  OrderStatus = "DELIVERED"
	OrderCancelled  OrderStatus = "CANCELLED"
	OrderRefunded   OrderStatus = "REFUNDED"
)

// OrderStatuses lists every recognized status value, in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderPending, OrderPaid, OrderProcessing, OrderShipped,
	OrderDelivered, OrderCancelled, OrderRefunded,
}

// IsValidOrderStatus reports whether s is one of the recognized status values.
func IsValidOrderStatus(s OrderStatus) bool {
	for _, known := range OrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID        int64  `bun:"id,pk,autoincrement" json:"id"`
	UserID    *int64 `bun:"user_id,nullzero" json:"user_id,omitempty"`
	AddressID *int64 `bun:"address_id,nullzero" json:"address_id,omitempty"`

	// Denormalized customer details so guest orders and deleted accounts stay
	// readable in the back office.
	CustomerName    string `bun:"customer_name,notnull" json:"customer_name"`
	CustomerPhone   string `bun:"customer_phone,notnull" json:"customer_phone"`
	CustomerEmail   string `bun:"customer_email,nullzero" json:"customer_email,omitempty"`
	ShippingAddress string `bun:"shipping_address,notnull" json:"shipping_address"`

	TotalAmount    float64 `bun:"total_amount,notnull" json:"total_amount"`
	DiscountAmount float64 `bun:"discount_amount,notnull,default:0" json:"discount_amount"`
	PromotionCode  string  `bun:"promotion_code,nullzero" json:"promotion_code,omitempty"`

	// PaymentMethod is fixed at placement and mirrored on the payment row.
	PaymentMethod PaymentMethod `bun:"payment_method,notnull" json:"payment_method"`

	Status   OrderStatus `bun:"status,notnull" json:"status"`
	OriginIP string      `bun:"origin_ip,nullzero" json:"origin_ip,omitempty"`

	// Courier tracking fields stay empty until a consignment is booked.
	ConsignmentID string `bun:"consignment_id,nullzero" json:"consignment_id,omitempty"`
	TrackingCode  string `bun:"tracking_code,nullzero" json:"tracking_code,omitempty"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero" json:"updated_at,omitempty"`

	Items   []*OrderItem `bun:"rel:has-many,join:id=order_id" json:"items,omitempty"`
	Payment *Payment     `bun:"rel:has-one,join:id=order_id" json:"payment,omitempty"`
}

// Subtotal is the pre-discount sum of the order's line items.
func (o *Order) Subtotal() float64 {
	return o.TotalAmount + o.DiscountAmount
}

type OrderItem struct {
	bun.BaseModel `bun:"table:order_items"`

	ID      int64 `bun:"id,pk,autoincrement" json:"id"`
	OrderID int64 `bun:"order_id,notnull" json:"order_id"`
	// ProductName is captured at order time; later renames or deletions in the
	// catalog do not change historical orders.
	ProductID   int64   `bun:"product_id,notnull" json:"product_id"`
	ProductName string  `bun:"product_name,notnull" json:"product_name"`
	Quantity    int     `bun:"quantity,notnull" json:"quantity"`
	UnitPrice   float64 `bun:"unit_price,notnull" json:"unit_price"`
}

// OrderHistory is an append-only audit log. Rows are never updated or deleted.
type OrderHistory struct {
	bun.BaseModel `bun:"table:order_histories"`

	ID        int64       `bun:"id,pk,autoincrement" json:"id"`
	OrderID   int64       `bun:"order_id,notnull" json:"order_id"`
	Status    OrderStatus `bun:"status,notnull" json:"status"`
	Comment   string      `bun:"comment,nullzero" json:"comment,omitempty"`
	CreatedAt time.Time   `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

type ActivityLog struct {
	bun.BaseModel `bun:"table:activity_logs"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	UserID    int64     `bun:"user_id,notnull" json:"user_id"`
	Action    string    `bun:"action,notnull" json:"action"`
	Detail    string    `bun:"detail,nullzero" json:"detail,omitempty"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// ---------------- REQUEST / RESPONSE SHAPES ----------------

type OrderItemInput struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type GuestDetails struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
}

// PlaceOrderRequest carries exactly one of CartID or Items, and either an
// AddressID (registered users) or GuestDetails+FullAddress (guest checkout).
type PlaceOrderRequest struct {
	CartID        *int64           `json:"cartId,omitempty"`
	Items         []OrderItemInput `json:"items,omitempty"`
	AddressID     *int64           `json:"addressId,omitempty"`
	GuestDetails  *GuestDetails    `json:"guestDetails,omitempty"`
	FullAddress   string           `json:"fullAddress,omitempty"`
	PaymentMethod PaymentMethod    `json:"paymentMethod"`
	PromotionCode string           `json:"promotionCode,omitempty"`
}

type UpdateOrderStatusRequest struct {
	Status  OrderStatus `json:"status"`
	Comment string      `json:"comment,omitempty"`
}
