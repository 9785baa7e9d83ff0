package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"storefront/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- LOOKUPS ----------------

func (d *DB) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := d.Bun.NewSelect().
		Model(&user).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound("user not found")
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *DB) GetAddress(ctx context.Context, id int64) (*models.Address, error) {
	var address models.Address
	err := d.Bun.NewSelect().
		Model(&address).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound("address not found")
	}
	if err != nil {
		return nil, err
	}
	return &address, nil
}

// GetCartWithItems fetches a cart and its items.
func (d *DB) GetCartWithItems(ctx context.Context, cartID int64) (*models.Cart, error) {
	var cart models.Cart
	err := d.Bun.NewSelect().
		Model(&cart).
		Relation("Items").
		Where("cart.id = ?", cartID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound("cart not found")
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// GetProducts fetches the given product ids, keyed by id. Missing ids are
// simply absent from the map; the caller decides whether that is fatal.
func (d *DB) GetProducts(ctx context.Context, ids []int64) (map[int64]*models.Product, error) {
	if len(ids) == 0 {
		return map[int64]*models.Product{}, nil
	}

	var products []*models.Product
	err := d.Bun.NewSelect().
		Model(&products).
		Where("id IN (?)", bun.In(ids)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return byID, nil
}

// ---------------- ORDERS ----------------

// CommitOrder persists the order, its items and its payment row, decrements
// stock per line item and discards the source cart, all inside one
// transaction. Any failure rolls the whole commit back.
func (d *DB) CommitOrder(ctx context.Context, order *models.Order, items []*models.OrderItem, payment *models.Payment, cartID *int64) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(order).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}

		for _, item := range items {
			item.OrderID = order.ID
		}
		if _, err := tx.NewInsert().Model(&items).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert order items: %w", err)
		}
		order.Items = items

		payment.OrderID = order.ID
		if _, err := tx.NewInsert().Model(payment).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert payment: %w", err)
		}
		order.Payment = payment

		// Plain decrement, no stock gate. Concurrent checkouts of the same
		// product can drive stock negative; see DESIGN.md.
		for _, item := range items {
			_, err := tx.NewUpdate().
				Model((*models.Product)(nil)).
				Set("stock = stock - ?", item.Quantity).
				Where("id = ?", item.ProductID).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to decrement stock for product %d: %w", item.ProductID, err)
			}
		}

		if cartID != nil {
			if _, err := tx.NewDelete().
				Model((*models.CartItem)(nil)).
				Where("cart_id = ?", *cartID).
				Exec(ctx); err != nil {
				return fmt.Errorf("failed to delete cart items: %w", err)
			}
			if _, err := tx.NewDelete().
				Model((*models.Cart)(nil)).
				Where("id = ?", *cartID).
				Exec(ctx); err != nil {
				return fmt.Errorf("failed to delete cart: %w", err)
			}
		}

		history := &models.OrderHistory{
			OrderID:   order.ID,
			Status:    order.Status,
			Comment:   "Order placed",
			CreatedAt: time.Now(),
		}
		if _, err := tx.NewInsert().Model(history).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert order history: %w", err)
		}

		return nil
	})
}

// GetOrderByID fetches an order with its items and payment.
func (d *DB) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Relation("Items").
		Relation("Payment").
		Where("\"order\".id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound("order not found")
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrdersByUserID fetches all orders for a user, newest first.
func (d *DB) GetOrdersByUserID(ctx context.Context, userID int64) ([]*models.Order, error) {
	var orders []*models.Order
	err := d.Bun.NewSelect().
		Model(&orders).
		Relation("Items").
		Relation("Payment").
		Where("\"order\".user_id = ?", userID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateOrderStatus applies a status transition and appends the audit row in
// one transaction. Transition legality is the service's concern.
func (d *DB) UpdateOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus, comment string) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Order)(nil)).
			Set("status = ?", status).
			Set("updated_at = ?", time.Now()).
			Where("id = ?", orderID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}
		if rows, err := res.RowsAffected(); err == nil && rows == 0 {
			return models.ErrNotFound("order not found")
		}

		history := &models.OrderHistory{
			OrderID:   orderID,
			Status:    status,
			Comment:   comment,
			CreatedAt: time.Now(),
		}
		if _, err := tx.NewInsert().Model(history).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert order history: %w", err)
		}
		return nil
	})
}

// SetOrderTracking stores courier booking identifiers on the order.
func (d *DB) SetOrderTracking(ctx context.Context, orderID int64, consignmentID, trackingCode string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("consignment_id = ?", consignmentID).
		Set("tracking_code = ?", trackingCode).
		Where("id = ?", orderID).
		Exec(ctx)
	return err
}

// GetOrderHistory fetches the append-only audit trail for an order.
func (d *DB) GetOrderHistory(ctx context.Context, orderID int64) ([]*models.OrderHistory, error) {
	var history []*models.OrderHistory
	err := d.Bun.NewSelect().
		Model(&history).
		Where("order_id = ?", orderID).
		Order("created_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return history, nil
}

// InsertActivityLog records a registered user's action. Best-effort callers
// swallow the error.
func (d *DB) InsertActivityLog(ctx context.Context, entry *models.ActivityLog) error {
	_, err := d.Bun.NewInsert().Model(entry).Exec(ctx)
	return err
}
