package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"storefront/internal/logger"
	"storefront/internal/models"

	"github.com/uptrace/bun"
)

type DBStore struct {
	Bun *bun.DB
	Log *logger.Logger
}

func NewDBStore(bunDB *bun.DB, log *logger.Logger) *DBStore {
	return &DBStore{Bun: bunDB, Log: log}
}

func (s *DBStore) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	var order models.Order
	err := s.Bun.NewSelect().
		Model(&order).
		Relation("Payment").
		Where("\"order\".id = ?", orderID).
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

func (s *DBStore) GetPaymentByOrderID(ctx context.Context, orderID int64) (*models.Payment, error) {
	var payment models.Payment
	err := s.Bun.NewSelect().
		Model(&payment).
		Where("order_id = ?", orderID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound("payment not found for order")
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (s *DBStore) SetProviderRef(ctx context.Context, orderID int64, providerRef string) error {
	_, err := s.Bun.NewUpdate().
		Model((*models.Payment)(nil)).
		Set("provider_ref = ?", providerRef).
		Set("updated_at = ?", time.Now()).
		Where("order_id = ?", orderID).
		Exec(ctx)
	return err
}

// MarkPaymentFailed marks the payment FAILED and appends a history row
// carrying the order's current status - a failed attempt does not move the
// order. A payment that already succeeded is never downgraded.
func (s *DBStore) MarkPaymentFailed(ctx context.Context, orderID int64, comment string) error {
	return s.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		payment, order, err := paymentAndOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if payment.Status == models.PaymentSuccess {
			return ErrAlreadySucceeded
		}

		if _, err := tx.NewUpdate().
			Model((*models.Payment)(nil)).
			Set("status = ?", models.PaymentFailed).
			Set("updated_at = ?", time.Now()).
			Where("order_id = ?", orderID).
			Exec(ctx); err != nil {
			return err
		}

		history := &models.OrderHistory{
			OrderID:   orderID,
			Status:    order.Status,
			Comment:   comment,
			CreatedAt: time.Now(),
		}
		_, err = tx.NewInsert().Model(history).Exec(ctx)
		return err
	})
}

// MarkPaymentSucceeded flips the payment to SUCCESS with the provider's
// transaction id, moves a PENDING order to PAID, and appends the audit row.
// Returns ErrAlreadySucceeded when the payment is already terminal.
func (s *DBStore) MarkPaymentSucceeded(ctx context.Context, orderID int64, transactionID, comment string) error {
	return s.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		payment, order, err := paymentAndOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if payment.Status == models.PaymentSuccess {
			return ErrAlreadySucceeded
		}

		if _, err := tx.NewUpdate().
			Model((*models.Payment)(nil)).
			Set("status = ?", models.PaymentSuccess).
			Set("transaction_id = ?", transactionID).
			Set("updated_at = ?", time.Now()).
			Where("order_id = ?", orderID).
			Exec(ctx); err != nil {
			return err
		}

		// Payment confirmation only ever moves PENDING to PAID; an order an
		// admin already moved elsewhere keeps its status.
		historyStatus := order.Status
		if order.Status == models.OrderPending {
			if _, err := tx.NewUpdate().
				Model((*models.Order)(nil)).
				Set("status = ?", models.OrderPaid).
				Set("updated_at = ?", time.Now()).
				Where("id = ?", orderID).
				Exec(ctx); err != nil {
				return err
			}
			historyStatus = models.OrderPaid
		}

		history := &models.OrderHistory{
			OrderID:   orderID,
			Status:    historyStatus,
			Comment:   comment,
			CreatedAt: time.Now(),
		}
		_, err = tx.NewInsert().Model(history).Exec(ctx)
		return err
	})
}

func paymentAndOrder(ctx context.Context, tx bun.Tx, orderID int64) (*models.Payment, *models.Order, error) {
	var payment models.Payment
	err := tx.NewSelect().
		Model(&payment).
		Where("order_id = ?", orderID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, models.ErrNotFound("payment not found for order")
	}
	if err != nil {
		return nil, nil, err
	}

	var order models.Order
	err = tx.NewSelect().
		Model(&order).
		Where("id = ?", orderID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, models.ErrNotFound("order not found")
	}
	if err != nil {
		return nil, nil, err
	}

	return &payment, &order, nil
}
