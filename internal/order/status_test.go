package order_test

import (
	"testing"

	"storefront/internal/models"
	"storefront/internal/order"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from    models.OrderStatus
		to      models.OrderStatus
		allowed bool
	}{
		{models.OrderPending, models.OrderPaid, true},
		{models.OrderPending, models.OrderProcessing, true},
		{models.OrderPending, models.OrderCancelled, true},
		{models.OrderPending, models.OrderShipped, false},
		{models.OrderPending, models.OrderDelivered, false},
		{models.OrderPaid, models.OrderProcessing, true},
		{models.OrderPaid, models.OrderCancelled, true},
		{models.OrderPaid, models.OrderRefunded, true},
		{models.OrderPaid, models.OrderPending, false},
		{models.OrderProcessing, models.OrderShipped, true},
		{models.OrderProcessing, models.OrderCancelled, true},
		{models.OrderProcessing, models.OrderPaid, false},
		{models.OrderShipped, models.OrderDelivered, true},
		{models.OrderShipped, models.OrderRefunded, true},
		{models.OrderShipped, models.OrderCancelled, false},
		{models.OrderDelivered, models.OrderRefunded, true},
		{models.OrderDelivered, models.OrderShipped, false},
		{models.OrderCancelled, models.OrderPending, false},
		{models.OrderCancelled, models.OrderPaid, false},
		{models.OrderRefunded, models.OrderPaid, false},
	}

	for _, c := range cases {
		got := order.CanTransition(c.from, c.to)
		assert.Equalf(t, c.allowed, got, "%s -> %s", c.from, c.to)
	}
}

func TestCanTransition_SameStatusIsNotATransition(t *testing.T) {
	for _, status := range []models.OrderStatus{
		models.OrderPending,
		models.OrderPaid,
		models.OrderProcessing,
		models.OrderShipped,
		models.OrderDelivered,
		models.OrderCancelled,
		models.OrderRefunded,
	} {
		assert.Falsef(t, order.CanTransition(status, status), "%s -> %s", status, status)
	}
}
