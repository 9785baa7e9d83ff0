package order

import (
	"storefront/internal/models"
)

// allowedTransitions is the explicit order status transition table. Admin
// updates and payment confirmation both go through it; an order can never
// reach a status that is not listed for its current one.
var allowedTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderPending:    {models.OrderPaid, models.OrderProcessing, models.OrderCancelled},
	models.OrderPaid:       {models.OrderProcessing, models.OrderCancelled, models.OrderRefunded},
	models.OrderProcessing: {models.OrderShipped, models.OrderCancelled},
	models.OrderShipped:    {models.OrderDelivered, models.OrderRefunded},
	models.OrderDelivered:  {models.OrderRefunded},
	// CANCELLED and REFUNDED are terminal.
	models.OrderCancelled: {},
	models.OrderRefunded:  {},
}

// CanTransition reports whether from -> to is an allowed status transition.
func CanTransition(from, to models.OrderStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
