package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"storefront/internal/logger"
	"storefront/internal/models"
)

type DBLayer interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetAddress(ctx context.Context, id int64) (*models.Address, error)
	GetCartWithItems(ctx context.Context, cartID int64) (*models.Cart, error)
	GetProducts(ctx context.Context, ids []int64) (map[int64]*models.Product, error)
	CommitOrder(ctx context.Context, order *models.Order, items []*models.OrderItem, payment *models.Payment, cartID *int64) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrdersByUserID(ctx context.Context, userID int64) ([]*models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus, comment string) error
	SetOrderTracking(ctx context.Context, orderID int64, consignmentID, trackingCode string) error
	GetOrderHistory(ctx context.Context, orderID int64) ([]*models.OrderHistory, error)
	InsertActivityLog(ctx context.Context, entry *models.ActivityLog) error
}

type PromotionValidator interface {
	Validate(ctx context.Context, code string) (*models.Promotion, error)
}

type EventPublisher interface {
	PublishOrderCreated(order *models.Order) error
	PublishOrderStatus(orderID int64, status models.OrderStatus) error
}

// Notifier sends the admin new-order notification. Failures never fail the
// checkout.
type Notifier interface {
	OrderPlaced(order *models.Order) error
}

// Consignment is a courier booking for a shipped order.
type Consignment struct {
	ConsignmentID string
	TrackingCode  string
}

type Courier interface {
	CreateConsignment(ctx context.Context, order *models.Order) (*Consignment, error)
}

type OrderService struct {
	DB         DBLayer
	Promotions PromotionValidator
	Events     EventPublisher
	Notifier   Notifier
	Courier    Courier
	logger     *logger.Logger
}

func NewOrderService(db DBLayer, promotions PromotionValidator, events EventPublisher, notifier Notifier, courier Courier, log *logger.Logger) *OrderService {
	return &OrderService{
		DB:         db,
		Promotions: promotions,
		Events:     events,
		Notifier:   notifier,
		Courier:    courier,
		logger:     log,
	}
}

// ---------------- CHECKOUT ----------------

// PlaceOrder converts a cart or an inline item list into a persisted order
// with a pending payment. Validation happens before any mutation; the commit
// itself is all-or-nothing; notification and activity logging run after the
// commit and never roll it back.
func (s *OrderService) PlaceOrder(ctx context.Context, userID *int64, req models.PlaceOrderRequest, originIP string) (*models.Order, error) {
	if !models.IsValidPaymentMethod(req.PaymentMethod) {
		return nil, models.ErrBadRequest("unrecognized payment method")
	}

	itemInputs, err := s.resolveItemInputs(ctx, req)
	if err != nil {
		return nil, err
	}

	items, subtotal, err := s.priceItems(ctx, itemInputs)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		Status:        models.OrderPending,
		PaymentMethod: req.PaymentMethod,
		OriginIP:      originIP,
		CreatedAt:     time.Now(),
	}

	if err := s.resolveCustomer(ctx, userID, req, order); err != nil {
		return nil, err
	}

	var discount float64
	if req.PromotionCode != "" {
		promo, err := s.Promotions.Validate(ctx, req.PromotionCode)
		if err != nil {
			// A bad code blocks checkout rather than silently dropping the
			// discount.
			return nil, err
		}
		discount = promo.DiscountOn(subtotal)
		order.PromotionCode = promo.Code
	}

	order.DiscountAmount = discount
	order.TotalAmount = subtotal - discount

	payment := &models.Payment{
		Method:    req.PaymentMethod,
		Status:    models.PaymentPending,
		Amount:    order.TotalAmount,
		CreatedAt: time.Now(),
	}

	if err := s.DB.CommitOrder(ctx, order, items, payment, req.CartID); err != nil {
		s.logger.Error("CHECKOUT", fmt.Sprintf("Order commit failed: %v", err))
		return nil, err
	}

	s.logger.LogCheckout("PLACED", order.ID, fmt.Sprintf("total=%.2f discount=%.2f method=%s", order.TotalAmount, order.DiscountAmount, req.PaymentMethod))

	// Best-effort side effects; errors are logged and swallowed.
	if s.Events != nil {
		if err := s.Events.PublishOrderCreated(order); err != nil {
			s.logger.Error("KAFKA", fmt.Sprintf("Failed to publish order created event for order %d: %v", order.ID, err))
		}
	}
	if s.Notifier != nil {
		if err := s.Notifier.OrderPlaced(order); err != nil {
			s.logger.Error("NOTIFY", fmt.Sprintf("Failed to send admin notification for order %d: %v", order.ID, err))
		}
	}
	if userID != nil {
		entry := &models.ActivityLog{
			UserID:    *userID,
			Action:    "order_placed",
			Detail:    fmt.Sprintf("Order #%d placed, total %.2f", order.ID, order.TotalAmount),
			CreatedAt: time.Now(),
		}
		if err := s.DB.InsertActivityLog(ctx, entry); err != nil {
			s.logger.Error("ACTIVITY", fmt.Sprintf("Failed to write activity log for user %d: %v", *userID, err))
		}
	}

	return order, nil
}

// resolveItemInputs enforces the cart-or-inline-items rule and returns the
// raw inputs to price.
func (s *OrderService) resolveItemInputs(ctx context.Context, req models.PlaceOrderRequest) ([]models.OrderItemInput, error) {
	if req.CartID != nil && len(req.Items) > 0 {
		return nil, models.ErrBadRequest("provide either cartId or items, not both")
	}

	if req.CartID != nil {
		cart, err := s.DB.GetCartWithItems(ctx, *req.CartID)
		if err != nil {
			return nil, err
		}
		if len(cart.Items) == 0 {
			return nil, models.ErrBadRequest("cart is empty")
		}
		inputs := make([]models.OrderItemInput, 0, len(cart.Items))
		for _, ci := range cart.Items {
			inputs = append(inputs, models.OrderItemInput{ProductID: ci.ProductID, Quantity: ci.Quantity})
		}
		return inputs, nil
	}

	if len(req.Items) == 0 {
		return nil, models.ErrBadRequest("order has no items")
	}
	return req.Items, nil
}

// priceItems builds the order line items from the current catalog. Unit
// price is the sale price when present, else the regular price - never a
// client-supplied value.
func (s *OrderService) priceItems(ctx context.Context, inputs []models.OrderItemInput) ([]*models.OrderItem, float64, error) {
	ids := make([]int64, 0, len(inputs))
	for _, in := range inputs {
		if in.Quantity <= 0 {
			return nil, 0, models.ErrBadRequest(fmt.Sprintf("invalid quantity for product %d", in.ProductID))
		}
		ids = append(ids, in.ProductID)
	}

	products, err := s.DB.GetProducts(ctx, ids)
	if err != nil {
		return nil, 0, err
	}

	items := make([]*models.OrderItem, 0, len(inputs))
	var subtotal float64
	for _, in := range inputs {
		product, ok := products[in.ProductID]
		if !ok {
			return nil, 0, models.ErrNotFound(fmt.Sprintf("product %d not found", in.ProductID))
		}
		unitPrice := product.EffectivePrice()
		items = append(items, &models.OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    in.Quantity,
			UnitPrice:   unitPrice,
		})
		subtotal += unitPrice * float64(in.Quantity)
	}
	return items, subtotal, nil
}

// resolveCustomer fills the order's denormalized customer fields from either
// the registered user's profile and address, or the guest details.
func (s *OrderService) resolveCustomer(ctx context.Context, userID *int64, req models.PlaceOrderRequest, order *models.Order) error {
	if userID != nil {
		user, err := s.DB.GetUser(ctx, *userID)
		if err != nil {
			return err
		}
		if user.Name == "" || user.Phone == "" {
			return models.ErrNotFound("user profile is missing name or phone")
		}
		if req.AddressID == nil {
			return models.ErrBadRequest("addressId is required")
		}
		address, err := s.DB.GetAddress(ctx, *req.AddressID)
		if err != nil {
			return err
		}
		if address.UserID != *userID {
			return models.ErrNotFound("address not found")
		}

		order.UserID = userID
		order.AddressID = req.AddressID
		order.CustomerName = user.Name
		order.CustomerPhone = user.Phone
		order.CustomerEmail = user.Email
		order.ShippingAddress = address.FullAddress
		return nil
	}

	// Guest checkout.
	if req.GuestDetails == nil {
		return models.ErrBadRequest("guestDetails is required for guest checkout")
	}
	if strings.TrimSpace(req.GuestDetails.Name) == "" {
		return models.ErrBadRequest("guest name is required")
	}
	if strings.TrimSpace(req.GuestDetails.Phone) == "" {
		return models.ErrBadRequest("guest phone is required")
	}
	if strings.TrimSpace(req.FullAddress) == "" {
		return models.ErrBadRequest("fullAddress is required for guest checkout")
	}

	order.CustomerName = req.GuestDetails.Name
	order.CustomerPhone = req.GuestDetails.Phone
	order.CustomerEmail = req.GuestDetails.Email
	order.ShippingAddress = req.FullAddress
	return nil
}

// ---------------- ORDER QUERIES ----------------

func (s *OrderService) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	return s.DB.GetOrderByID(ctx, id)
}

func (s *OrderService) GetOrdersByUser(ctx context.Context, userID int64) ([]*models.Order, error) {
	return s.DB.GetOrdersByUserID(ctx, userID)
}

func (s *OrderService) GetOrderHistory(ctx context.Context, orderID int64) ([]*models.OrderHistory, error) {
	if _, err := s.DB.GetOrderByID(ctx, orderID); err != nil {
		return nil, err
	}
	return s.DB.GetOrderHistory(ctx, orderID)
}

// ---------------- STATUS ----------------

// UpdateStatus applies an admin-driven status transition. Unrecognized
// statuses and transitions outside the table are rejected before any write.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID int64, to models.OrderStatus, comment string) (*models.Order, error) {
	if !models.IsValidOrderStatus(to) {
		return nil, models.ErrBadRequest("unrecognized order status: " + string(to))
	}

	order, err := s.DB.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !CanTransition(order.Status, to) {
		return nil, models.ErrBadRequest(fmt.Sprintf("illegal status transition %s -> %s", order.Status, to))
	}

	if err := s.DB.UpdateOrderStatus(ctx, orderID, to, comment); err != nil {
		return nil, err
	}
	order.Status = to

	s.logger.LogCheckout("STATUS", orderID, fmt.Sprintf("transitioned to %s", to))

	// Book the courier consignment when the order first ships.
	if to == models.OrderShipped && order.TrackingCode == "" && s.Courier != nil {
		consignment, err := s.Courier.CreateConsignment(ctx, order)
		if err != nil {
			s.logger.Error("COURIER", fmt.Sprintf("Failed to book consignment for order %d: %v", orderID, err))
		} else if err := s.DB.SetOrderTracking(ctx, orderID, consignment.ConsignmentID, consignment.TrackingCode); err != nil {
			s.logger.Error("COURIER", fmt.Sprintf("Failed to store tracking for order %d: %v", orderID, err))
		} else {
			order.ConsignmentID = consignment.ConsignmentID
			order.TrackingCode = consignment.TrackingCode
		}
	}

	if s.Events != nil {
		if err := s.Events.PublishOrderStatus(orderID, to); err != nil {
			s.logger.Error("KAFKA", fmt.Sprintf("Failed to publish status event for order %d: %v", orderID, err))
		}
	}

	return order, nil
}
