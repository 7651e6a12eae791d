package service

import (
	"context"
	"fmt"

	"alltrade/internal/middleware"
	"alltrade/internal/models"
	"alltrade/internal/payments"
	"alltrade/internal/repository"
)

// OrderService implements the order lifecycle: checkout creates a pending
// order, confirm settles it from the buyer's wallet into the seller's.
type OrderService struct {
	orderRepo     repository.OrderRepository
	productRepo   repository.ProductRepository
	walletRepo    repository.WalletRepository
	userRepo      repository.UserRepository
	chat          *ChatService
	notifications *NotificationService
	deliveryFee   int64
}

// CheckoutInput describes a purchase to initiate.
type CheckoutInput struct {
	BuyerID      uint
	ProductID    uint
	IsAnonymous  bool
	WithDelivery bool
}

// NewOrderService returns a new OrderService. chat and notifications may be nil.
func NewOrderService(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	walletRepo repository.WalletRepository,
	userRepo repository.UserRepository,
	chat *ChatService,
	notifications *NotificationService,
	deliveryFee int64,
) *OrderService {
	return &OrderService{
		orderRepo:     orderRepo,
		productRepo:   productRepo,
		walletRepo:    walletRepo,
		userRepo:      userRepo,
		chat:          chat,
		notifications: notifications,
		deliveryFee:   deliveryFee,
	}
}

// Checkout creates a pending order for the product. The buyer's wallet must
// cover the total; nothing is debited until Confirm.
func (s *OrderService) Checkout(ctx context.Context, in CheckoutInput) (*models.Order, error) {
	product, err := s.productRepo.GetByID(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.IsVisible {
		return nil, models.NewNotFoundError("Product", in.ProductID)
	}
	if product.SellerID == in.BuyerID {
		return nil, models.NewValidationError("You cannot buy your own listing")
	}

	var fee int64
	if in.WithDelivery {
		fee = s.deliveryFee
	}
	total := product.Price + fee

	balance, err := s.walletRepo.GetBalance(ctx, in.BuyerID)
	if err != nil {
		return nil, err
	}
	if balance < total {
		return nil, models.NewValidationError("Insufficient wallet balance for this order")
	}

	order := &models.Order{
		BuyerID:          in.BuyerID,
		ProductID:        in.ProductID,
		Amount:           total,
		DeliveryFee:      fee,
		Status:           models.OrderStatusPending,
		IsAnonymous:      in.IsAnonymous,
		PaymentReference: payments.NewReference(),
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, err
	}
	order.Product = product
	return order, nil
}

// Confirm settles a pending order: the buyer's wallet is debited and the
// seller's credited in one transaction, then the order completes. A
// conversation between buyer and seller is linked so they can arrange
// delivery, and both sides are notified.
func (s *OrderService) Confirm(ctx context.Context, orderID, buyerID uint) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != buyerID {
		return nil, models.NewForbiddenError("This order belongs to another user")
	}
	if order.Status != models.OrderStatusPending {
		return nil, models.NewValidationError("Order is not pending")
	}

	product, err := s.productRepo.GetByID(ctx, order.ProductID)
	if err != nil {
		return nil, err
	}

	if err := s.walletRepo.Transfer(ctx, buyerID, product.SellerID, order.Amount, order.PaymentReference); err != nil {
		return nil, err
	}

	if err := s.orderRepo.UpdateStatus(ctx, order.ID, models.OrderStatusCompleted); err != nil {
		// Money already moved; surface the error but do not retry the transfer.
		middleware.Logger.Error("order: status update failed after settlement",
			"order_id", order.ID, "error", err)
		return nil, err
	}
	order.Status = models.OrderStatusCompleted

	if seller, err := s.userRepo.GetByID(ctx, product.SellerID); err == nil {
		seller.TotalSales++
		if err := s.userRepo.Update(ctx, seller); err != nil {
			middleware.Logger.Warn("order: seller sales counter update failed",
				"seller_id", seller.ID, "error", err)
		}
	}

	if s.chat != nil && !order.IsAnonymous {
		if conv, err := s.chat.StartConversation(ctx, buyerID, product.SellerID); err == nil {
			order.ConversationID = &conv.ID
			if err := s.orderRepo.Update(ctx, order); err != nil {
				middleware.Logger.Warn("order: conversation link failed",
					"order_id", order.ID, "error", err)
			}
		}
	}

	s.notifyOrderSettled(ctx, order, product)
	return order, nil
}

// Cancel abandons a pending order. Completed orders cannot be canceled.
func (s *OrderService) Cancel(ctx context.Context, orderID, buyerID uint) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != buyerID {
		return nil, models.NewForbiddenError("This order belongs to another user")
	}
	if order.Status != models.OrderStatusPending {
		return nil, models.NewValidationError("Only pending orders can be canceled")
	}
	if err := s.orderRepo.UpdateStatus(ctx, order.ID, models.OrderStatusCanceled); err != nil {
		return nil, err
	}
	order.Status = models.OrderStatusCanceled
	return order, nil
}

// GetForUser returns an order visible to the caller (buyer or seller).
func (s *OrderService) GetForUser(ctx context.Context, orderID, userID uint) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != userID && (order.Product == nil || order.Product.SellerID != userID) {
		return nil, models.NewForbiddenError("You are not a party to this order")
	}
	return order, nil
}

// Purchases returns the user's orders as a buyer.
func (s *OrderService) Purchases(ctx context.Context, userID uint, limit, offset int) ([]*models.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.orderRepo.ListByBuyer(ctx, userID, limit, offset)
}

// Sales returns the user's orders as a seller.
func (s *OrderService) Sales(ctx context.Context, userID uint, limit, offset int) ([]*models.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.orderRepo.ListBySeller(ctx, userID, limit, offset)
}

func (s *OrderService) notifyOrderSettled(ctx context.Context, order *models.Order, product *models.Product) {
	if s.notifications == nil {
		return
	}

	buyerName := "A buyer"
	if !order.IsAnonymous {
		if buyer, err := s.userRepo.GetByID(ctx, order.BuyerID); err == nil {
			buyerName = buyer.Username
		}
	}

	if _, err := s.notifications.Notify(ctx, NotifyInput{
		UserID: product.SellerID,
		Title:  "You made a sale",
		Body:   fmt.Sprintf("%s bought %s", buyerName, product.Title),
		Type:   models.NotificationTypeOrder,
		Meta:   map[string]any{"order_id": order.ID, "product_id": product.ID},
	}); err != nil {
		middleware.Logger.Warn("order: seller notification failed",
			"seller_id", product.SellerID, "error", err)
	}

	if _, err := s.notifications.Notify(ctx, NotifyInput{
		UserID: order.BuyerID,
		Title:  "Order confirmed",
		Body:   fmt.Sprintf("Your order for %s is confirmed", product.Title),
		Type:   models.NotificationTypeOrder,
		Meta:   map[string]any{"order_id": order.ID, "product_id": product.ID},
	}); err != nil {
		middleware.Logger.Warn("order: buyer notification failed",
			"buyer_id", order.BuyerID, "error", err)
	}
}
