package service

import (
	"context"
	"fmt"
	"time"

	"catalog-api/internal/domain"
	"catalog-api/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderItemInput is one requested order line.
type OrderItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

// OrderService defines the interface for order business logic
type OrderService interface {
	Create(ctx context.Context, userID uuid.UUID, items []OrderItemInput) (*domain.Order, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
}

type orderService struct {
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	logger      *zap.Logger
}

// NewOrderService creates a new instance of OrderService
func NewOrderService(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	logger *zap.Logger,
) OrderService {
	return &orderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		logger:      logger,
	}
}

// Create places a pending order. Every referenced product must exist and be
// active; the unit price is captured from the catalog at order time so later
// price changes never rewrite history.
func (s *orderService) Create(ctx context.Context, userID uuid.UUID, items []OrderItemInput) (*domain.Order, error) {
	if len(items) == 0 {
		return nil, &domain.ValidationError{
			Code:    domain.CodeEmptyOrder,
			Message: "order must contain at least one item",
		}
	}

	now := time.Now()
	order := &domain.Order{
		ID:         uuid.New(),
		UserID:     userID,
		Status:     domain.OrderStatusPending,
		Timestamps: domain.Timestamps{CreatedAt: now},
	}

	for _, item := range items {
		product, err := s.productRepo.FindByID(ctx, item.ProductID)
		if err != nil {
			if err == repository.ErrProductNotFound {
				return nil, &domain.NotFoundError{Resource: "product", ID: item.ProductID.String()}
			}
			return nil, fmt.Errorf("failed to load product: %w", err)
		}

		if !product.IsActive {
			return nil, &domain.ValidationError{
				Code:    domain.CodeInactiveProduct,
				Message: fmt.Sprintf("product %s is not active", product.SKU),
				Details: map[string]interface{}{"product_id": product.ID.String()},
			}
		}

		order.Items = append(order.Items, &domain.OrderItem{
			ID:         uuid.New(),
			OrderID:    order.ID,
			ProductID:  product.ID,
			Quantity:   item.Quantity,
			UnitPrice:  product.Price,
			Timestamps: domain.Timestamps{CreatedAt: now},
		})
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		if err == repository.ErrProductNotFound {
			return nil, &domain.NotFoundError{Resource: "product", ID: ""}
		}
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.logger.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", userID.String()),
		zap.Int("items", len(order.Items)),
	)

	return order, nil
}

// GetByID retrieves an order with its items
func (s *orderService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		if err == repository.ErrOrderNotFound {
			return nil, &domain.NotFoundError{Resource: "order", ID: id.String()}
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}
