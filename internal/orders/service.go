package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/deshcart/deshcart-backend/pkg/db/models"
	"github.com/deshcart/deshcart-backend/pkg/enums"
	pkgerrors "github.com/deshcart/deshcart-backend/pkg/errors"
	"github.com/deshcart/deshcart-backend/pkg/logger"
)

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService builds the orders service.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	return s.repo.FindByID(ctx, id)
}

func (s *service) GetByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	if orderNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number required")
	}
	return s.repo.FindByOrderNumber(ctx, orderNumber)
}

func (s *service) ListByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]models.Order, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	return s.repo.ListByCustomer(ctx, customerID, limit, offset)
}

// Transition validates the hop, persists the new status and appends one
// state-change row. The caller holds the row lock on the order.
func (s *service) Transition(ctx context.Context, tx *gorm.DB, order *models.Order, to enums.OrderStatus, actor, reason string) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	if err := ValidateTransition(order.Status, to); err != nil {
		return err
	}
	if actor == "" {
		actor = "system"
	}

	repo := s.repo.WithTx(tx)
	updates := map[string]any{"status": to}
	switch to {
	case enums.OrderStatusPaid:
		updates["paid_at"] = time.Now()
	case enums.OrderStatusCancelled:
		updates["cancelled_at"] = time.Now()
	}
	if err := repo.Update(ctx, order.ID, updates); err != nil {
		return err
	}

	change := &models.OrderStateChange{
		OrderID:   order.ID,
		FromState: order.Status,
		ToState:   to,
		Actor:     actor,
	}
	if reason != "" {
		change.Reason = &reason
	}
	if err := repo.AppendStateChange(ctx, change); err != nil {
		return err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id": order.ID.String(),
			"from":     order.Status,
			"to":       to,
			"actor":    actor,
		})
		s.logg.Info(logCtx, "order state changed")
	}

	order.Status = to
	return nil
}

func (s *service) NextOrderNumber(ctx context.Context, tx *gorm.DB) (string, error) {
	return nextOrderNumber(ctx, tx, time.Now())
}
