package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/deshcart/deshcart-backend/pkg/db/models"
	"github.com/deshcart/deshcart-backend/pkg/enums"
	pkgerrors "github.com/deshcart/deshcart-backend/pkg/errors"
)

// PaymentsRepository persists payment attempts and refund records.
type PaymentsRepository interface {
	WithTx(tx *gorm.DB) PaymentsRepository
	CreateAttempt(ctx context.Context, attempt *models.PaymentAttempt) (*models.PaymentAttempt, error)
	FindAttemptByID(ctx context.Context, id uuid.UUID) (*models.PaymentAttempt, error)
	FindAttemptByRefForUpdate(ctx context.Context, gatewayRef string) (*models.PaymentAttempt, error)
	FindConfirmedAttemptByOrder(ctx context.Context, orderID uuid.UUID) (*models.PaymentAttempt, error)
	FindOpenAttemptsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentAttempt, error)
	UpdateAttempt(ctx context.Context, id uuid.UUID, updates map[string]any) error
	FindStaleAttempts(ctx context.Context, cutoff time.Time, limit int) ([]models.PaymentAttempt, error)
	CreateRefund(ctx context.Context, refund *models.Refund) (*models.Refund, error)
	FindRefundByID(ctx context.Context, id uuid.UUID) (*models.Refund, error)
	ListRefundsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Refund, error)
	SumRefundedCents(ctx context.Context, attemptID uuid.UUID) (int64, error)
	UpdateRefund(ctx context.Context, id uuid.UUID, updates map[string]any) error
}

type paymentsRepository struct {
	db *gorm.DB
}

// NewPaymentsRepository builds the payments repository.
func NewPaymentsRepository(db *gorm.DB) PaymentsRepository {
	return &paymentsRepository{db: db}
}

func (r *paymentsRepository) WithTx(tx *gorm.DB) PaymentsRepository {
	if tx == nil {
		return r
	}
	return &paymentsRepository{db: tx}
}

func (r *paymentsRepository) CreateAttempt(ctx context.Context, attempt *models.PaymentAttempt) (*models.PaymentAttempt, error) {
	if attempt.ID == uuid.Nil {
		attempt.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(attempt).Error; err != nil {
		return nil, err
	}
	return attempt, nil
}

func (r *paymentsRepository) FindAttemptByID(ctx context.Context, id uuid.UUID) (*models.PaymentAttempt, error) {
	var attempt models.PaymentAttempt
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&attempt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment attempt not found")
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *paymentsRepository) FindAttemptByRefForUpdate(ctx context.Context, gatewayRef string) (*models.PaymentAttempt, error) {
	var attempt models.PaymentAttempt
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("gateway_ref = ?", gatewayRef).
		First(&attempt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment attempt not found")
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *paymentsRepository) FindConfirmedAttemptByOrder(ctx context.Context, orderID uuid.UUID) (*models.PaymentAttempt, error) {
	var attempt models.PaymentAttempt
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, enums.AttemptStatusConfirmed).
		Order("created_at DESC").
		First(&attempt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no confirmed payment attempt for order")
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *paymentsRepository) FindOpenAttemptsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentAttempt, error) {
	var attempts []models.PaymentAttempt
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status IN ?", orderID, []enums.AttemptStatus{
			enums.AttemptStatusInitiated,
			enums.AttemptStatusAwaitingCallback,
		}).
		Find(&attempts).Error
	return attempts, err
}

func (r *paymentsRepository) UpdateAttempt(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.PaymentAttempt{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *paymentsRepository) FindStaleAttempts(ctx context.Context, cutoff time.Time, limit int) ([]models.PaymentAttempt, error) {
	if limit <= 0 {
		limit = 100
	}
	var attempts []models.PaymentAttempt
	err := r.db.WithContext(ctx).
		Where("status IN ? AND created_at < ?", []enums.AttemptStatus{
			enums.AttemptStatusInitiated,
			enums.AttemptStatusAwaitingCallback,
		}, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&attempts).Error
	return attempts, err
}

func (r *paymentsRepository) CreateRefund(ctx context.Context, refund *models.Refund) (*models.Refund, error) {
	if refund.ID == uuid.Nil {
		refund.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(refund).Error; err != nil {
		return nil, err
	}
	return refund, nil
}

func (r *paymentsRepository) FindRefundByID(ctx context.Context, id uuid.UUID) (*models.Refund, error) {
	var refund models.Refund
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&refund).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "refund not found")
	}
	if err != nil {
		return nil, err
	}
	return &refund, nil
}

func (r *paymentsRepository) ListRefundsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Refund, error) {
	var refunds []models.Refund
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&refunds).Error
	return refunds, err
}

func (r *paymentsRepository) SumRefundedCents(ctx context.Context, attemptID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.Refund{}).
		Where("attempt_id = ? AND status <> ?", attemptID, enums.RefundStatusFailed).
		Select("COALESCE(SUM(amount_cents), 0)").
		Scan(&total).Error
	return total, err
}

func (r *paymentsRepository) UpdateRefund(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Refund{}).
		Where("id = ?", id).
		Updates(updates).Error
}
