package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/deshcart/deshcart-backend/pkg/db/models"
	"github.com/deshcart/deshcart-backend/pkg/enums"
)

// Repository defines persistence operations for stock and reservations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateReservation(ctx context.Context, reservation *models.InventoryReservation) (*models.InventoryReservation, error)
	FindReservationByOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.InventoryReservation, error)
	UpdateReservationStatus(ctx context.Context, id uuid.UUID, status enums.ReservationStatus) error
	FindExpiredActive(ctx context.Context, cutoff time.Time, limit int) ([]models.InventoryReservation, error)
	FindItem(ctx context.Context, sku string) (*models.InventoryItem, error)
	UpsertItem(ctx context.Context, item *models.InventoryItem) error
	AdjustOnHand(ctx context.Context, sku string, delta int) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an inventory repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateReservation(ctx context.Context, reservation *models.InventoryReservation) (*models.InventoryReservation, error) {
	if reservation.ID == uuid.Nil {
		reservation.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(reservation).Error; err != nil {
		return nil, err
	}
	return reservation, nil
}

// FindReservationByOrderForUpdate row-locks the most recent reservation so
// commit, release and the sweeper serialize on it.
func (r *repository) FindReservationByOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.InventoryReservation, error) {
	var reservation models.InventoryReservation
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		First(&reservation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &reservation, nil
}

func (r *repository) UpdateReservationStatus(ctx context.Context, id uuid.UUID, status enums.ReservationStatus) error {
	return r.db.WithContext(ctx).Model(&models.InventoryReservation{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *repository) FindExpiredActive(ctx context.Context, cutoff time.Time, limit int) ([]models.InventoryReservation, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.InventoryReservation
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", enums.ReservationStatusActive, cutoff).
		Order("expires_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) FindItem(ctx context.Context, sku string) (*models.InventoryItem, error) {
	var item models.InventoryItem
	err := r.db.WithContext(ctx).Where("sku = ?", sku).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *repository) UpsertItem(ctx context.Context, item *models.InventoryItem) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "sku"}},
			DoUpdates: clause.AssignmentColumns([]string{"on_hand_qty", "available_qty", "reserved_qty", "updated_at"}),
		}).
		Create(item).Error
}

// AdjustOnHand adds delta units of sellable stock. Used by operator restock.
func (r *repository) AdjustOnHand(ctx context.Context, sku string, delta int) error {
	return r.db.WithContext(ctx).Model(&models.InventoryItem{}).
		Where("sku = ?", sku).
		Updates(map[string]any{
			"on_hand_qty":   gorm.Expr("on_hand_qty + ?", delta),
			"available_qty": gorm.Expr("available_qty + ?", delta),
		}).Error
}
