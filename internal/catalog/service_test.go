package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/deshcart/deshcart-backend/pkg/db/models"
	pkgerrors "github.com/deshcart/deshcart-backend/pkg/errors"
)

const productsDDL = `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  sku TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  description TEXT,
  price_cents INTEGER NOT NULL,
  currency TEXT NOT NULL DEFAULT 'BDT',
  active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	dsn := "file:catalog_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Exec(productsDDL).Error; err != nil {
		t.Fatalf("create products table: %v", err)
	}
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc, db
}

func TestQuotePricesFromCatalog(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()

	for _, product := range []models.Product{
		{ID: uuid.New(), SKU: "SKU-A", Name: "Rice Cooker", PriceCents: 450000, Active: true},
		{ID: uuid.New(), SKU: "SKU-B", Name: "Kettle", PriceCents: 120000, Active: true},
	} {
		if err := db.Create(&product).Error; err != nil {
			t.Fatalf("seed product: %v", err)
		}
	}

	priced, err := svc.Quote(ctx, nil, []QuoteLine{
		{SKU: "SKU-A", Qty: 2},
		{SKU: "SKU-B", Qty: 1},
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if len(priced) != 2 {
		t.Fatalf("expected 2 priced lines, got %d", len(priced))
	}
	if priced[0].TotalCents != 900000 {
		t.Fatalf("unexpected total for SKU-A: %d", priced[0].TotalCents)
	}
	if priced[1].Name != "Kettle" {
		t.Fatalf("unexpected name %q", priced[1].Name)
	}
}

func TestQuoteRejectsUnknownAndInactive(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()

	if err := db.Create(&models.Product{ID: uuid.New(), SKU: "SKU-OLD", Name: "Retired", PriceCents: 100, Active: false}).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	var stored models.Product
	if err := db.First(&stored, "sku = ?", "SKU-OLD").Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	if stored.Active {
		t.Fatal("retired product must persist inactive")
	}

	_, err := svc.Quote(ctx, nil, []QuoteLine{
		{SKU: "SKU-OLD", Qty: 1},
		{SKU: "SKU-MISSING", Qty: 1},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok || len(details) != 2 {
		t.Fatalf("expected both skus reported, got %+v", typed.Details())
	}
}

func TestQuoteRejectsBadLines(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	cases := [][]QuoteLine{
		nil,
		{{SKU: "", Qty: 1}},
		{{SKU: "SKU-A", Qty: 0}},
		{{SKU: "SKU-A", Qty: 1}, {SKU: "SKU-A", Qty: 2}},
	}
	for i, lines := range cases {
		_, err := svc.Quote(ctx, nil, lines)
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Errorf("case %d: expected validation error, got %v", i, err)
		}
	}
}
