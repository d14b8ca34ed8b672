package catalog

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/deshcart/deshcart-backend/pkg/db/models"
	pkgerrors "github.com/deshcart/deshcart-backend/pkg/errors"
)

// QuoteLine is one requested (SKU, qty) pair at checkout.
type QuoteLine struct {
	SKU string
	Qty int
}

// PricedLine is a quote line priced from the catalog at quote time.
type PricedLine struct {
	SKU            string
	Name           string
	Qty            int
	UnitPriceCents int64
	TotalCents     int64
}

// Service prices checkout lines against the live catalog. Prices are always
// read server-side so a stale client total can never flow into an order.
type Service interface {
	Quote(ctx context.Context, tx *gorm.DB, lines []QuoteLine) ([]PricedLine, error)
}

type service struct {
	repo Repository
}

// NewService builds the catalog service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Quote(ctx context.Context, tx *gorm.DB, lines []QuoteLine) ([]PricedLine, error) {
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one line required")
	}

	repo := s.repo
	if tx != nil {
		repo = repo.WithTx(tx)
	}

	skus := make([]string, 0, len(lines))
	seen := map[string]bool{}
	for _, line := range lines {
		if line.SKU == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku required")
		}
		if line.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("qty for %s must be positive", line.SKU))
		}
		if seen[line.SKU] {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("duplicate sku %s", line.SKU))
		}
		seen[line.SKU] = true
		skus = append(skus, line.SKU)
	}

	products, err := repo.FindBySKUs(ctx, skus)
	if err != nil {
		return nil, err
	}
	bySKU := make(map[string]models.Product, len(products))
	for _, product := range products {
		bySKU[product.SKU] = product
	}

	priced := make([]PricedLine, len(lines))
	missing := map[string]string{}
	for i, line := range lines {
		product, ok := bySKU[line.SKU]
		if !ok {
			missing[line.SKU] = "unknown sku"
			continue
		}
		if !product.Active {
			missing[line.SKU] = "no longer sold"
			continue
		}
		priced[i] = PricedLine{
			SKU:            product.SKU,
			Name:           product.Name,
			Qty:            line.Qty,
			UnitPriceCents: product.PriceCents,
			TotalCents:     product.PriceCents * int64(line.Qty),
		}
	}
	if len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "some items cannot be ordered").WithDetails(missing)
	}
	return priced, nil
}
