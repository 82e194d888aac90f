package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/spiritmate/myob-stock-sync/internal/application/port"
	"github.com/spiritmate/myob-stock-sync/internal/domain/entity"
)

// ImportOptions controls a catalogue import
type ImportOptions struct {
	// KeepStock leaves on_hand of existing products untouched
	KeepStock bool
	DryRun    bool
}

// ImportSummary reports what a catalogue import changed
type ImportSummary struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Skipped []string `json:"skipped"`
}

// CatalogService maintains products and their supplier item mappings
type CatalogService interface {
	ImportProducts(ctx context.Context, products []*entity.Product, opts ImportOptions) (*ImportSummary, error)
	ListProducts(ctx context.Context) ([]*entity.Product, error)
}

type catalogServiceImpl struct {
	productRepo port.ProductRepository
	txManager   port.TransactionManager
	logger      Logger
}

// NewCatalogService creates a new CatalogService
func NewCatalogService(productRepo port.ProductRepository, txManager port.TransactionManager, logger Logger) CatalogService {
	return &catalogServiceImpl{
		productRepo: productRepo,
		txManager:   txManager,
		logger:      logger,
	}
}

// ImportProducts upserts every product in a single transaction.
// Products without an id or name are skipped.
func (s *catalogServiceImpl) ImportProducts(ctx context.Context, products []*entity.Product, opts ImportOptions) (*ImportSummary, error) {
	summary := &ImportSummary{Skipped: []string{}}
	seen := make(map[string]bool, len(products))

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		for _, p := range products {
			id := strings.TrimSpace(p.ID)
			if id == "" || strings.TrimSpace(p.ProductName) == "" || seen[id] {
				summary.Skipped = append(summary.Skipped, p.ID)
				continue
			}
			seen[id] = true

			existing, err := s.productRepo.GetByID(txCtx, id)
			if err != nil {
				return fmt.Errorf("load product %s: %w", id, err)
			}

			product := *p
			product.ID = id
			if existing != nil {
				summary.Updated++
				product.CreatedAt = existing.CreatedAt
				product.LastMovementAt = existing.LastMovementAt
				if opts.KeepStock {
					product.OnHand = existing.OnHand
				}
			} else {
				summary.Created++
			}

			if opts.DryRun {
				continue
			}
			if err := s.productRepo.Upsert(txCtx, &product); err != nil {
				return fmt.Errorf("save product %s: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Catalogue import failed", "error", err)
		return nil, err
	}

	s.logger.Info("Catalogue imported",
		"created", summary.Created,
		"updated", summary.Updated,
		"skipped", len(summary.Skipped),
		"dry_run", opts.DryRun)

	return summary, nil
}

func (s *catalogServiceImpl) ListProducts(ctx context.Context) ([]*entity.Product, error) {
	return s.productRepo.List(ctx)
}
