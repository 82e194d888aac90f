package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spiritmate/myob-stock-sync/internal/application/port"
	"github.com/spiritmate/myob-stock-sync/internal/domain/entity"
)

// ReconciliationService applies parsed invoices to product stock,
// at most once per invoice number.
type ReconciliationService interface {
	// Plan computes every write needed for the invoice without performing any
	Plan(ctx context.Context, invoice *entity.ParsedInvoice, source entity.InvoiceSource) (*entity.ReconciliationPlan, error)
	// Commit performs the writes of a plan in one transaction
	Commit(ctx context.Context, plan *entity.ReconciliationPlan) error
	// ProcessInvoice plans and commits the invoice
	ProcessInvoice(ctx context.Context, invoice *entity.ParsedInvoice, source entity.InvoiceSource) (*entity.ProcessingResult, error)
}

type reconciliationServiceImpl struct {
	productRepo   port.ProductRepository
	movementRepo  port.MovementRepository
	processedRepo port.ProcessedInvoiceRepository
	txManager     port.TransactionManager
	logger        Logger
	now           func() time.Time
	newID         func() string
}

// NewReconciliationService creates a new ReconciliationService
func NewReconciliationService(
	productRepo port.ProductRepository,
	movementRepo port.MovementRepository,
	processedRepo port.ProcessedInvoiceRepository,
	txManager port.TransactionManager,
	logger Logger,
) ReconciliationService {
	return &reconciliationServiceImpl{
		productRepo:   productRepo,
		movementRepo:  movementRepo,
		processedRepo: processedRepo,
		txManager:     txManager,
		logger:        logger,
		now:           time.Now,
		newID:         uuid.NewString,
	}
}

// productAggregate collects every invoice line that resolved to the same product
type productAggregate struct {
	product *entity.Product
	delta   float64
	lines   []entity.SupplierLine
}

// Plan implements ReconciliationService
func (s *reconciliationServiceImpl) Plan(ctx context.Context, invoice *entity.ParsedInvoice, source entity.InvoiceSource) (*entity.ReconciliationPlan, error) {
	plan := &entity.ReconciliationPlan{
		InvoiceNumber: invoice.InvoiceNumber,
		Errors:        []string{},
	}

	processed, err := s.processedRepo.Exists(ctx, invoice.InvoiceNumber)
	if err != nil {
		return nil, fmt.Errorf("check processed invoice: %w", err)
	}
	if processed {
		plan.AlreadyProcessed = true
		return plan, nil
	}

	// Lookups run one at a time in item order so the first product wins
	// consistently when two items resolve to the same product.
	var order []string
	aggregates := make(map[string]*productAggregate)
	for _, item := range invoice.Items {
		product, err := s.productRepo.FindBySupplierItem(ctx, item.ItemID, item.Description)
		if err != nil {
			return nil, fmt.Errorf("find product for item %s: %w", item.ItemID, err)
		}
		if product == nil {
			plan.Errors = append(plan.Errors,
				fmt.Sprintf("Product not found for %s/%s", item.ItemID, item.Description))
			continue
		}

		agg, ok := aggregates[product.ID]
		if !ok {
			agg = &productAggregate{product: product}
			aggregates[product.ID] = agg
			order = append(order, product.ID)
		}
		agg.delta += invoice.SignedQty(item.Qty)
		agg.lines = append(agg.lines, entity.SupplierLine{
			ItemID:      item.ItemID,
			Description: item.Description,
			Qty:         item.Qty,
		})
		plan.ItemsProcessed++
	}

	if len(order) == 0 {
		return plan, nil
	}

	now := s.now()
	marker := &entity.ProcessedInvoice{
		InvoiceNumber:  invoice.InvoiceNumber,
		RunID:          source.RunID,
		SourceRef:      source.SourceRef,
		ArchivePath:    source.ArchivePath,
		ProcessedAt:    now,
		ItemsProcessed: plan.ItemsProcessed,
		IsCreditNote:   invoice.IsCreditNote,
		Success:        true,
	}

	for _, id := range order {
		agg := aggregates[id]
		current := agg.product.OnHand
		newStock := entity.ClampStock(current, agg.delta)

		itemIDs := make([]string, len(agg.lines))
		descriptions := make([]string, len(agg.lines))
		for i, line := range agg.lines {
			itemIDs[i] = line.ItemID
			descriptions[i] = line.Description
		}

		plan.Updates = append(plan.Updates, entity.StockUpdate{
			ProductID:    id,
			ItemID:       strings.Join(itemIDs, ","),
			Description:  strings.Join(descriptions, ", "),
			QtyChange:    agg.delta,
			CurrentStock: current,
			NewStock:     newStock,
		})
		plan.Movements = append(plan.Movements, entity.ProductMovement{
			ID:        s.newID(),
			ProductID: id,
			Type:      entity.MovementTypeMyobSync,
			Qty:       math.Abs(agg.delta),
			Note:      invoice.MovementNote(),
			CreatedAt: now,
		})

		marker.ProductsUpdated = append(marker.ProductsUpdated, id)
		marker.TotalQtyProcessed += math.Abs(agg.delta)
		marker.ProductDetails = append(marker.ProductDetails, entity.ProductDetail{
			ProductID:      id,
			ProductName:    productName(agg.product),
			BrandName:      agg.product.BrandName,
			MyobItems:      agg.lines,
			StockBefore:    current,
			StockAfter:     newStock,
			TotalQtyChange: agg.delta,
		})
	}
	plan.Marker = marker

	return plan, nil
}

// Commit implements ReconciliationService
func (s *reconciliationServiceImpl) Commit(ctx context.Context, plan *entity.ReconciliationPlan) error {
	if !plan.HasWrites() {
		return nil
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		for i, update := range plan.Updates {
			if err := s.productRepo.UpdateStock(txCtx, update.ProductID, update.CurrentStock, update.NewStock, plan.Marker.ProcessedAt); err != nil {
				return fmt.Errorf("update stock of %s: %w", update.ProductID, err)
			}
			if err := s.movementRepo.Create(txCtx, &plan.Movements[i]); err != nil {
				return fmt.Errorf("create movement for %s: %w", update.ProductID, err)
			}
		}

		if err := s.processedRepo.Create(txCtx, plan.Marker); err != nil {
			return fmt.Errorf("create processed marker: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: invoice %s: %w", ErrCommitFailed, plan.InvoiceNumber, err)
	}

	return nil
}

// ProcessInvoice implements ReconciliationService
func (s *reconciliationServiceImpl) ProcessInvoice(ctx context.Context, invoice *entity.ParsedInvoice, source entity.InvoiceSource) (*entity.ProcessingResult, error) {
	result := &entity.ProcessingResult{
		InvoiceNumber: invoice.InvoiceNumber,
		Errors:        []string{},
		StockUpdates:  []entity.StockUpdate{},
	}

	plan, err := s.Plan(ctx, invoice, source)
	if err != nil {
		s.logger.Error("Failed to plan invoice", "invoice_number", invoice.InvoiceNumber, "error", err)
		return result, err
	}

	if plan.AlreadyProcessed {
		s.logger.Info("Invoice already processed", "invoice_number", invoice.InvoiceNumber)
		result.Success = true
		result.AlreadyProcessed = true
		return result, nil
	}

	result.ItemsProcessed = plan.ItemsProcessed
	result.Errors = plan.Errors

	if err := s.Commit(ctx, plan); err != nil {
		if errors.Is(err, port.ErrAlreadyProcessed) {
			// Another run committed the same invoice after our plan was built.
			s.logger.Warn("Invoice committed concurrently", "invoice_number", invoice.InvoiceNumber)
			result.Success = true
			result.AlreadyProcessed = true
			result.Errors = []string{}
			return result, nil
		}
		s.logger.Error("Failed to commit invoice", "invoice_number", invoice.InvoiceNumber, "error", err)
		return result, err
	}

	result.Success = true
	result.ProductsUpdated = len(plan.Updates)
	if plan.Updates != nil {
		result.StockUpdates = plan.Updates
	}

	s.logger.Info("Invoice processed",
		"invoice_number", invoice.InvoiceNumber,
		"credit_note", invoice.IsCreditNote,
		"items_processed", result.ItemsProcessed,
		"products_updated", result.ProductsUpdated,
		"unmatched", len(result.Errors))

	return result, nil
}

func productName(p *entity.Product) string {
	if p.ProductName == "" {
		return "Unknown"
	}
	return p.ProductName
}
