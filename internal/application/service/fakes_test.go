package service

import (
	"context"
	"sort"
	"time"

	"github.com/spiritmate/myob-stock-sync/internal/application/port"
	"github.com/spiritmate/myob-stock-sync/internal/domain/entity"
)

// memStore is an in-memory stand-in for the product database
type memStore struct {
	products  map[string]*entity.Product
	order     []string
	movements []*entity.ProductMovement
	processed map[string]*entity.ProcessedInvoice
	lookups   int

	findErr     error
	movementErr error
	onBegin     func()
}

func newMemStore(products ...*entity.Product) *memStore {
	s := &memStore{
		products:  make(map[string]*entity.Product),
		processed: make(map[string]*entity.ProcessedInvoice),
	}
	for _, p := range products {
		s.products[p.ID] = p
		s.order = append(s.order, p.ID)
	}
	return s
}

func (s *memStore) onHand(id string) float64 {
	return s.products[id].OnHand
}

type memProductRepo struct{ s *memStore }

func (r *memProductRepo) FindBySupplierItem(ctx context.Context, itemID, description string) (*entity.Product, error) {
	r.s.lookups++
	if r.s.findErr != nil {
		return nil, r.s.findErr
	}
	for _, id := range r.s.order {
		p := r.s.products[id]
		if p.MatchesSupplierItem(itemID, description) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memProductRepo) GetByID(ctx context.Context, id string) (*entity.Product, error) {
	p, ok := r.s.products[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *memProductRepo) List(ctx context.Context) ([]*entity.Product, error) {
	var out []*entity.Product
	for _, id := range r.s.order {
		out = append(out, r.s.products[id])
	}
	return out, nil
}

func (r *memProductRepo) Upsert(ctx context.Context, product *entity.Product) error {
	if _, ok := r.s.products[product.ID]; !ok {
		r.s.order = append(r.s.order, product.ID)
	}
	r.s.products[product.ID] = product
	return nil
}

func (r *memProductRepo) UpdateStock(ctx context.Context, id string, expectedOnHand, newOnHand float64, movedAt time.Time) error {
	p, ok := r.s.products[id]
	if !ok {
		return entity.ErrProductNotFound
	}
	if p.OnHand != expectedOnHand {
		return entity.ErrStockConflict
	}
	p.OnHand = newOnHand
	p.LastMovementAt = &movedAt
	return nil
}

type memMovementRepo struct{ s *memStore }

func (r *memMovementRepo) Create(ctx context.Context, m *entity.ProductMovement) error {
	if r.s.movementErr != nil {
		return r.s.movementErr
	}
	r.s.movements = append(r.s.movements, m)
	return nil
}

func (r *memMovementRepo) ListByProduct(ctx context.Context, productID string, limit int) ([]*entity.ProductMovement, error) {
	var out []*entity.ProductMovement
	for _, m := range r.s.movements {
		if m.ProductID == productID {
			out = append(out, m)
		}
	}
	return out, nil
}

type memProcessedRepo struct{ s *memStore }

func (r *memProcessedRepo) Exists(ctx context.Context, invoiceNumber string) (bool, error) {
	_, ok := r.s.processed[invoiceNumber]
	return ok, nil
}

func (r *memProcessedRepo) Create(ctx context.Context, record *entity.ProcessedInvoice) error {
	if _, ok := r.s.processed[record.InvoiceNumber]; ok {
		return port.ErrAlreadyProcessed
	}
	r.s.processed[record.InvoiceNumber] = record
	return nil
}

func (r *memProcessedRepo) GetByInvoiceNumber(ctx context.Context, invoiceNumber string) (*entity.ProcessedInvoice, error) {
	return r.s.processed[invoiceNumber], nil
}

func (r *memProcessedRepo) ListByRunID(ctx context.Context, runID string) ([]*entity.ProcessedInvoice, error) {
	var out []*entity.ProcessedInvoice
	for _, rec := range r.s.processed {
		if rec.RunID == runID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InvoiceNumber < out[j].InvoiceNumber })
	return out, nil
}

// memTxManager restores the store when the transaction function fails
type memTxManager struct{ s *memStore }

func (m *memTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.s.onBegin != nil {
		m.s.onBegin()
	}
	stock := make(map[string]float64, len(m.s.products))
	for id, p := range m.s.products {
		stock[id] = p.OnHand
	}
	movements := len(m.s.movements)
	processed := make(map[string]*entity.ProcessedInvoice, len(m.s.processed))
	for k, v := range m.s.processed {
		processed[k] = v
	}

	if err := fn(ctx); err != nil {
		for id, onHand := range stock {
			m.s.products[id].OnHand = onHand
		}
		m.s.movements = m.s.movements[:movements]
		m.s.processed = processed
		return err
	}
	return nil
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

func newTestReconciler(s *memStore) ReconciliationService {
	return NewReconciliationService(
		&memProductRepo{s: s},
		&memMovementRepo{s: s},
		&memProcessedRepo{s: s},
		&memTxManager{s: s},
		&mockLogger{},
	)
}

type mockMailbox struct {
	messages []*entity.InvoiceMessage
	fetchErr error
	markErr  error
	marked   []uint32
	closed   bool
}

func (m *mockMailbox) FetchInvoiceMessages(ctx context.Context) ([]*entity.InvoiceMessage, error) {
	return m.messages, m.fetchErr
}

func (m *mockMailbox) MarkProcessed(ctx context.Context, uid uint32) error {
	if m.markErr != nil {
		return m.markErr
	}
	m.marked = append(m.marked, uid)
	return nil
}

func (m *mockMailbox) Close() error {
	m.closed = true
	return nil
}

type mockMailboxOpener struct {
	mailbox *mockMailbox
	openErr error
}

func (m *mockMailboxOpener) Open(ctx context.Context) (port.InvoiceMailbox, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	return m.mailbox, nil
}

// mockExtractor treats the attachment bytes as the document text
type mockExtractor struct {
	err error
}

func (m *mockExtractor) ExtractText(ctx context.Context, content []byte) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return string(content), nil
}

type mockLocker struct {
	held    bool
	err     error
	unlocks int
}

func (m *mockLocker) Acquire(ctx context.Context, key string) (port.Unlock, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.held {
		return nil, port.ErrLockNotObtained
	}
	m.held = true
	return func(ctx context.Context) error {
		m.held = false
		m.unlocks++
		return nil
	}, nil
}

type mockRunRepo struct {
	runs    map[string]*entity.SyncRun
	updates int
}

func newMockRunRepo() *mockRunRepo {
	return &mockRunRepo{runs: make(map[string]*entity.SyncRun)}
}

func (m *mockRunRepo) Create(ctx context.Context, run *entity.SyncRun) error {
	cp := *run
	m.runs[run.ID] = &cp
	return nil
}

func (m *mockRunRepo) Update(ctx context.Context, run *entity.SyncRun) error {
	cp := *run
	m.runs[run.ID] = &cp
	m.updates++
	return nil
}

func (m *mockRunRepo) GetByID(ctx context.Context, id string) (*entity.SyncRun, error) {
	return m.runs[id], nil
}

func (m *mockRunRepo) List(ctx context.Context, limit int) ([]*entity.SyncRun, error) {
	var out []*entity.SyncRun
	for _, r := range m.runs {
		out = append(out, r)
	}
	return out, nil
}

func (m *mockRunRepo) GetLatest(ctx context.Context) (*entity.SyncRun, error) {
	return nil, nil
}

type mockUnmatchedRepo struct {
	attempts map[string]int
}

func (m *mockUnmatchedRepo) RecordAttempt(ctx context.Context, invoiceNumber string, at time.Time) (int, error) {
	if m.attempts == nil {
		m.attempts = make(map[string]int)
	}
	m.attempts[invoiceNumber]++
	return m.attempts[invoiceNumber], nil
}

func (m *mockUnmatchedRepo) Clear(ctx context.Context, invoiceNumber string) error {
	delete(m.attempts, invoiceNumber)
	return nil
}

type mockNotifier struct {
	runs []*entity.SyncRun
}

func (m *mockNotifier) NotifyRunCompleted(ctx context.Context, run *entity.SyncRun) error {
	m.runs = append(m.runs, run)
	return nil
}

type mockArchive struct {
	stored map[string][]byte
}

func (m *mockArchive) Store(ctx context.Context, invoiceNumber, filename string, content []byte) (string, error) {
	if m.stored == nil {
		m.stored = make(map[string][]byte)
	}
	path := invoiceNumber + "/" + filename
	m.stored[path] = content
	return path, nil
}

func (m *mockArchive) Read(ctx context.Context, path string) ([]byte, error) {
	return m.stored[path], nil
}

type mockExporter struct {
	invoices []*entity.ProcessedInvoice
}

func (m *mockExporter) ExportRun(run *entity.SyncRun, invoices []*entity.ProcessedInvoice) ([]byte, error) {
	m.invoices = invoices
	return []byte("xlsx:" + run.ID), nil
}
