package service

import (
	"context"
	"errors"
	"testing"

	"github.com/spiritmate/myob-stock-sync/internal/domain/entity"
	"github.com/spiritmate/myob-stock-sync/internal/invoice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const invoiceINV001240 = `Tax Invoice
Invoice number INV001240
Item ID Description UoM Qty Unit price
001Aviator Dry Gin 500ml364.90FRE194.70
Subtotal $194.70
`

const invoiceUnknownProduct = `Tax Invoice
Invoice number INV001300
Item ID Description UoM Qty Unit price
777Mystery Rum 700ml250.00FRE100.00
Subtotal $100.00
`

type syncFixture struct {
	store     *memStore
	mailbox   *mockMailbox
	opener    *mockMailboxOpener
	locker    *mockLocker
	runs      *mockRunRepo
	unmatched *mockUnmatchedRepo
	notifier  *mockNotifier
	archive   *mockArchive
	svc       SyncService
}

func newSyncFixture(maxUnmatched int, messages ...*entity.InvoiceMessage) *syncFixture {
	f := &syncFixture{
		store:     newMemStore(aviatorGin()),
		mailbox:   &mockMailbox{messages: messages},
		locker:    &mockLocker{},
		runs:      newMockRunRepo(),
		unmatched: &mockUnmatchedRepo{},
		notifier:  &mockNotifier{},
		archive:   &mockArchive{},
	}
	f.opener = &mockMailboxOpener{mailbox: f.mailbox}
	f.svc = NewSyncService(SyncDependencies{
		Mailbox:       f.opener,
		Extractor:     &mockExtractor{},
		Parser:        invoice.NewParser(),
		Reconciler:    newTestReconciler(f.store),
		RunRepo:       f.runs,
		UnmatchedRepo: f.unmatched,
		Locker:        f.locker,
		Notifier:      f.notifier,
		Archive:       f.archive,
	}, SyncConfig{MaxUnmatchedAttempts: maxUnmatched}, &mockLogger{})
	return f
}

func message(uid uint32, texts ...string) *entity.InvoiceMessage {
	msg := &entity.InvoiceMessage{UID: uid, From: "accounts@supplier.example", Subject: "Invoice"}
	for i, text := range texts {
		msg.Attachments = append(msg.Attachments, entity.Attachment{
			Filename:    "invoice" + string(rune('a'+i)) + ".pdf",
			ContentType: "application/pdf",
			Content:     []byte(text),
		})
	}
	return msg
}

func TestSyncService_RunSync(t *testing.T) {
	f := newSyncFixture(0, message(7, invoiceINV001240))

	run, err := f.svc.RunSync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, entity.SyncRunStatusCompleted, run.Status)
	assert.NotNil(t, run.CompletedAt)
	assert.Equal(t, 1, run.EmailsScanned)
	assert.Equal(t, 1, run.InvoicesProcessed)
	assert.Equal(t, 1, run.ProductsUpdated)
	assert.Empty(t, run.Failures)

	assert.Equal(t, []uint32{7}, f.mailbox.marked)
	assert.True(t, f.mailbox.closed)
	assert.Equal(t, 7.0, f.store.onHand("prod-aviator"))
	assert.Equal(t, "7", f.store.processed["INV001240"].SourceRef)
	assert.Equal(t, run.ID, f.store.processed["INV001240"].RunID)
	assert.Equal(t, "INV001240/invoicea.pdf", f.store.processed["INV001240"].ArchivePath)

	assert.Equal(t, entity.SyncRunStatusCompleted, f.runs.runs[run.ID].Status)
	assert.Len(t, f.notifier.runs, 1)
	assert.Equal(t, 1, f.locker.unlocks)
	assert.False(t, f.svc.IsRunning())
}

func TestSyncService_AlreadyProcessedMessageIsMarked(t *testing.T) {
	f := newSyncFixture(0, message(7, invoiceINV001240))
	_, err := f.svc.RunSync(context.Background())
	require.NoError(t, err)

	f.mailbox.marked = nil
	run, err := f.svc.RunSync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, run.InvoicesProcessed)
	assert.Equal(t, 0, run.ProductsUpdated)
	assert.Equal(t, []uint32{7}, f.mailbox.marked)
	assert.Equal(t, 7.0, f.store.onHand("prod-aviator"))
}

func TestSyncService_UnparseableAttachment(t *testing.T) {
	f := newSyncFixture(0, message(8, "Terms and conditions"))

	run, err := f.svc.RunSync(context.Background())
	require.NoError(t, err)

	require.Len(t, run.Failures, 1)
	assert.Equal(t, entity.FailureTypePDF, run.Failures[0].Type)
	assert.Equal(t, "8", run.Failures[0].Details["uid"])
	assert.Empty(t, f.mailbox.marked)
}

func TestSyncService_NonInvoiceAttachmentDoesNotBlockMarking(t *testing.T) {
	f := newSyncFixture(0, message(9, "Terms and conditions", invoiceINV001240))

	run, err := f.svc.RunSync(context.Background())
	require.NoError(t, err)

	assert.Len(t, run.Failures, 1)
	assert.Equal(t, []uint32{9}, f.mailbox.marked)
}

func TestSyncService_UnmatchedInvoiceRetriedThenDeadLettered(t *testing.T) {
	f := newSyncFixture(2, message(10, invoiceUnknownProduct))

	run, err := f.svc.RunSync(context.Background())
	require.NoError(t, err)
	assert.Empty(t, f.mailbox.marked, "left unseen for retry")
	require.Len(t, run.Failures, 1)
	assert.Equal(t, entity.FailureTypeUnmatched, run.Failures[0].Type)
	assert.Equal(t, 1, run.InvoicesProcessed, "parsed and reconciled, even with no match")
	assert.Zero(t, run.ProductsUpdated)

	run, err = f.svc.RunSync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint32{10}, f.mailbox.marked)
	require.Len(t, run.Failures, 2)
	assert.Equal(t, entity.FailureTypeDeadLetter, run.Failures[1].Type)
}

func TestSyncService_UnmatchedRetriesForeverByDefault(t *testing.T) {
	f := newSyncFixture(0, message(10, invoiceUnknownProduct))

	for i := 0; i < 3; i++ {
		_, err := f.svc.RunSync(context.Background())
		require.NoError(t, err)
	}

	assert.Empty(t, f.mailbox.marked)
	assert.Equal(t, 3, f.unmatched.attempts["INV001300"])
}

func TestSyncService_StorageFailureLeavesMessage(t *testing.T) {
	f := newSyncFixture(0, message(11, invoiceINV001240))
	f.store.movementErr = errors.New("disk full")

	run, err := f.svc.RunSync(context.Background())
	require.NoError(t, err)

	require.Len(t, run.Failures, 1)
	assert.Equal(t, entity.FailureTypeStorage, run.Failures[0].Type)
	assert.Zero(t, run.InvoicesProcessed)
	assert.Empty(t, f.mailbox.marked)
	assert.Equal(t, 10.0, f.store.onHand("prod-aviator"))
}

func TestSyncService_MarkFailureRecorded(t *testing.T) {
	f := newSyncFixture(0, message(12, invoiceINV001240))
	f.mailbox.markErr = errors.New("connection reset")

	run, err := f.svc.RunSync(context.Background())
	require.NoError(t, err)

	require.Len(t, run.Failures, 1)
	assert.Equal(t, entity.FailureTypeEmail, run.Failures[0].Type)
	assert.Equal(t, 1, run.InvoicesProcessed)
}

func TestSyncService_MailboxFailureFailsRun(t *testing.T) {
	f := newSyncFixture(0)
	f.opener.openErr = errors.New("authentication failed")

	run, err := f.svc.RunSync(context.Background())
	require.Error(t, err)
	require.NotNil(t, run)

	assert.Equal(t, entity.SyncRunStatusFailed, run.Status)
	require.Len(t, run.Failures, 1)
	assert.Equal(t, entity.FailureTypeSystem, run.Failures[0].Type)
	assert.Equal(t, entity.SyncRunStatusFailed, f.runs.runs[run.ID].Status)
	assert.Equal(t, 1, f.locker.unlocks)
}

func TestSyncService_LockHeld(t *testing.T) {
	f := newSyncFixture(0)
	f.locker.held = true

	run, err := f.svc.RunSync(context.Background())
	assert.ErrorIs(t, err, ErrSyncInProgress)
	assert.Nil(t, run)
	assert.Empty(t, f.runs.runs)
}

func TestSyncService_PreviewDocument(t *testing.T) {
	f := newSyncFixture(0)

	preview, err := f.svc.PreviewDocument(context.Background(), []byte(invoiceINV001240), true)
	require.NoError(t, err)

	assert.Equal(t, "INV001240", preview.Report.Invoice.InvoiceNumber)
	require.NotNil(t, preview.Plan)
	require.Len(t, preview.Plan.Updates, 1)
	assert.Equal(t, 7.0, preview.Plan.Updates[0].NewStock)
	assert.Equal(t, 10.0, f.store.onHand("prod-aviator"), "preview never writes")
}

func TestSyncService_ProcessDocument(t *testing.T) {
	f := newSyncFixture(0)

	result, err := f.svc.ProcessDocument(context.Background(), []byte(invoiceINV001240), "upload")
	require.NoError(t, err)

	assert.Equal(t, 1, result.ProductsUpdated)
	assert.Equal(t, "upload", f.store.processed["INV001240"].SourceRef)
	assert.Contains(t, f.archive.stored, "INV001240/INV001240.pdf")
}

func TestSyncService_ProcessDocumentWaitsForLock(t *testing.T) {
	f := newSyncFixture(0)
	f.locker.held = true

	_, err := f.svc.ProcessDocument(context.Background(), []byte(invoiceINV001240), "upload")
	assert.ErrorIs(t, err, ErrSyncInProgress)
	assert.Equal(t, 10.0, f.store.onHand("prod-aviator"))
	assert.Empty(t, f.store.processed)
}

func TestSyncService_ProcessDocumentReleasesLock(t *testing.T) {
	f := newSyncFixture(0)

	_, err := f.svc.ProcessDocument(context.Background(), []byte(invoiceINV001240), "upload")
	require.NoError(t, err)

	assert.False(t, f.locker.held)
	assert.Equal(t, 1, f.locker.unlocks)
	assert.False(t, f.svc.IsRunning())
}

func TestSyncService_PreviewText(t *testing.T) {
	f := newSyncFixture(0)

	preview, err := f.svc.PreviewText(context.Background(), invoiceINV001240, false)
	require.NoError(t, err)
	assert.Equal(t, "INV001240", preview.Report.Invoice.InvoiceNumber)
	assert.Nil(t, preview.Plan)
}

func TestSyncService_ProcessDocumentWithoutInvoiceNumber(t *testing.T) {
	f := newSyncFixture(0)

	_, err := f.svc.ProcessDocument(context.Background(), []byte("Statement"), "upload")
	assert.ErrorIs(t, err, invoice.ErrNoInvoiceNumber)
}
