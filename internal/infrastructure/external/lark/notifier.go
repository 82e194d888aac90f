package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spiritmate/myob-stock-sync/internal/application/port"
	"github.com/spiritmate/myob-stock-sync/internal/domain/entity"
	"go.uber.org/zap"
)

// maxListedFailures caps the failures quoted in one notification
const maxListedFailures = 5

// RunNotifier posts a sync run summary to a Lark group chat
type RunNotifier struct {
	sender messageSender
	chatID string
	logger *zap.Logger
}

// NewRunNotifier creates a notifier posting to the configured chat
func NewRunNotifier(cfg Config, logger *zap.Logger) *RunNotifier {
	return newRunNotifier(NewSDKClient(cfg, logger), cfg.NotifyChatID, logger)
}

func newRunNotifier(sender messageSender, chatID string, logger *zap.Logger) *RunNotifier {
	return &RunNotifier{sender: sender, chatID: chatID, logger: logger}
}

// NotifyRunCompleted sends a text summary of the finished run
func (n *RunNotifier) NotifyRunCompleted(ctx context.Context, run *entity.SyncRun) error {
	if run == nil {
		return fmt.Errorf("run cannot be nil")
	}

	content, err := json.Marshal(map[string]string{"text": FormatRunSummary(run)})
	if err != nil {
		return fmt.Errorf("failed to marshal message content: %w", err)
	}

	messageID, err := n.sender.SendMessage(ctx, "chat_id", n.chatID, "text", string(content))
	if err != nil {
		return fmt.Errorf("failed to notify run %s: %w", run.ID, err)
	}

	n.logger.Info("Run summary sent",
		zap.String("run_id", run.ID),
		zap.String("message_id", messageID))
	return nil
}

// FormatRunSummary renders a run as a short plain-text report
func FormatRunSummary(run *entity.SyncRun) string {
	var b strings.Builder

	fmt.Fprintf(&b, "MYOB stock sync %s (%s)\n", run.Status, run.ID)
	fmt.Fprintf(&b, "Emails scanned: %d\n", run.EmailsScanned)
	fmt.Fprintf(&b, "Invoices processed: %d\n", run.InvoicesProcessed)
	fmt.Fprintf(&b, "Products updated: %d", run.ProductsUpdated)

	if run.CompletedAt != nil {
		fmt.Fprintf(&b, "\nDuration: %s", run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}

	if len(run.Failures) > 0 {
		fmt.Fprintf(&b, "\nFailures: %d", len(run.Failures))
		for i, f := range run.Failures {
			if i == maxListedFailures {
				fmt.Fprintf(&b, "\n... and %d more", len(run.Failures)-maxListedFailures)
				break
			}
			fmt.Fprintf(&b, "\n- [%s] %s", f.Type, f.Message)
		}
	}

	return b.String()
}

// NoopNotifier discards notifications when Lark is not configured
type NoopNotifier struct{}

// NotifyRunCompleted does nothing
func (NoopNotifier) NotifyRunCompleted(context.Context, *entity.SyncRun) error {
	return nil
}

var _ port.RunNotifier = (*RunNotifier)(nil)
var _ port.RunNotifier = NoopNotifier{}
