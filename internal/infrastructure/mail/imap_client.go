package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/textproto"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/spiritmate/myob-stock-sync/internal/application/port"
	"github.com/spiritmate/myob-stock-sync/internal/domain/entity"
	"go.uber.org/zap"
)

// Config holds IMAP connection and filter settings
type Config struct {
	Host           string
	Port           int
	Username       string
	Password       string
	Mailbox        string
	UseTLS         bool
	FromExact      string
	SubjectPrefix  string
	ProcessedLabel string
	DialTimeout    time.Duration
}

// IMAPOpener opens sessions against the supplier invoice mailbox
type IMAPOpener struct {
	config Config
	logger *zap.Logger
}

// NewIMAPOpener creates a new IMAP mailbox opener
func NewIMAPOpener(config Config, logger *zap.Logger) port.MailboxOpener {
	if config.Mailbox == "" {
		config.Mailbox = "INBOX"
	}
	return &IMAPOpener{config: config, logger: logger}
}

// Open dials the server, logs in and selects the configured mailbox
func (o *IMAPOpener) Open(ctx context.Context) (port.InvoiceMailbox, error) {
	addr := fmt.Sprintf("%s:%d", o.config.Host, o.config.Port)

	c, err := o.dial(addr)
	if err != nil {
		o.logger.Error("Failed to connect to IMAP server", zap.String("addr", addr), zap.Error(err))
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	if o.config.DialTimeout > 0 {
		c.Timeout = o.config.DialTimeout
	}

	// Abort the handshake if the caller gives up first
	stop := context.AfterFunc(ctx, func() { _ = c.Terminate() })
	defer stop()

	if err := c.Login(o.config.Username, o.config.Password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("failed to login as %s: %w", o.config.Username, err)
	}

	if _, err := c.Select(o.config.Mailbox, false); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("failed to select mailbox %s: %w", o.config.Mailbox, err)
	}

	o.logger.Debug("IMAP session opened",
		zap.String("addr", addr),
		zap.String("mailbox", o.config.Mailbox))

	return &imapSession{client: c, config: o.config, logger: o.logger}, nil
}

func (o *IMAPOpener) dial(addr string) (*client.Client, error) {
	if o.config.UseTLS {
		return client.DialTLS(addr, &tls.Config{ServerName: o.config.Host})
	}
	return client.Dial(addr)
}

// imapSession is an authenticated IMAP connection with the mailbox selected
type imapSession struct {
	client *client.Client
	config Config
	logger *zap.Logger
}

// FetchInvoiceMessages returns unseen supplier messages carrying PDF attachments
func (s *imapSession) FetchInvoiceMessages(ctx context.Context) ([]*entity.InvoiceMessage, error) {
	criteria := searchCriteria(s.config)

	uids, err := s.client.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search mailbox: %w", err)
	}
	if len(uids) == 0 {
		return []*entity.InvoiceMessage{}, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, imap.FetchEnvelope, section.FetchItem()}

	fetched := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- s.client.UidFetch(seqSet, items, fetched)
	}()

	messages := make([]*entity.InvoiceMessage, 0, len(uids))
	for msg := range fetched {
		if ctx.Err() != nil {
			// Keep draining so UidFetch can return
			continue
		}

		if invoiceMsg := s.invoiceMessage(msg, section); invoiceMsg != nil {
			messages = append(messages, invoiceMsg)
		}
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.logger.Info("Fetched invoice messages",
		zap.Int("matched", len(uids)),
		zap.Int("accepted", len(messages)))

	return messages, nil
}

// invoiceMessage converts a fetched message, or returns nil when it is outside
// the sender and subject filter or carries no PDF attachment.
func (s *imapSession) invoiceMessage(msg *imap.Message, section *imap.BodySectionName) *entity.InvoiceMessage {
	invoiceMsg := &entity.InvoiceMessage{UID: msg.Uid}
	if msg.Envelope != nil {
		invoiceMsg.Subject = msg.Envelope.Subject
		invoiceMsg.Date = msg.Envelope.Date
		if len(msg.Envelope.From) > 0 {
			invoiceMsg.From = formatAddress(msg.Envelope.From[0])
		}
	}

	if !matchesSender(invoiceMsg.From, s.config.FromExact) ||
		!matchesSubject(invoiceMsg.Subject, s.config.SubjectPrefix) {
		s.logger.Debug("Skipping message outside filter",
			zap.Uint32("uid", msg.Uid),
			zap.String("from", invoiceMsg.From),
			zap.String("subject", invoiceMsg.Subject))
		return nil
	}

	body := msg.GetBody(section)
	if body == nil {
		s.logger.Warn("Message body missing from fetch", zap.Uint32("uid", msg.Uid))
		return nil
	}

	attachments, err := extractPDFAttachments(body)
	if err != nil {
		s.logger.Warn("Failed to read message attachments",
			zap.Uint32("uid", msg.Uid),
			zap.Error(err))
	}
	if len(attachments) == 0 {
		s.logger.Debug("Skipping message without PDF attachments", zap.Uint32("uid", msg.Uid))
		return nil
	}

	invoiceMsg.Attachments = attachments
	return invoiceMsg
}

// MarkProcessed flags the message as seen and copies it into the processed folder
func (s *imapSession) MarkProcessed(ctx context.Context, uid uint32) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := s.client.UidStore(seqSet, item, []interface{}{imap.SeenFlag}, nil); err != nil {
		return fmt.Errorf("failed to flag message %d as seen: %w", uid, err)
	}

	if s.config.ProcessedLabel == "" {
		return nil
	}

	if err := s.ensureMailbox(s.config.ProcessedLabel); err != nil {
		return err
	}
	if err := s.client.UidCopy(seqSet, s.config.ProcessedLabel); err != nil {
		return fmt.Errorf("failed to copy message %d to %s: %w", uid, s.config.ProcessedLabel, err)
	}
	return nil
}

func (s *imapSession) ensureMailbox(name string) error {
	mailboxes := make(chan *imap.MailboxInfo, 10)
	done := make(chan error, 1)
	go func() {
		done <- s.client.List("", name, mailboxes)
	}()

	exists := false
	for m := range mailboxes {
		if m.Name == name {
			exists = true
		}
	}
	if err := <-done; err != nil {
		return fmt.Errorf("failed to list mailbox %s: %w", name, err)
	}
	if exists {
		return nil
	}

	if err := s.client.Create(name); err != nil {
		return fmt.Errorf("failed to create mailbox %s: %w", name, err)
	}
	s.logger.Info("Created processed mailbox", zap.String("mailbox", name))
	return nil
}

// Close logs out of the server
func (s *imapSession) Close() error {
	if err := s.client.Logout(); err != nil && err != client.ErrAlreadyLoggedOut {
		return fmt.Errorf("failed to logout: %w", err)
	}
	return nil
}

func searchCriteria(config Config) *imap.SearchCriteria {
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	criteria.Header = make(textproto.MIMEHeader)
	if config.FromExact != "" {
		criteria.Header.Add("From", config.FromExact)
	}
	if config.SubjectPrefix != "" {
		criteria.Header.Add("Subject", config.SubjectPrefix)
	}
	return criteria
}

func formatAddress(addr *imap.Address) string {
	if addr == nil {
		return ""
	}
	if addr.HostName == "" {
		return addr.MailboxName
	}
	return addr.MailboxName + "@" + addr.HostName
}

// matchesSender re-checks the server-side FROM search, which is a substring match
func matchesSender(from, fromExact string) bool {
	if fromExact == "" {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(from), strings.TrimSpace(fromExact))
}

func matchesSubject(subject, prefix string) bool {
	if prefix == "" {
		return true
	}
	return strings.HasPrefix(strings.TrimSpace(subject), prefix)
}

var _ port.MailboxOpener = (*IMAPOpener)(nil)
var _ port.InvoiceMailbox = (*imapSession)(nil)
