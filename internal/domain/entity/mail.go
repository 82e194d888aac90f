package entity

import (
	"strconv"
	"time"
)

// InvoiceMessage is a supplier email carrying invoice attachments
type InvoiceMessage struct {
	UID         uint32       `json:"uid"`
	From        string       `json:"from"`
	Subject     string       `json:"subject"`
	Date        time.Time    `json:"date"`
	Attachments []Attachment `json:"attachments"`
}

// SourceRef returns the reference stored on processed invoice records
func (m *InvoiceMessage) SourceRef() string {
	return strconv.FormatUint(uint64(m.UID), 10)
}

// Attachment is a PDF attached to an invoice message
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"-"`
}
