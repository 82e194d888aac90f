package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail validates an email address
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

// ValidatePort validates a TCP port number
func ValidatePort(port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("port out of range: %d", port)
	}
	return nil
}

// ValidateMailboxName rejects IMAP mailbox names the server would misread
func ValidateMailboxName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("mailbox name cannot be empty")
	}
	if strings.ContainsAny(name, "*%\r\n") {
		return fmt.Errorf("mailbox name contains wildcard or control characters: %q", name)
	}
	return nil
}
