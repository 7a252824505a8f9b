package domain

import (
	"fmt"
	"net/mail"
	"strings"
)

// Sender is the display identity placed in the From header.
type Sender struct {
	Name    string
	Address string
}

// String renders the sender as an RFC 5322 address.
func (s Sender) String() string {
	if s.Name == "" {
		return s.Address
	}
	return (&mail.Address{Name: s.Name, Address: s.Address}).String()
}

// OutgoingMessage is a single email handed to the orchestrator. It is passed
// by value; channels that need a different sender use WithSender.
type OutgoingMessage struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
	From     Sender
}

// WithSender returns a copy of m sent from s.
func (m OutgoingMessage) WithSender(s Sender) OutgoingMessage {
	m.From = s
	return m
}

// Validate checks the fields every channel relies on.
func (m OutgoingMessage) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return fmt.Errorf("recipient is required")
	}
	if _, err := mail.ParseAddress(m.To); err != nil {
		return fmt.Errorf("invalid recipient %q: %w", m.To, err)
	}
	if strings.TrimSpace(m.From.Address) == "" {
		return fmt.Errorf("sender address is required")
	}
	if m.HTMLBody == "" && m.TextBody == "" {
		return fmt.Errorf("message body is required")
	}
	return nil
}

// RecipientDomain returns the domain part of the recipient address.
func (m OutgoingMessage) RecipientDomain() string {
	if i := strings.LastIndexByte(m.To, '@'); i >= 0 {
		return strings.ToLower(strings.TrimSpace(m.To[i+1:]))
	}
	return ""
}
