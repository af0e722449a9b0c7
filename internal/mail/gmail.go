package mail

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// GmailSender submits raw MIME messages through the Gmail API, impersonating
// the mailbox in OutboundEmail.FromEmail via domain-wide delegation.
type GmailSender struct {
	credsJSON []byte
	timeout   time.Duration

	mu       sync.Mutex
	services map[string]*gmail.Service // keyed by impersonated address
}

// NewGmailSender loads the service-account key used for delegation.
func NewGmailSender(credentialsFile string, timeout time.Duration) (*GmailSender, error) {
	creds, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read gmail credentials: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	return &GmailSender{
		credsJSON: creds,
		timeout:   timeout,
		services:  make(map[string]*gmail.Service),
	}, nil
}

// Send builds the MIME message and submits it as the impersonated sender.
// Returns the provider message id.
func (g *GmailSender) Send(ctx context.Context, email OutboundEmail) (string, error) {
	raw, err := BuildMIME(email)
	if err != nil {
		return "", fmt.Errorf("compose: %w", err)
	}

	svc, err := g.serviceFor(ctx, email.FromEmail)
	if err != nil {
		return "", fmt.Errorf("impersonate %s: %w", email.FromEmail, err)
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	msg := &gmail.Message{Raw: base64.RawURLEncoding.EncodeToString(raw)}
	sent, err := svc.Users.Messages.Send("me", msg).Context(ctxTimeout).Do()
	if err != nil {
		return "", fmt.Errorf("gmail send as %s: %w", email.FromEmail, err)
	}
	return sent.Id, nil
}

// serviceFor returns a Gmail client authorized as the given mailbox,
// creating and caching it on first use.
func (g *GmailSender) serviceFor(ctx context.Context, mailbox string) (*gmail.Service, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if svc, ok := g.services[mailbox]; ok {
		return svc, nil
	}

	cfg, err := google.JWTConfigFromJSON(g.credsJSON, gmail.GmailSendScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	cfg.Subject = mailbox

	svc, err := gmail.NewService(ctx, option.WithTokenSource(cfg.TokenSource(ctx)))
	if err != nil {
		return nil, err
	}

	g.services[mailbox] = svc
	return svc, nil
}
