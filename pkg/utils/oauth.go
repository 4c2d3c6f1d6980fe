package utils

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
)

// OAuth scopes for Google APIs
const (
	ScopeCalendarEvents = "https://www.googleapis.com/auth/calendar.events"
	ScopeGmailSend      = "https://www.googleapis.com/auth/gmail.send"
)

// RequiredScopes returns all scopes the service account must be delegated
func RequiredScopes() []string {
	return []string{ScopeCalendarEvents, ScopeGmailSend}
}

// Impersonator issues HTTP clients that act as a Workspace user through a
// service account with domain-wide delegation. Clients are cached per user.
type Impersonator struct {
	base *jwt.Config

	mu      sync.Mutex
	clients map[string]*http.Client
}

// NewImpersonator parses service account credentials for the given scopes
func NewImpersonator(credentialsJSON []byte, scopes ...string) (*Impersonator, error) {
	if len(scopes) == 0 {
		scopes = RequiredScopes()
	}
	cfg, err := google.JWTConfigFromJSON(credentialsJSON, scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account credentials: %w", err)
	}
	return &Impersonator{base: cfg, clients: make(map[string]*http.Client)}, nil
}

// Client returns an HTTP client authorised as subject
func (i *Impersonator) Client(ctx context.Context, subject string) (*http.Client, error) {
	subject = strings.ToLower(strings.TrimSpace(subject))
	if subject == "" {
		return nil, fmt.Errorf("impersonation subject must not be empty")
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if c, ok := i.clients[subject]; ok {
		return c, nil
	}

	cfg := *i.base
	cfg.Subject = subject
	// Token refreshes outlive any single request, so the client is not bound to ctx
	c := cfg.Client(context.WithoutCancel(ctx))
	i.clients[subject] = c
	return c, nil
}
