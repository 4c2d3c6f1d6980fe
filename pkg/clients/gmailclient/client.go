package gmailclient

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Client wraps the Gmail API client for a single sending mailbox
type Client struct {
	service      *gmail.Service
	sender       string
	interval     time.Duration
	lastSendTime time.Time
	sendMutex    sync.Mutex
}

// NewClient creates a Gmail client sending as sender.
// httpClient must already be authorised for the gmail.send scope as sender.
func NewClient(ctx context.Context, httpClient *http.Client, sender string, opts ...option.ClientOption) (*Client, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	service, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}

	return &Client{
		service:  service,
		sender:   sender,
		interval: EMAIL_INTERVAL,
	}, nil
}
