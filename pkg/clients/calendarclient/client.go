package calendarclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/jakechorley/session-booking/pkg/core/services"
)

const primaryCalendar = "primary"

// HTTPClientSource returns an HTTP client authorised as the given user
type HTTPClientSource interface {
	Client(ctx context.Context, subject string) (*http.Client, error)
}

// Client manages events on each host's primary calendar.
// Calendar services are created lazily per host and cached.
type Client struct {
	source HTTPClientSource
	opts   []option.ClientOption

	mu       sync.Mutex
	services map[string]*calendar.Service
}

// NewClient creates a calendar client acting as hosts through source
func NewClient(source HTTPClientSource, opts ...option.ClientOption) *Client {
	return &Client{
		source:   source,
		opts:     opts,
		services: make(map[string]*calendar.Service),
	}
}

func (c *Client) service(ctx context.Context, host string) (*calendar.Service, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if svc, ok := c.services[host]; ok {
		return svc, nil
	}

	httpClient, err := c.source.Client(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("failed to authorise as %s: %w", host, err)
	}

	opts := append([]option.ClientOption{option.WithHTTPClient(httpClient)}, c.opts...)
	svc, err := calendar.NewService(context.WithoutCancel(ctx), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	c.services[host] = svc
	return svc, nil
}

// CreateEvent creates an event on the host's calendar and invites the attendees.
// Virtual sessions request a Google Meet link.
func (c *Client) CreateEvent(ctx context.Context, hostEmail string, ev services.CalendarEvent) (*services.CreatedEvent, error) {
	svc, err := c.service(ctx, hostEmail)
	if err != nil {
		return nil, err
	}

	event := &calendar.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Start:       &calendar.EventDateTime{DateTime: ev.Start.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: ev.End.Format(time.RFC3339)},
	}
	for _, a := range ev.Attendees {
		event.Attendees = append(event.Attendees, &calendar.EventAttendee{Email: a})
	}

	call := svc.Events.Insert(primaryCalendar, event).SendUpdates("all")
	if ev.WantsVideoLink {
		event.ConferenceData = &calendar.ConferenceData{
			CreateRequest: &calendar.CreateConferenceRequest{
				RequestId:             uuid.New().String(),
				ConferenceSolutionKey: &calendar.ConferenceSolutionKey{Type: "hangoutsMeet"},
			},
		}
		call = call.ConferenceDataVersion(1)
	}

	created, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	return &services.CreatedEvent{EventID: created.Id, VideoLink: videoLink(created)}, nil
}

func videoLink(ev *calendar.Event) string {
	if ev.HangoutLink != "" {
		return ev.HangoutLink
	}
	if ev.ConferenceData != nil {
		for _, ep := range ev.ConferenceData.EntryPoints {
			if ep.EntryPointType == "video" {
				return ep.Uri
			}
		}
	}
	return ""
}

// DeleteEvent removes an event from the host's calendar.
// An event that is already gone counts as deleted.
func (c *Client) DeleteEvent(ctx context.Context, hostEmail, eventID string) error {
	svc, err := c.service(ctx, hostEmail)
	if err != nil {
		return err
	}

	err = svc.Events.Delete(primaryCalendar, eventID).SendUpdates("all").Context(ctx).Do()
	if err != nil && !isGone(err) {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}

// TransferEvent moves an event from one host's calendar to another's,
// making the new host the organizer
func (c *Client) TransferEvent(ctx context.Context, eventID, fromHost, toHost string) (string, error) {
	svc, err := c.service(ctx, fromHost)
	if err != nil {
		return "", err
	}

	moved, err := svc.Events.Move(primaryCalendar, eventID, toHost).SendUpdates("all").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to move event to %s: %w", toHost, err)
	}
	return moved.Id, nil
}

func isGone(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && (apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone)
}
