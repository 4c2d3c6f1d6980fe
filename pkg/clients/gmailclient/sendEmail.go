package gmailclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"net/textproto"
	"time"

	"google.golang.org/api/gmail/v1"

	"github.com/jakechorley/session-booking/pkg/core/services"
)

const EMAIL_INTERVAL = 3 * time.Second

// SendNotification sends a notification, attaching its invite when present.
// Throttles requests to respect Gmail API rate limits.
func (c *Client) SendNotification(ctx context.Context, n services.Notification) error {
	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()

	if !c.lastSendTime.IsZero() {
		if wait := c.interval - time.Since(c.lastSendTime); wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	raw, err := buildMessage(c.sender, n)
	if err != nil {
		return err
	}

	gmailMessage := &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}

	if _, err := c.service.Users.Messages.Send("me", gmailMessage).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	c.lastSendTime = time.Now()
	return nil
}

// buildMessage renders an RFC 822 message. Notifications with an invite are
// sent as multipart/mixed with a text/calendar part.
func buildMessage(from string, n services.Notification) ([]byte, error) {
	var buf bytes.Buffer
	if from != "" {
		fmt.Fprintf(&buf, "From: %s\r\n", from)
	}
	fmt.Fprintf(&buf, "To: %s\r\n", n.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", n.Subject))
	buf.WriteString("MIME-Version: 1.0\r\n")

	if len(n.Invite) == 0 {
		buf.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
		buf.WriteString(n.Body)
		return buf.Bytes(), nil
	}

	mw := multipart.NewWriter(&buf)
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", mw.Boundary())

	text, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/plain; charset=\"utf-8\""},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create body part: %w", err)
	}
	if _, err := text.Write([]byte(n.Body)); err != nil {
		return nil, fmt.Errorf("failed to write body part: %w", err)
	}

	method := "REQUEST"
	if bytes.Contains(n.Invite, []byte("METHOD:CANCEL")) {
		method = "CANCEL"
	}
	invite, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/calendar; charset=\"utf-8\"; method=" + method},
		"Content-Disposition":       {"attachment; filename=\"invite.ics\""},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create invite part: %w", err)
	}
	if _, err := invite.Write([]byte(base64.StdEncoding.EncodeToString(n.Invite))); err != nil {
		return nil, fmt.Errorf("failed to write invite part: %w", err)
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close message: %w", err)
	}
	return buf.Bytes(), nil
}
