package gmailclient

import (
	"encoding/base64"
	"fmt"
	"mime"
	"strings"
	"time"
)

const EMAIL_INTERVAL = 3 * time.Second

// SendEmail sends a plain text email with the specified subject and body
// Throttles requests to respect Gmail API rate limits
func (c *Client) SendEmail(to, subject, body string) error {
	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()

	if !c.lastSendTime.IsZero() {
		if elapsed := time.Since(c.lastSendTime); elapsed < EMAIL_INTERVAL {
			c.sleep(EMAIL_INTERVAL - elapsed)
		}
	}

	raw := base64.URLEncoding.EncodeToString([]byte(buildMessage(c.sender, to, subject, body)))

	if err := c.send(raw); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}

	c.lastSendTime = time.Now()

	return nil
}

// buildMessage renders an RFC 5322 message. Subjects are Q-encoded so
// volunteer names outside ASCII survive.
func buildMessage(from, to, subject, body string) string {
	var b strings.Builder
	if from != "" {
		fmt.Fprintf(&b, "From: %s\r\n", from)
	}
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return b.String()
}
