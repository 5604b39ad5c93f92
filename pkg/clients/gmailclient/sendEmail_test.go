package gmailclient

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(sendErr error) (*Client, *[]string, *[]time.Duration) {
	var sent []string
	var slept []time.Duration
	c := &Client{
		sender: "rota@example.org",
		send: func(raw string) error {
			if sendErr != nil {
				return sendErr
			}
			sent = append(sent, raw)
			return nil
		},
		sleep: func(d time.Duration) { slept = append(slept, d) },
	}
	return c, &sent, &slept
}

func TestBuildMessage(t *testing.T) {
	msg := buildMessage("rota@example.org", "vol@example.com", "Shift reminder", "See you at 18:00")

	assert.Equal(t, "From: rota@example.org\r\n"+
		"To: vol@example.com\r\n"+
		"Subject: Shift reminder\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: text/plain; charset=\"UTF-8\"\r\n"+
		"\r\n"+
		"See you at 18:00", msg)
}

func TestBuildMessage_EncodesSubject(t *testing.T) {
	msg := buildMessage("", "vol@example.com", "Café shift", "body")
	assert.NotContains(t, msg, "From:")
	assert.Contains(t, msg, "Subject: =?utf-8?q?Caf=C3=A9_shift?=")
}

func TestSendEmail_Throttles(t *testing.T) {
	c, sent, slept := newTestClient(nil)

	require.NoError(t, c.SendEmail("a@example.com", "one", "body"))
	assert.Empty(t, *slept)

	require.NoError(t, c.SendEmail("b@example.com", "two", "body"))
	require.Len(t, *slept, 1)
	assert.LessOrEqual(t, (*slept)[0], EMAIL_INTERVAL)

	require.Len(t, *sent, 2)
	decoded, err := base64.URLEncoding.DecodeString((*sent)[1])
	require.NoError(t, err)
	assert.Contains(t, string(decoded), "To: b@example.com")
}

func TestSendEmail_Error(t *testing.T) {
	c, _, _ := newTestClient(errors.New("quota"))

	err := c.SendEmail("a@example.com", "one", "body")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "a@example.com")
	assert.True(t, c.lastSendTime.IsZero())
}
