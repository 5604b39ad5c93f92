package gmailclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/jakechorley/drop-in-shifts/internal/config"
	"github.com/jakechorley/drop-in-shifts/pkg/utils"
)

// Client wraps the Gmail API client
type Client struct {
	service      *gmail.Service
	sender       string
	lastSendTime time.Time
	sendMutex    sync.Mutex

	// send and sleep are replaced in tests
	send  func(raw string) error
	sleep func(time.Duration)
}

// NewClient creates a Gmail client that authenticates with a stored refresh token
func NewClient(ctx context.Context, oauthCfg *config.OAuthClientConfig, refreshToken, sender string) (*Client, error) {
	oauthConfig, err := utils.GetOAuthConfig(oauthCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to get oauth config: %w", err)
	}

	tokenSource, err := utils.RefreshTokenSource(ctx, oauthConfig, refreshToken)
	if err != nil {
		return nil, err
	}

	service, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}

	c := &Client{
		service: service,
		sender:  sender,
		sleep:   time.Sleep,
	}
	c.send = c.sendRaw
	return c, nil
}

func (c *Client) sendRaw(raw string) error {
	_, err := c.service.Users.Messages.Send("me", &gmail.Message{Raw: raw}).Do()
	return err
}
