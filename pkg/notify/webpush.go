package notify

import (
	"context"
	"fmt"
	"io"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/jakechorley/drop-in-shifts/pkg/core/model"
)

const defaultTTL = 60 * 60 * 24

// VAPIDConfig holds the application server keys used to sign push requests
type VAPIDConfig struct {
	PublicKey  string
	PrivateKey string
	// Subscriber is the contact sent to push services, an email or https URL
	Subscriber string
	TTL        int
}

// WebPushSender sends notifications with the Web Push protocol
type WebPushSender struct {
	cfg VAPIDConfig
}

func NewWebPushSender(cfg VAPIDConfig) (*WebPushSender, error) {
	if cfg.PublicKey == "" || cfg.PrivateKey == "" {
		return nil, fmt.Errorf("vapid public and private keys are required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	return &WebPushSender{cfg: cfg}, nil
}

// Send encrypts payload for the subscription and posts it to the push service
func (s *WebPushSender) Send(ctx context.Context, sub model.PushSubscription, payload []byte) (int, error) {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		Subscriber:      s.cfg.Subscriber,
		VAPIDPublicKey:  s.cfg.PublicKey,
		VAPIDPrivateKey: s.cfg.PrivateKey,
		TTL:             s.cfg.TTL,
		Urgency:         webpush.UrgencyNormal,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to send push: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

// GenerateVAPIDKeys returns a new (private, public) key pair
func GenerateVAPIDKeys() (string, string, error) {
	return webpush.GenerateVAPIDKeys()
}
