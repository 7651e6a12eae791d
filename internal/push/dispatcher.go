// Package push delivers Web Push notifications to subscribed browsers.
// Delivery is strictly best effort: a failed push never fails the operation
// that triggered it.
package push

import (
	"context"
	"encoding/json"
	"net/http"

	"alltrade/internal/config"
	"alltrade/internal/middleware"
	"alltrade/internal/models"
	"alltrade/internal/repository"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// Sender sends one push message to one subscription. Split out so tests can
// substitute failures without a real push service.
type Sender interface {
	Send(ctx context.Context, sub *models.PushSubscription, payload []byte) (statusCode int, err error)
}

// Dispatcher fans a notification out to every subscription a user holds.
type Dispatcher struct {
	repo    repository.NotificationRepository
	sender  Sender
	enabled bool
}

// NewDispatcher builds a dispatcher from application config. When VAPID keys
// are absent the dispatcher is a no-op.
func NewDispatcher(cfg *config.Config, repo repository.NotificationRepository) *Dispatcher {
	enabled := cfg.VAPIDPublicKey != "" && cfg.VAPIDPrivateKey != ""
	return &Dispatcher{
		repo:    repo,
		enabled: enabled,
		sender: &vapidSender{
			subscriber: cfg.PushSubscriber,
			publicKey:  cfg.VAPIDPublicKey,
			privateKey: cfg.VAPIDPrivateKey,
		},
	}
}

// NewDispatcherWithSender is the test constructor.
func NewDispatcherWithSender(repo repository.NotificationRepository, sender Sender) *Dispatcher {
	return &Dispatcher{repo: repo, sender: sender, enabled: true}
}

// Dispatch pushes the notification to all of the user's registered endpoints.
// Endpoints the push service reports as gone are dropped from storage. All
// other errors are logged and swallowed.
func (d *Dispatcher) Dispatch(ctx context.Context, notification *models.Notification) {
	if !d.enabled {
		return
	}

	subs, err := d.repo.ListSubscriptions(ctx, notification.UserID)
	if err != nil {
		middleware.Logger.Warn("push: failed to list subscriptions",
			"user_id", notification.UserID, "error", err)
		return
	}
	if len(subs) == 0 {
		return
	}

	payload, err := json.Marshal(map[string]any{
		"title": notification.Title,
		"body":  notification.Body,
		"type":  notification.Type,
		"meta":  notification.Meta,
	})
	if err != nil {
		middleware.Logger.Warn("push: failed to marshal payload", "error", err)
		return
	}

	for _, sub := range subs {
		status, err := d.sender.Send(ctx, sub, payload)
		if err != nil {
			middleware.Logger.Warn("push: delivery failed",
				"user_id", notification.UserID, "endpoint", sub.Endpoint, "error", err)
			continue
		}
		if status == http.StatusNotFound || status == http.StatusGone {
			if err := d.repo.DeleteSubscription(ctx, sub.Endpoint); err != nil {
				middleware.Logger.Warn("push: failed to prune dead subscription",
					"endpoint", sub.Endpoint, "error", err)
			}
		}
	}
}

type vapidSender struct {
	subscriber string
	publicKey  string
	privateKey string
}

func (s *vapidSender) Send(ctx context.Context, sub *models.PushSubscription, payload []byte) (int, error) {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		Subscriber:      s.subscriber,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             60,
	})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}
