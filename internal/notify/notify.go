// Package notify pushes committed order and ticket changes to subscribers
// over PubNub.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	pubnub "github.com/pubnub/go/v7"

	"ticket-market/models"
)

// TicketsChannel receives every ticket event so listings can refresh.
const TicketsChannel = "tickets"

type Config struct {
	PublishKey   string
	SubscribeKey string
	SecretKey    string
	UserID       string
}

// publishFunc sends one message to one channel.
type publishFunc func(channel string, message any) error

// PubNub publishes events to the owning user's channel. Publishing never
// fails the caller: the change is already committed, so errors are logged.
type PubNub struct {
	publish publishFunc
}

func NewPubNub(cfg Config) *PubNub {
	pnCfg := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.UserID))
	pnCfg.PublishKey = cfg.PublishKey
	pnCfg.SubscribeKey = cfg.SubscribeKey
	pnCfg.SecretKey = cfg.SecretKey
	pn := pubnub.NewPubNub(pnCfg)

	return &PubNub{publish: func(channel string, message any) error {
		_, _, err := pn.Publish().
			Channel(channel).
			Message(message).
			Execute()
		return err
	}}
}

func UserChannel(userID string) string {
	return fmt.Sprintf("user-%s", userID)
}

// Channels lists where an event is delivered.
func Channels(e models.Event) []string {
	var channels []string
	if e.UserID != "" {
		channels = append(channels, UserChannel(e.UserID))
	}
	// every order event flips the ticket's reservation
	if e.Type == models.EventTicketUpdated || e.OrderID != "" {
		channels = append(channels, TicketsChannel)
	}
	return channels
}

func (p *PubNub) Notify(ctx context.Context, e models.Event) {
	for _, ch := range Channels(e) {
		if err := p.publish(ch, e); err != nil {
			slog.Warn("Failed to publish event",
				"error", err,
				"channel", ch,
				"type", string(e.Type),
				"order_id", e.OrderID,
			)
		}
	}
}

// Nop drops every event. Used when PubNub is not configured.
type Nop struct{}

func (Nop) Notify(context.Context, models.Event) {}
