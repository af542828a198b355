package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pusher/pusher-http-go/v5"
)

// Pusher triggers realtime events.
type Pusher interface {
	Trigger(ctx context.Context, channel, event string, data any) error
}

// PusherClient triggers events on Pusher Channels.
type PusherClient struct {
	client *pusher.Client
}

// NewPusherClient creates a client for the given app credentials. Each HTTP
// call to Pusher is bounded by timeout.
func NewPusherClient(appID, key, secret, cluster string, timeout time.Duration) *PusherClient {
	return &PusherClient{
		client: &pusher.Client{
			AppID:      appID,
			Key:        key,
			Secret:     secret,
			Cluster:    cluster,
			Secure:     true,
			HTTPClient: &http.Client{Timeout: timeout},
		},
	}
}

// Trigger publishes data as event on channel. The Pusher library takes no
// context, so a canceled ctx is only checked before the call.
func (p *PusherClient) Trigger(ctx context.Context, channel, event string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.client.Trigger(channel, event, data); err != nil {
		return fmt.Errorf("dispatch: pusher trigger %s/%s: %w", channel, event, err)
	}
	return nil
}

// LogPusher only logs events. Used when Pusher is not configured.
type LogPusher struct {
	logger *slog.Logger
}

func NewLogPusher(logger *slog.Logger) *LogPusher {
	return &LogPusher{logger: logger}
}

func (p *LogPusher) Trigger(_ context.Context, channel, event string, _ any) error {
	p.logger.Debug("push event not sent (no push provider configured)",
		slog.String("channel", channel),
		slog.String("event", event),
	)
	return nil
}
