package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

const subjectPrefix = "newslens."

// NATSPublisher sends each event to "newslens.<type>".
type NATSPublisher struct {
	nc *nats.Conn
}

var _ Publisher = (*NATSPublisher)(nil)

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url,
		nats.Name("newslens"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSPublisher{nc: nc}, nil
}

func Subject(eventType string) string {
	return subjectPrefix + eventType
}

func (p *NATSPublisher) Publish(_ context.Context, evt Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.nc.Publish(Subject(evt.Type), data); err != nil {
		return fmt.Errorf("nats publish %s: %w", evt.Type, err)
	}
	return nil
}

// Subscribe delivers every newslens event until ctx is done.
func (p *NATSPublisher) Subscribe(ctx context.Context, handler func(Event)) (*nats.Subscription, error) {
	sub, err := p.nc.Subscribe(subjectPrefix+">", func(msg *nats.Msg) {
		var evt Event
		if err := json.Unmarshal(msg.Data, &evt); err == nil {
			handler(evt)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("nats subscribe: %w", err)
	}
	if err := p.nc.Flush(); err != nil {
		return nil, fmt.Errorf("nats flush: %w", err)
	}
	go func() {
		<-ctx.Done()
		_ = sub.Drain()
	}()
	return sub, nil
}

func (p *NATSPublisher) Close() {
	_ = p.nc.Drain()
}
