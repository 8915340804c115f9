// Package natsutil provides typed NATS publish/subscribe helpers with
// OpenTelemetry trace propagation.
package natsutil

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
)

// natsHeaderCarrier adapts nats.Msg headers for OTel TextMapCarrier.
type natsHeaderCarrier nats.Msg

func (c *natsHeaderCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *natsHeaderCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *natsHeaderCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

// Publish serializes v as JSON and publishes it to the given subject,
// injecting trace context from ctx into the message headers.
func Publish[T any](ctx context.Context, nc *nats.Conn, subject string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	msg := &nats.Msg{Subject: subject, Data: data}
	otel.GetTextMapPropagator().Inject(ctx, (*natsHeaderCarrier)(msg))
	return nc.PublishMsg(msg)
}

// Subscribe registers a handler that deserializes JSON messages of type T.
// Trace context is extracted from the headers; malformed messages are dropped.
func Subscribe[T any](nc *nats.Conn, subject string, handler func(context.Context, T)) (*nats.Subscription, error) {
	return nc.Subscribe(subject, func(msg *nats.Msg) {
		var v T
		if err := json.Unmarshal(msg.Data, &v); err != nil {
			return
		}
		ctx := otel.GetTextMapPropagator().Extract(context.Background(), (*natsHeaderCarrier)(msg))
		handler(ctx, v)
	})
}

// QueueSubscribe is Subscribe with a queue group, so multiple backend
// instances share the work.
func QueueSubscribe[T any](nc *nats.Conn, subject, queue string, handler func(context.Context, T)) (*nats.Subscription, error) {
	return nc.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		var v T
		if err := json.Unmarshal(msg.Data, &v); err != nil {
			return
		}
		ctx := otel.GetTextMapPropagator().Extract(context.Background(), (*natsHeaderCarrier)(msg))
		handler(ctx, v)
	})
}
