// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package ingest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/notifyrank/internal/config"
)

// Transport kinds.
const (
	KindNATS      = "nats"
	KindGoChannel = "gochannel"
)

// Transport is a publisher/subscriber pair plus the resources behind it.
type Transport struct {
	Kind       string
	Publisher  message.Publisher
	Subscriber message.Subscriber

	closers []func() error
}

// Close releases the transport in reverse order of creation.
func (t *Transport) Close() error {
	var errs []error
	for i := len(t.closers) - 1; i >= 0; i-- {
		if err := t.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	t.closers = nil
	return errors.Join(errs...)
}

// NewTransport builds the NATS transport when cfg.Enabled is set and the
// in-process gochannel transport otherwise.
func NewTransport(ctx context.Context, cfg *config.NATSConfig, logger watermill.LoggerAdapter) (*Transport, error) {
	if !cfg.Enabled {
		return NewGoChannelTransport(logger), nil
	}
	return NewNATSTransport(ctx, cfg, logger)
}

// NewGoChannelTransport returns an in-process transport. Messages published
// before a subscriber exists are dropped.
func NewGoChannelTransport(logger watermill.LoggerAdapter) *Transport {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger)
	return &Transport{
		Kind:       KindGoChannel,
		Publisher:  ch,
		Subscriber: ch,
		closers:    []func() error{ch.Close},
	}
}

// NewNATSTransport connects to NATS JetStream, starting an embedded server
// first when configured, and provisions the NOTIFICATIONS stream.
func NewNATSTransport(ctx context.Context, cfg *config.NATSConfig, logger watermill.LoggerAdapter) (*Transport, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	t := &Transport{Kind: KindNATS}

	natsURL := cfg.URL
	if cfg.EmbeddedServer {
		host, port, err := listenAddr(cfg.URL)
		if err != nil {
			return nil, err
		}
		srv, err := StartEmbeddedServer(cfg, host, port)
		if err != nil {
			return nil, fmt.Errorf("start embedded NATS: %w", err)
		}
		t.closers = append(t.closers, func() error { srv.Shutdown(); return nil })
		natsURL = srv.ClientURL()
	}

	nc, err := natsgo.Connect(natsURL, natsgo.Name("notifyrank-provisioner"))
	if err != nil {
		_ = t.Close()
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	t.closers = append(t.closers, func() error { nc.Close(); return nil })

	retention := time.Duration(cfg.StreamRetentionDays) * 24 * time.Hour
	if _, err := EnsureStream(ctx, nc, retention, cfg.MaxStore); err != nil {
		_ = t.Close()
		return nil, err
	}

	natsOpts := connectOptions(logger)

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         natsURL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: false,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logger)
	if err != nil {
		_ = t.Close()
		return nil, fmt.Errorf("create publisher: %w", err)
	}
	t.Publisher = pub
	t.closers = append(t.closers, pub.Close)

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              natsURL,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: cfg.SubscribersCount,
		AckWaitTimeout:   30 * time.Second,
		CloseTimeout:     cfg.RouterCloseTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: false,
			AckAsync:      false,
			DurablePrefix: cfg.DurableName,
			SubscribeOptions: []natsgo.SubOpt{
				natsgo.BindStream(StreamName),
				natsgo.DeliverNew(),
				natsgo.AckExplicit(),
				natsgo.MaxDeliver(10),
			},
		},
	}, logger)
	if err != nil {
		_ = t.Close()
		return nil, fmt.Errorf("create subscriber: %w", err)
	}
	t.Subscriber = sub
	t.closers = append(t.closers, sub.Close)

	logger.Info("NATS transport ready", watermill.LogFields{
		"url":      natsURL,
		"embedded": cfg.EmbeddedServer,
		"stream":   StreamName,
	})
	return t, nil
}

func connectOptions(logger watermill.LoggerAdapter) []natsgo.Option {
	return []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}
}

// listenAddr extracts the host and port of a nats:// URL.
func listenAddr(raw string) (string, int, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", 0, fmt.Errorf("parse NATS URL: %w", err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		return "", 0, fmt.Errorf("parse NATS URL host: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("parse NATS URL port: %w", err)
	}
	return host, port, nil
}
