package layer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NATS 使用核心 NATS 的 subject 转发组广播。组名中不含 "."，可直接作为 subject 的最后一段。
type NATS struct {
	nc      *nats.Conn
	prefix  string
	deliver DeliverFunc
}

func NewNATS(url, prefix string, deliver DeliverFunc) (*NATS, error) {
	nc, err := nats.Connect(url,
		nats.Name("rentchat"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}
	log.Info().Str("url", url).Str("prefix", prefix).Msg("channel layer: nats connected")
	return &NATS{nc: nc, prefix: prefix, deliver: deliver}, nil
}

func (n *NATS) Publish(_ context.Context, group string, payload []byte) error {
	if err := n.nc.Publish(n.prefix+group, payload); err != nil {
		return fmt.Errorf("nats publish %s: %w", group, err)
	}
	return nil
}

// Run 订阅 prefix.> ；同一订阅的回调串行执行，保持到达顺序。
func (n *NATS) Run(ctx context.Context) error {
	sub, err := n.nc.Subscribe(n.prefix+">", func(msg *nats.Msg) {
		n.deliver(strings.TrimPrefix(msg.Subject, n.prefix), msg.Data)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	defer func() { _ = sub.Unsubscribe() }()
	if err := n.nc.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}
	<-ctx.Done()
	return nil
}

func (n *NATS) Close() error {
	if err := n.nc.Drain(); err != nil {
		n.nc.Close()
		return err
	}
	return nil
}
