package layer

import (
	"context"
	"sync/atomic"
)

// Memory 是单实例通道层，Publish 直接同步投递到本地注册表。
type Memory struct {
	deliver DeliverFunc
	closed  atomic.Bool
}

func NewMemory(deliver DeliverFunc) *Memory {
	return &Memory{deliver: deliver}
}

func (m *Memory) Publish(_ context.Context, group string, payload []byte) error {
	if m.closed.Load() {
		return ErrClosed
	}
	m.deliver(group, payload)
	return nil
}

func (m *Memory) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (m *Memory) Close() error {
	m.closed.Store(true)
	return nil
}
