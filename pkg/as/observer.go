package as

import "time"

// PoolObserver, CommandObserver and TendObserver are the hook points the
// ambient metrics stack attaches to, in the shape of the teacher's plugin
// hooks (kprom registers into kgo.Client's metrics.Hook* callbacks). The
// core calls these unconditionally; the default no-op implementations make
// that free when no metrics reporter is wired in.
type PoolObserver interface {
	OnConnOpened(node string)
	OnConnClosed(node string, cause string)
	OnPoolSize(node string, size, totalOpen int)
}

type CommandObserver interface {
	OnCommandComplete(kind string, d time.Duration, err error)
	OnCommandRetry(kind string, iteration int)
}

type TendObserver interface {
	OnTendComplete(d time.Duration, nodeCount int, err error)
}

type noopPoolObserver struct{}

func (noopPoolObserver) OnConnOpened(string)              {}
func (noopPoolObserver) OnConnClosed(string, string)      {}
func (noopPoolObserver) OnPoolSize(string, int, int)      {}

type noopCommandObserver struct{}

func (noopCommandObserver) OnCommandComplete(string, time.Duration, error) {}
func (noopCommandObserver) OnCommandRetry(string, int)                     {}

type noopTendObserver struct{}

func (noopTendObserver) OnTendComplete(time.Duration, int, error) {}
