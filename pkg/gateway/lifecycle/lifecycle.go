// Package lifecycle holds the draining flag shared between the
// readiness probe and the live websocket handler. While draining,
// /readyz reports not ready and new live connections are refused so a
// load balancer can move traffic before in-flight sessions are cut.
package lifecycle

import "sync/atomic"

type Lifecycle struct {
	draining atomic.Bool
}

// SetDraining flips the draining state. Safe on a nil receiver so
// handlers built without a lifecycle never gate on it.
func (l *Lifecycle) SetDraining(draining bool) {
	if l == nil {
		return
	}
	l.draining.Store(draining)
}

func (l *Lifecycle) IsDraining() bool {
	if l == nil {
		return false
	}
	return l.draining.Load()
}
