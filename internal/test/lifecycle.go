package test

import (
	"go.uber.org/fx"
)

// LifecycleRecorder collects the hooks a component registers so tests
// can invoke OnStart and OnStop directly.
type LifecycleRecorder struct {
	Hooks []fx.Hook
}

// Append records the hook instead of scheduling it.
func (l *LifecycleRecorder) Append(h fx.Hook) {
	l.Hooks = append(l.Hooks, h)
}

// ShutdownerStub signals on Called when a component requests shutdown.
type ShutdownerStub struct {
	Called chan struct{}
}

// Shutdown performs a non-blocking send so repeated calls never hang.
func (s *ShutdownerStub) Shutdown(...fx.ShutdownOption) error {
	if s.Called != nil {
		select {
		case s.Called <- struct{}{}:
		default:
		}
	}
	return nil
}
