package notify

import (
	"context"
	"sync/atomic"
)

// PermissionGate answers whether the host environment allows notifications.
// When permission is absent, scheduling is skipped, not retried; the
// presentation layer is responsible for surfacing that to the user.
type PermissionGate interface {
	HasPermission(ctx context.Context) bool
	RequestPermission(ctx context.Context) bool
}

// StaticGate is a gate with a fixed grant decision, flipped only by an
// explicit RequestPermission. Covers headless deployments where permission is
// a config switch rather than an OS prompt.
type StaticGate struct {
	granted atomic.Bool
}

// NewStaticGate creates a gate with the given initial grant.
func NewStaticGate(granted bool) *StaticGate {
	g := &StaticGate{}
	g.granted.Store(granted)
	return g
}

// HasPermission implements PermissionGate.HasPermission
func (g *StaticGate) HasPermission(ctx context.Context) bool {
	return g.granted.Load()
}

// RequestPermission implements PermissionGate.RequestPermission
func (g *StaticGate) RequestPermission(ctx context.Context) bool {
	g.granted.Store(true)
	return true
}

var _ PermissionGate = (*StaticGate)(nil)
