package webhook

import (
	"context"

	"github.com/slackmirror/slackmirror/internal/tenant"
)

// Fanout delivers one event to several sinks in order.
type Fanout []Sink

// Record implements Sink.
func (f Fanout) Record(ctx context.Context, tn *tenant.Tenant, env Envelope) {
	for _, s := range f {
		s.Record(ctx, tn, env)
	}
}
