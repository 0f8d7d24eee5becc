package webhook

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/slackmirror/slackmirror/internal/tenant"
)

// Marker is the dedup gate. Implemented by dedupe.Deduper.
type Marker interface {
	CheckAndMark(eventID string) bool
}

// Sink receives accepted user-message events after the acknowledgment has
// been decided. Implementations must tolerate being called concurrently.
type Sink interface {
	Record(ctx context.Context, tn *tenant.Tenant, env Envelope)
}

// Ack is the JSON body returned for an accepted delivery.
type Ack struct {
	OK        bool   `json:"ok,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Challenge string `json:"challenge,omitempty"`
}

// Dispatcher runs the inbound gates in fixed order: handshake short-circuit,
// tenant resolution, signature verification, dedup, actor filter, then async
// side effects. Verification always precedes dedup marking so forged
// payloads cannot poison dedup state.
type Dispatcher struct {
	registry *tenant.Registry
	verifier SignatureVerifier
	deduper  Marker
	sink     Sink
	logger   *slog.Logger

	wg sync.WaitGroup
}

// NewDispatcher wires the gates together.
func NewDispatcher(registry *tenant.Registry, verifier SignatureVerifier, deduper Marker, sink Sink, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry: registry,
		verifier: verifier,
		deduper:  deduper,
		sink:     sink,
		logger:   logger,
	}
}

// Dispatch processes one raw delivery. The returned Ack is only meaningful
// when err is nil; errors are typed for the HTTP boundary to map.
func (d *Dispatcher) Dispatch(ctx context.Context, body []byte, header http.Header) (Ack, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Ack{}, ErrMalformedPayload
	}

	// Protocol-level handshake, not a business event: echo and stop.
	if env.Type == TypeURLVerification {
		return Ack{Challenge: env.Challenge}, nil
	}

	// Tenant resolution fails closed before any cryptographic work.
	tn, err := d.registry.ByTeam(env.TeamID)
	if err != nil {
		return Ack{}, err
	}
	if err := d.verifier.Verify(env.TeamID, body, header); err != nil {
		return Ack{}, err
	}

	// Duplicates are acknowledged so the sender stops retrying, with no
	// further processing.
	if d.deduper.CheckAndMark(env.EventID) {
		return Ack{OK: true, Duplicate: true}, nil
	}

	if env.Event.IsUserMessage() {
		d.record(tn, env)
	}
	return Ack{OK: true}, nil
}

// record hands the event to the sink without delaying the acknowledgment.
// Sink faults are logged and swallowed; the response has already been
// decided.
func (d *Dispatcher) record(tn *tenant.Tenant, env Envelope) {
	if d.sink == nil {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("event sink panicked", "event_id", env.EventID, "panic", r)
			}
		}()
		d.sink.Record(context.Background(), tn, env)
	}()
}

// Wait blocks until in-flight sink work finishes. Used during shutdown and
// by tests.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
