// Package events validates, decodes, deduplicates and routes inbound Slack
// deliveries (Events API callbacks and interactivity payloads).
//
// A Dispatcher is built from an explicit Handlers map. Handle verifies the
// app's verification token, decodes the body into one typed Event, records
// the event's dedup key and only then runs the handler registered for the
// event's Kind. Recording before running means a handler that fails still
// leaves the event marked seen, so a redelivery never repeats side effects.
package events

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrDuplicateDelivery means the event was already seen in the retention window.
	ErrDuplicateDelivery = errors.New("duplicate delivery")

	// ErrVerification means the delivery's token does not match the app's.
	ErrVerification = errors.New("verification token mismatch")

	// ErrUnroutedEvent is raised by callers when Handle reports Performed == false.
	ErrUnroutedEvent = errors.New("no handler registered for event")
)

// Handler processes one event and may return a synchronous output.
type Handler func(ctx context.Context, ev Event) (any, error)

// Handlers maps a Kind to its handler.
type Handlers map[string]Handler

// Add registers h for kind. A later registration for the same kind replaces
// the earlier one.
func (hs Handlers) Add(kind string, h Handler) Handlers {
	if _, exists := hs[kind]; exists {
		log.Warn().Str("kind", kind).Msg("event handler replaced")
	}
	hs[kind] = h
	return hs
}

// Deduper records dedup keys. MarkSeen returns ErrDuplicateDelivery for a
// key already recorded and unexpired.
type Deduper interface {
	MarkSeen(ctx context.Context, key, kind string) error
}

// Result reports what Handle did.
type Result struct {
	Performed bool
	Output    any
}

// Challenge answers the URL verification handshake.
type Challenge struct {
	Challenge string `json:"challenge"`
}

// Dispatcher routes deliveries to Handlers.
type Dispatcher struct {
	token    string
	dedup    Deduper
	handlers Handlers
}

// NewDispatcher returns a Dispatcher for the app's verification token.
func NewDispatcher(token string, dedup Deduper, handlers Handlers) *Dispatcher {
	if handlers == nil {
		handlers = Handlers{}
	}
	return &Dispatcher{token: token, dedup: dedup, handlers: handlers}
}

// Handle dispatches one delivery. See the package doc for the order of steps.
func (d *Dispatcher) Handle(ctx context.Context, del Delivery) (Result, error) {
	tr := otel.Tracer("events/Dispatcher")
	ctx, span := tr.Start(ctx, "Handle")
	defer span.End()

	token, ev, err := Decode(del)
	if err != nil {
		if d.token == "" || !d.verify(token) {
			err = ErrVerification
		}
		deliveries.WithLabelValues("unknown", "rejected").Inc()
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	kind := ev.Kind()
	span.SetAttributes(attribute.String("slack.kind", kind))

	if !d.verify(token) {
		deliveries.WithLabelValues("unknown", "rejected").Inc()
		span.SetStatus(codes.Error, "verification failed")
		return Result{}, ErrVerification
	}

	if v, ok := ev.(URLVerification); ok {
		deliveries.WithLabelValues(kind, "handled").Inc()
		return Result{Performed: true, Output: Challenge{Challenge: v.Challenge}}, nil
	}

	key := ev.DedupKey()
	span.SetAttributes(attribute.String("slack.dedup_key", key))
	if key != "" {
		if err := d.dedup.MarkSeen(ctx, key, kind); err != nil {
			if errors.Is(err, ErrDuplicateDelivery) {
				deliveries.WithLabelValues(kind, "duplicate").Inc()
				span.AddEvent("duplicate", trace.WithAttributes(attribute.String("slack.dedup_key", key)))
				return Result{}, ErrDuplicateDelivery
			}
			deliveries.WithLabelValues(kind, "error").Inc()
			span.RecordError(err)
			return Result{}, err
		}
	}

	h, ok := d.handlers[kind]
	if !ok {
		deliveries.WithLabelValues(kind, "unrouted").Inc()
		return Result{Performed: false}, nil
	}

	out, err := h(ctx, ev)
	if err != nil {
		deliveries.WithLabelValues(kind, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "handler failed")
		return Result{Performed: true}, err
	}
	deliveries.WithLabelValues(kind, "handled").Inc()
	return Result{Performed: true, Output: out}, nil
}

func (d *Dispatcher) verify(token string) bool {
	return d.token != "" && subtle.ConstantTimeCompare([]byte(token), []byte(d.token)) == 1
}
