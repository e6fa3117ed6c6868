// Package services holds the bot's business logic: the Slack event handlers
// that run inside the webhook's time budget and the job consumers that do the
// slow work later. This file centralizes service-level error values.
package services

import "errors"

// ErrUnexpectedEvent is returned when a handler receives an event variant it
// was not registered for.
var ErrUnexpectedEvent = errors.New("unexpected event variant")
