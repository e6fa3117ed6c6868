// Package handlers defines the error codes returned by the webhook and job
// endpoints. Clients (Slack ignores bodies, operators do not) branch on the
// code, not on the message.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "unrouted_event",
//	  "message": "no handler registered for event"
//	}
package handlers

const (
	ErrCodeBadRequest      = "bad_request"
	ErrCodeUnauthorized    = "unauthorized"
	ErrCodeNotFound        = "not_found"
	ErrCodePayloadTooLarge = "payload_too_large"
	ErrCodeRateLimited     = "too_many_requests"
	ErrCodeInternal        = "internal_error"

	// Domain-specific:
	ErrCodeUnroutedEvent    = "unrouted_event"
	ErrCodeHandlerFailed    = "handler_failed"
	ErrCodeDrainFailed      = "drain_failed"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
