// Slack webhook handler.
//
// POST /slack/events receives both Events API callbacks (JSON) and
// interactivity payloads (form encoded). Slack only cares about the status:
// anything but 2xx within three seconds is redelivered, so everything slow
// has already been pushed to the job queue by the time we answer.
package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-slack-bot/internal/events"
	"github.com/tbourn/go-slack-bot/internal/http/middleware"
	"github.com/tbourn/go-slack-bot/internal/jobs"
	"github.com/tbourn/go-slack-bot/internal/services"
)

// SlackEvents answers one delivery:
//   - duplicate: 200, empty body
//   - bad token: 401
//   - not a Slack delivery: 400
//   - no handler for the event: 500
//   - handler error: async_logging job, then 500
//   - otherwise the handler output as JSON, or 200 with no body
//
// SlackEvents godoc
// @ID          slackEvents
// @Summary     Slack Events API and interactivity webhook
// @Description Accepts event callbacks (JSON), URL verification challenges and block_actions payloads (form encoded).
// @Description Redeliveries of an already seen event are acknowledged without running the handler again.
// @Tags        Slack
// @Accept      json
// @Accept      x-www-form-urlencoded
// @Produce     json
// @Param       X-Slack-Signature          header  string  false  "v0 HMAC signature, required when a signing secret is configured"
// @Param       X-Slack-Request-Timestamp  header  string  false  "Unix seconds the signature was computed at"
// @Param       X-Slack-Retry-Num          header  int     false  "Redelivery number"  minimum(1) maximum(10)
// @Success     200  {object}  events.Challenge        "Challenge echo, handler output, or empty ack"
// @Failure     400  {object}  handlers.ErrorResponse  "Malformed delivery"
// @Failure     401  {object}  handlers.ErrorResponse  "Verification failed"
// @Failure     413  {object}  handlers.ErrorResponse  "Body too large"
// @Failure     500  {object}  handlers.ErrorResponse  "Handler failed or event unrouted"
// @Router      /slack/events [post]
func (h *Handlers) SlackEvents(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "body too large")
			return
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable body")
		return
	}

	res, err := h.dispatcher.Handle(c.Request.Context(), events.Delivery{
		Body:        body,
		ContentType: c.GetHeader("Content-Type"),
	})
	switch {
	case errors.Is(err, events.ErrDuplicateDelivery):
		ack(c)
		return
	case errors.Is(err, events.ErrVerification):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "verification failed")
		return
	case errors.Is(err, events.ErrMalformedDelivery):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "malformed delivery")
		return
	case err != nil:
		h.logFailure(c, err)
		fail(c, http.StatusInternalServerError, ErrCodeHandlerFailed, "event handler failed")
		return
	}

	if !res.Performed {
		fail(c, http.StatusInternalServerError, ErrCodeUnroutedEvent, events.ErrUnroutedEvent.Error())
		return
	}
	if res.Output == nil {
		ack(c)
		return
	}
	ok(c, http.StatusOK, res.Output)
}

// logFailure queues the error for the async_logging consumer. Queueing
// problems are logged here; the 500 goes out either way.
func (h *Handlers) logFailure(c *gin.Context, cause error) {
	lg := middleware.LoggerFrom(c)
	if h.enqueuer == nil {
		lg.Error().Err(cause).Msg("event handler failed")
		return
	}
	err := h.enqueuer.Enqueue(c.Request.Context(), jobs.AsyncLogging, services.AsyncLogPayload{
		Kind:    "handler_error",
		Message: cause.Error(),
	})
	if err != nil {
		lg.Error().Err(err).AnErr("cause", cause).Msg("enqueue async log failed")
	}
}
