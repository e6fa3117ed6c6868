package middleware

import (
	"net/http"
	"regexp"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Headers Slack sets on redeliveries of an event.
const (
	HeaderSlackRetryNum    = "X-Slack-Retry-Num"
	HeaderSlackRetryReason = "X-Slack-Retry-Reason"
)

const (
	ctxKeyRetryNum   = "slack.retry_num"
	ctxKeyRateBypass = "rate.bypass"
)

var retryReasonRE = regexp.MustCompile(`^[a-z_]{1,64}$`)

// RetryNum returns the redelivery number stashed by SlackRetry; 0 for a
// first delivery.
func RetryNum(c *gin.Context) int {
	v, _ := c.Get(ctxKeyRetryNum)
	n, _ := v.(int)
	return n
}

// SlackRetry validates Slack's retry headers and stashes the retry number.
// Redeliveries skip the rate limiter: the dedup record answers them without
// doing any work, and throttling them would only make Slack retry again.
func SlackRetry() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(HeaderSlackRetryNum)
		if raw == "" {
			c.Next()
			return
		}
		n, err := strconv.Atoi(raw)
		reason := c.GetHeader(HeaderSlackRetryReason)
		if err != nil || n < 1 || n > 10 || (reason != "" && !retryReasonRE.MatchString(reason)) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": RequestIDFrom(c),
				"code":       "bad_retry_header",
				"message":    "invalid " + HeaderSlackRetryNum,
			})
			return
		}
		c.Set(ctxKeyRetryNum, n)
		c.Set(ctxKeyRateBypass, true)
		c.Next()
	}
}
