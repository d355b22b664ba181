package agent

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimit rejects requests beyond a token bucket of rps sustained and
// burst peak with 429 Too Many Requests. The bucket is shared by all
// clients: the agent drives a single NameNode.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return func(c *gin.Context) {
		r := limiter.Reserve()
		if delay := r.Delay(); delay > 0 {
			r.Cancel()
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
			respondError(c, http.StatusTooManyRequests, "rate_limit_exceeded", "Too many action requests, retry later")
			c.Abort()
			return
		}
		c.Next()
	}
}
