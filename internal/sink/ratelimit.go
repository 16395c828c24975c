package sink

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// ingestLimit returns a per-client token bucket guard for the ingest
// route. Generators that outrun the receiver get 429s instead of stalling
// every other endpoint.
func ingestLimit(rps float64) gin.HandlerFunc {
	burst := int(rps * 2)
	if burst < 1 {
		burst = 1
	}

	var (
		mu       sync.Mutex
		limiters = make(map[string]*rate.Limiter)
	)
	return func(c *gin.Context) {
		ip := c.ClientIP()

		mu.Lock()
		lim, ok := limiters[ip]
		if !ok {
			lim = rate.NewLimiter(rate.Limit(rps), burst)
			limiters[ip] = lim
		}
		mu.Unlock()

		if !lim.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "ingest rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
