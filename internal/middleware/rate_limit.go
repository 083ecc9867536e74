package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"velora_back_end/internal/database"

	"github.com/gin-gonic/gin"
)

const (
	// Un checkout par seconde et par utilisateur suffit largement ;
	// au-delà c'est un double-clic ou un script.
	CheckoutMaxAttempts = 5
	CheckoutWindow      = 1 * time.Minute

	CartMaxRequests = 60
	CartWindow      = 1 * time.Minute
)

func rateLimit(keyPrefix string, max int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			userID = c.ClientIP()
		}

		ctx := context.Background()
		key := keyPrefix + ":" + userID

		pipe := database.Redis.Pipeline()
		incr := pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, window)
		if _, err := pipe.Exec(ctx); err != nil {
			// Redis indisponible : on laisse passer plutôt que de bloquer la boutique.
			c.Next()
			return
		}

		if incr.Val() > int64(max) {
			ttl := database.Redis.TTL(ctx, key).Val()
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       fmt.Sprintf("Trop de requêtes, réessayez dans %d secondes", int(ttl.Seconds())),
				"code":        "RATE_LIMITED",
				"retry_after": int(ttl.Seconds()),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// CheckoutRateLimit limite les ouvertures de session de paiement.
func CheckoutRateLimit() gin.HandlerFunc {
	return rateLimit("checkout_attempts", CheckoutMaxAttempts, CheckoutWindow)
}

// CartRateLimit limite les mutations de panier.
func CartRateLimit() gin.HandlerFunc {
	return rateLimit("cart_requests", CartMaxRequests, CartWindow)
}
