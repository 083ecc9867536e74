package middleware

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func jwtSecret() []byte {
	return []byte(os.Getenv("JWT_SECRET"))
}

func parseToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("méthode de signature inattendue: %v", token.Header["alg"])
		}
		return jwtSecret(), nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("token invalide")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("claims invalides")
	}
	if exp, ok := claims["exp"].(float64); ok && time.Now().Unix() > int64(exp) {
		return nil, fmt.Errorf("token expiré")
	}
	if _, ok := claims["user_id"].(string); !ok {
		return nil, fmt.Errorf("user_id manquant")
	}
	return claims, nil
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

func setClaims(c *gin.Context, token string, claims jwt.MapClaims) {
	c.Set("user_id", claims["user_id"].(string))
	c.Set("token", token)
	if email, ok := claims["email"].(string); ok {
		c.Set("email", email)
	}
}

// AuthRequired protège les mutations : erreur AUTH_REQUIRED distincte
// d'un échec générique, jamais de retry silencieux côté client.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Connectez-vous pour continuer", "code": "AUTH_REQUIRED"})
			c.Abort()
			return
		}

		claims, err := parseToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Session expirée, reconnectez-vous", "code": "AUTH_REQUIRED"})
			c.Abort()
			return
		}

		setClaims(c, token, claims)
		c.Next()
	}
}

// AuthOptional laisse passer les invités : la lecture du panier rend un
// panier vide pour un anonyme, pas une erreur.
func AuthOptional() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			if claims, err := parseToken(token); err == nil {
				setClaims(c, token, claims)
			}
		}
		c.Next()
	}
}
