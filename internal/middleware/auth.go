// internal/middleware/auth.go
package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/javajoker/mpnode/internal/utils"
)

const userKey = "api_user"

// BasicAuth guards the command API with one operator account. The password
// is checked against a bcrypt hash. An empty hash disables the check.
func BasicAuth(user, passwordHash string) gin.HandlerFunc {
	if passwordHash == "" {
		logrus.Warn("API password hash not configured, command API is unauthenticated")
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		name, password, ok := c.Request.BasicAuth()
		if !ok {
			c.Header("WWW-Authenticate", `Basic realm="marketplace"`)
			utils.UnauthorizedResponse(c, "")
			c.Abort()
			return
		}

		userOK := subtle.ConstantTimeCompare([]byte(name), []byte(user)) == 1
		passOK := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)) == nil
		if !userOK || !passOK {
			utils.UnauthorizedResponse(c, "Invalid credentials")
			c.Abort()
			return
		}

		c.Set(userKey, name)
		c.Next()
	}
}
