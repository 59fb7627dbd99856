package httpmw

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/agentforge/controlplane/internal/apperr"
	"github.com/agentforge/controlplane/internal/serviceauth"
)

// RequireServiceToken protects the backend's internal surface (claim,
// start, fail, callback) with the bearer token minted by the executor
// manager's serviceauth.Issuer.
func RequireServiceToken(verifier *serviceauth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			Fail(c, apperr.Unauthorized("missing service token"))
			c.Abort()
			return
		}

		if err := verifier.Verify(token); err != nil {
			Fail(c, apperr.Unauthorized("invalid service token"))
			c.Abort()
			return
		}

		c.Next()
	}
}
