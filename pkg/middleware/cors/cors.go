package cors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	allowHeaders  = "Authorization, Content-Type, X-Requested-With, X-Request-ID, X-Store-ID"
	allowMethods  = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	exposeHeaders = "X-Request-ID, Content-Disposition"
	maxAge        = "600"
)

// New returns a CORS middleware for the web client origins. An empty list allows any origin.
// Allowed origins are echoed back so credentialed requests keep working under the wildcard policy.
func New(allowedOrigins []string) gin.HandlerFunc {
	policy := newPolicy(allowedOrigins)

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		h := c.Writer.Header()
		h.Add("Vary", "Origin")

		if origin == "" {
			c.Next()
			return
		}

		allowed := policy.allows(origin)
		if allowed {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Expose-Headers", exposeHeaders)
		}

		if c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != "" {
			if !allowed {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			h.Set("Access-Control-Allow-Headers", allowHeaders)
			h.Set("Access-Control-Allow-Methods", allowMethods)
			h.Set("Access-Control-Max-Age", maxAge)
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

type policy struct {
	any     bool
	origins map[string]struct{}
}

func newPolicy(allowed []string) policy {
	p := policy{origins: make(map[string]struct{}, len(allowed))}
	for _, origin := range allowed {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "*" {
			p.any = true
			continue
		}
		if origin != "" {
			p.origins[strings.ToLower(origin)] = struct{}{}
		}
	}
	if len(p.origins) == 0 {
		p.any = true
	}
	return p
}

func (p policy) allows(origin string) bool {
	if p.any {
		return true
	}
	_, ok := p.origins[strings.ToLower(strings.TrimRight(origin, "/"))]
	return ok
}
