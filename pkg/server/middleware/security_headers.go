package middleware

import (
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
)

const defaultContentSecurityPolicy = "default-src 'none'; frame-ancestors 'none'; base-uri 'none'; form-action 'none';"

// SecurityHeaders adds common security headers to the response. An empty csp selects a policy
// that denies everything, which suits a JSON only API.
func SecurityHeaders(csp string) gin.HandlerFunc {
	if csp == "" {
		csp = defaultContentSecurityPolicy
	}

	headers := secure.New(secure.Config{
		STSSeconds:            31536000,
		STSIncludeSubdomains:  true,
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		IENoOpen:              true,
		ContentSecurityPolicy: csp,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	})

	return func(c *gin.Context) {
		// no browser features are needed to read JSON
		c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
		headers(c)
	}
}
