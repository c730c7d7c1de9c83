package middleware

import (
	"regexp"

	"github.com/labstack/echo/v4"
)

// parenKey matches the OData key-in-parentheses path spelling, e.g.
// /customers(5) or /customers(1)/addresses(3)/$ref.
var parenKey = regexp.MustCompile(`\((\d+)\)`)

// ODataPathMiddleware rewrites key-in-parentheses segments into plain path
// segments before routing, so /customers(5) and /customers/5 hit the same
// route. Must run as a pre-routing middleware.
func ODataPathMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		if parenKey.MatchString(req.URL.Path) {
			req.URL.Path = parenKey.ReplaceAllString(req.URL.Path, "/$1")
			// Echo routes on RawPath when one is set
			if req.URL.RawPath != "" {
				req.URL.RawPath = parenKey.ReplaceAllString(req.URL.RawPath, "/$1")
			}
		}
		return next(c)
	}
}
