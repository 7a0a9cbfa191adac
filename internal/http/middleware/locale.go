package middleware

import (
	"github.com/gin-gonic/gin"

	"empathos.app/relay/internal/locale"
)

const langKey = "lang"

// Locale resolves the operator's language from ?lang= or Accept-Language.
func Locale(catalog *locale.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(langKey, catalog.Negotiate(c.Query("lang"), c.GetHeader("Accept-Language")))
		c.Next()
	}
}

// Lang returns the language chosen by Locale, or the default.
func Lang(c *gin.Context) string {
	if lang := c.GetString(langKey); lang != "" {
		return lang
	}
	return locale.DefaultLang
}
