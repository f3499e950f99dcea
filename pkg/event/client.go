package event

import (
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

// NormalizeLanguage reduces a language tag to its base code ("en-US" -> "en").
// Tags whose base cannot be determined with certainty yield "".
func NormalizeLanguage(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ""
	}

	t, err := language.Parse(tag)
	if err != nil {
		return ""
	}

	base, confidence := t.Base()
	if confidence != language.Exact {
		return ""
	}
	return base.String()
}

// ClientFromHeaders builds a client context from request headers, for hosts
// that track on behalf of an incoming HTTP request.
func ClientFromHeaders(h http.Header) ClientContext {
	c := ClientContext{
		UserAgent: h.Get("User-Agent"),
	}

	if tags, _, err := language.ParseAcceptLanguage(h.Get("Accept-Language")); err == nil && len(tags) > 0 {
		c.Language = NormalizeLanguage(tags[0].String())
	}

	width := h.Get("Sec-CH-Viewport-Width")
	height := h.Get("Sec-CH-Viewport-Height")
	if width != "" && height != "" {
		c.Screen = width + "x" + height
	}

	return c
}
