package screenshot

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CountryResolver maps a client IP address string to a two-letter country
// code. It never fails; unresolvable addresses map to a fallback code.
type CountryResolver interface {
	Resolve(ipAddress string) string
}

// Capturer produces a PNG screenshot of the target site for a country code.
type Capturer interface {
	Capture(ctx context.Context, countryCode string) ([]byte, error)
}

// Handler serves the screenshot endpoint.
type Handler struct {
	resolver CountryResolver
	capturer Capturer
}

// NewHandler creates a screenshot handler with the given resolver and capturer.
func NewHandler(resolver CountryResolver, capturer Capturer) *Handler {
	return &Handler{resolver: resolver, capturer: capturer}
}

// Screenshot handles GET /screenshot. An explicit ?country= parameter is
// uppercased and used verbatim; otherwise the country is derived from the
// client's IP address.
func (h *Handler) Screenshot(c *gin.Context) {
	country := c.Query("country")
	if country == "" {
		ip := clientIP(c.Request)
		country = h.resolver.Resolve(ip)
		slog.Info("resolved country from client address", "ip", ip, "country", country)
	} else {
		country = strings.ToUpper(country)
		slog.Info("using provided country", "country", country)
	}

	// Once a capture starts it runs to completion even if the client
	// disconnects; the browser session is not abortable mid-flight.
	png, err := h.capturer.Capture(context.WithoutCancel(c.Request.Context()), country)
	if err != nil {
		slog.Error("screenshot capture failed", "country", country, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "screenshot capture failed"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=isitchristmas-%s.png", country))
	c.Data(http.StatusOK, "image/png", png)
}

// clientIP extracts the requesting client's address: the first entry of
// X-Forwarded-For, then the transport-level peer, then a loopback literal.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "127.0.0.1"
}
