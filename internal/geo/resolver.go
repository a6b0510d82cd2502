// Package geo maps client IP addresses to two-letter country codes.
package geo

import (
	"log/slog"
	"net"
	"strings"

	"github.com/TomasB/isitchristmas/internal/data"
)

// FallbackCountry is returned for every address that cannot be resolved:
// malformed input, private or loopback ranges, a missing database, or a
// lookup miss.
const FallbackCountry = "GB"

// Resolver turns an IP address string into a country code. It never fails:
// every input maps to some two-letter code. Safe for concurrent use; the
// underlying database handle is read-only after construction.
type Resolver struct {
	lookup data.CountryLookup
}

// NewResolver creates a Resolver backed by the given lookup. A nil lookup is
// valid and means no geolocation database is available; every address then
// resolves to FallbackCountry.
func NewResolver(lookup data.CountryLookup) *Resolver {
	return &Resolver{lookup: lookup}
}

// Resolve returns the two-letter country code for the given IP address
// string. The decision is an ordered chain where each step short-circuits to
// FallbackCountry: unparseable input, private/loopback address, no database,
// lookup error, empty lookup result.
func (r *Resolver) Resolve(ipAddress string) string {
	ip := net.ParseIP(strings.TrimSpace(ipAddress))
	if ip == nil {
		return FallbackCountry
	}

	// Local and private traffic has no meaningful geolocation; internal
	// addressing must not reach the database lookup.
	if ip.IsPrivate() || ip.IsLoopback() {
		return FallbackCountry
	}

	if r.lookup == nil {
		return FallbackCountry
	}

	country, err := r.lookup.LookupCountry(ip)
	if err != nil {
		slog.Warn("geolocation lookup failed", "ip", ipAddress, "error", err)
		return FallbackCountry
	}
	if country == "" {
		return FallbackCountry
	}

	return country
}
