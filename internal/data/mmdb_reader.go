package data

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"

	"github.com/oschwald/geoip2-golang"
)

// ErrNoDatabase is returned by OpenFirst when none of the candidate paths
// holds a loadable MMDB file. The service keeps running without one; every
// lookup then falls back to the default country.
var ErrNoDatabase = errors.New("no geolocation database found")

// DefaultDatabasePaths is the ordered list of locations checked for the
// GeoLite2 country database. The first existing, loadable file wins.
var DefaultDatabasePaths = []string{
	`C:\ProgramData\MaxMind\GeoIPUpdate\GeoIP\GeoLite2-Country.mmdb`,
	"GeoLite2-Country.mmdb",
	"/usr/share/GeoIP/GeoLite2-Country.mmdb",
}

// MmdbReader implements CountryLookup using a MaxMind MMDB file.
type MmdbReader struct {
	db   *geoip2.Reader
	path string
}

// NewMmdbReader opens the MMDB file at the given path and returns a reader.
func NewMmdbReader(path string) (*MmdbReader, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open MMDB file: %w", err)
	}
	return &MmdbReader{db: db, path: path}, nil
}

// OpenFirst tries each candidate path in order and returns a reader for the
// first one that exists and loads. Paths that do not exist are skipped
// silently; paths that exist but fail to load are logged and skipped. If no
// candidate loads, ErrNoDatabase is returned and the caller is expected to
// keep running in degraded mode rather than fail.
func OpenFirst(paths []string) (*MmdbReader, error) {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		reader, err := NewMmdbReader(path)
		if err != nil {
			slog.Warn("failed to load geolocation database", "path", path, "error", err)
			continue
		}
		return reader, nil
	}
	return nil, ErrNoDatabase
}

// Path returns the filesystem path the reader was loaded from.
func (r *MmdbReader) Path() string {
	return r.path
}

// LookupCountry returns the ISO-3166 country code for the given IP address.
func (r *MmdbReader) LookupCountry(ip net.IP) (string, error) {
	record, err := r.db.Country(ip)
	if err != nil {
		return "", fmt.Errorf("country lookup failed: %w", err)
	}
	return record.Country.IsoCode, nil
}

// Close releases the MMDB reader resources.
func (r *MmdbReader) Close() error {
	return r.db.Close()
}
