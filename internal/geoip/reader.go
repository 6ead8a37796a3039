package geoip

import (
	"net"

	"github.com/oschwald/geoip2-golang"
)

// Provider resolves registrant addresses to ISO country codes.
// A nil Provider is valid and resolves nothing.
type Provider struct {
	db *geoip2.Reader
}

// Open initializes the GeoIP database reader from a specific file path.
func Open(path string) (*Provider, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}

	return &Provider{db: db}, nil
}

// Close closes the underlying GeoIP database reader.
func (p *Provider) Close() error {
	if p == nil {
		return nil
	}

	return p.db.Close()
}

// CountryCode returns the ISO country code (e.g. "US", "DE") for ip, or an
// empty string for private, invalid or unknown addresses.
func (p *Provider) CountryCode(ip string) string {
	if p == nil {
		return ""
	}

	parsed := net.ParseIP(ip)
	if parsed == nil || parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() {
		return ""
	}

	record, err := p.db.Country(parsed)
	if err != nil {
		return ""
	}

	return record.Country.IsoCode
}
