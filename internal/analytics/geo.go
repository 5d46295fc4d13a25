package analytics

import (
	"fmt"
	"net"
	"net/netip"
	"strings"

	"github.com/oschwald/geoip2-golang"
)

// Location labels used when no database answer is available
const (
	LocationLocal   = "Local"
	LocationUnknown = "Unknown"
)

// MaxMindResolver resolves locations from a MaxMind GeoIP2/GeoLite2 City
// database. Without a database every public address is Unknown.
type MaxMindResolver struct {
	db *geoip2.Reader
}

// NewGeoResolver opens the database at dbPath; an empty path yields a resolver
// that only distinguishes local addresses
func NewGeoResolver(dbPath string) (*MaxMindResolver, error) {
	if dbPath == "" {
		return &MaxMindResolver{}, nil
	}
	db, err := geoip2.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open geoip database: %w", err)
	}
	return &MaxMindResolver{db: db}, nil
}

// Lookup resolves ip to a country and city
func (g *MaxMindResolver) Lookup(ip string) Location {
	unknown := Location{Country: LocationUnknown, City: LocationUnknown}

	ip = strings.TrimSpace(ip)
	if ip == "" {
		return unknown
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return Location{Country: LocationLocal, City: LocationLocal}
	}
	addr = addr.Unmap()
	if addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast() || addr.IsUnspecified() {
		return Location{Country: LocationLocal, City: LocationLocal}
	}

	if g.db == nil {
		return unknown
	}

	record, err := g.db.City(net.IP(addr.AsSlice()))
	if err != nil {
		return unknown
	}

	loc := unknown
	if name := record.Country.Names["en"]; name != "" {
		loc.Country = name
	} else if record.Country.IsoCode != "" {
		loc.Country = record.Country.IsoCode
	}
	if name := record.City.Names["en"]; name != "" {
		loc.City = name
	}
	return loc
}

// Close closes the database
func (g *MaxMindResolver) Close() error {
	if g.db == nil {
		return nil
	}
	return g.db.Close()
}

// Ensure MaxMindResolver implements the interface
var _ GeoResolver = (*MaxMindResolver)(nil)
