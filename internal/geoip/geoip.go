// Package geoip resolves source addresses to coarse geolocation for alert
// enrichment. Lookups go to a JSON-over-HTTP endpoint, results are cached
// per address, and private ranges never leave the process.
package geoip

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/netip"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Location is the enrichment attached to a persisted alert.
type Location struct {
	Country     string  `json:"country"`
	CountryCode string  `json:"country_code"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	City        string  `json:"city,omitempty"`
	Region      string  `json:"region,omitempty"`
	Org         string  `json:"org,omitempty"`
}

var (
	privateLoc = Location{Country: "Private", CountryCode: "XX"}
	unknownLoc = Location{Country: "Unknown", CountryCode: "XX"}
)

// Resolver looks up and caches geolocation for remote addresses.
// It is safe for concurrent use.
type Resolver struct {
	endpoint string
	client   *http.Client
	logger   *logrus.Logger

	mu       sync.Mutex
	cache    map[string]Location
	maxCache int
	lastReq  time.Time
	minGap   time.Duration
}

// NewResolver returns a resolver querying the given endpoint, e.g.
// "https://ipapi.co". The lookup URL is endpoint + "/<ip>/json/".
func NewResolver(endpoint string, timeout time.Duration, maxCache int, logger *logrus.Logger) *Resolver {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if maxCache <= 0 {
		maxCache = 10000
	}
	return &Resolver{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
		cache:    make(map[string]Location),
		maxCache: maxCache,
		minGap:   100 * time.Millisecond,
	}
}

// Lookup resolves ip to a location. Private and loopback addresses
// short-circuit without a network round trip, cached addresses are served
// from memory, and any lookup failure degrades to an Unknown location.
func (r *Resolver) Lookup(ctx context.Context, ip string) Location {
	if isPrivate(ip) {
		return privateLoc
	}

	r.mu.Lock()
	if loc, ok := r.cache[ip]; ok {
		r.mu.Unlock()
		return loc
	}
	// Space out upstream requests; the public endpoint rate-limits.
	if wait := r.minGap - time.Since(r.lastReq); wait > 0 {
		time.Sleep(wait)
	}
	r.lastReq = time.Now()
	r.mu.Unlock()

	loc, err := r.fetch(ctx, ip)
	if err != nil {
		r.logger.Warnf("GeoIP lookup failed for %s: %v", ip, err)
		return unknownLoc
	}

	r.mu.Lock()
	if len(r.cache) >= r.maxCache {
		// Full cache: drop it rather than grow without bound.
		r.cache = make(map[string]Location)
	}
	r.cache[ip] = loc
	r.mu.Unlock()

	return loc
}

func (r *Resolver) fetch(ctx context.Context, ip string) (Location, error) {
	url := fmt.Sprintf("%s/%s/json/", r.endpoint, ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return unknownLoc, fmt.Errorf("build request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return unknownLoc, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return unknownLoc, fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}

	var body struct {
		CountryName string  `json:"country_name"`
		CountryCode string  `json:"country_code"`
		Latitude    float64 `json:"latitude"`
		Longitude   float64 `json:"longitude"`
		City        string  `json:"city"`
		Region      string  `json:"region"`
		Org         string  `json:"org"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return unknownLoc, fmt.Errorf("decode response: %w", err)
	}

	loc := Location{
		Country:     body.CountryName,
		CountryCode: body.CountryCode,
		Latitude:    body.Latitude,
		Longitude:   body.Longitude,
		City:        body.City,
		Region:      body.Region,
		Org:         body.Org,
	}
	if loc.Country == "" {
		loc.Country = "Unknown"
	}
	if loc.CountryCode == "" {
		loc.CountryCode = "XX"
	}
	return loc, nil
}

func isPrivate(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	return addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast()
}
