package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/sirupsen/logrus"
)

// HTTPGeoResolver resolves addresses through an ip-api.com style JSON
// endpoint, with an in-process cache so repeated validations of the same
// address do not hit the network.
type HTTPGeoResolver struct {
	endpoint string
	client   *http.Client
	cache    *bigcache.BigCache
	logger   logrus.FieldLogger
}

type geoAPIResponse struct {
	Status      string `json:"status"`
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
	City        string `json:"city"`
}

func NewHTTPGeoResolver(endpoint string, logger logrus.FieldLogger) (*HTTPGeoResolver, error) {
	cache, err := bigcache.New(context.Background(), bigcache.DefaultConfig(time.Hour))
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &HTTPGeoResolver{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: 5 * time.Second},
		cache:    cache,
		logger:   logger,
	}, nil
}

// Resolve returns a coarse location for the address, or (nil, nil) when the
// address is private, malformed, or unresolvable.
func (r *HTTPGeoResolver) Resolve(ctx context.Context, ipAddress string) (*GeoLocation, error) {
	parsed := net.ParseIP(strings.TrimSpace(ipAddress))
	if parsed == nil || parsed.IsPrivate() || parsed.IsLoopback() || parsed.IsUnspecified() {
		return nil, nil
	}
	key := parsed.String()

	if cached, err := r.cache.Get(key); err == nil {
		var location GeoLocation
		if err := json.Unmarshal(cached, &location); err == nil {
			if location.Country == "" {
				return nil, nil
			}
			return &location, nil
		}
	}

	url := fmt.Sprintf("%s/json/%s?fields=status,country,countryCode,city", r.endpoint, key)
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	response, err := r.client.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geo lookup failed with status %d", response.StatusCode)
	}

	var payload geoAPIResponse
	if err := json.NewDecoder(response.Body).Decode(&payload); err != nil {
		return nil, err
	}

	location := GeoLocation{City: payload.City}
	if payload.CountryCode != "" {
		location.Country = payload.CountryCode
	} else {
		location.Country = payload.Country
	}
	if payload.Status != "success" {
		location = GeoLocation{}
	}

	if data, err := json.Marshal(location); err == nil {
		if err := r.cache.Set(key, data); err != nil {
			r.logger.WithError(err).Debug("geo cache set failed")
		}
	}

	if location.Country == "" {
		return nil, nil
	}
	return &location, nil
}
