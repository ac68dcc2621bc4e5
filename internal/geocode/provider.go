// Package geocode resolves free-text addresses to coordinates through a
// persistent cache in front of an external provider.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// ErrNoResult is returned when the provider finds no match for an address.
var ErrNoResult = errors.New("geocode: no result")

// MapboxProviderName is the provider name recorded on cache entries.
const MapboxProviderName = "mapbox"

// defaultBaseURL is the Mapbox forward-geocoding endpoint.
const defaultBaseURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"

// defaultCountry is the country hint sent with every lookup.
const defaultCountry = "us"

// providerLimit caps the candidate list; only the top result is used.
const providerLimit = 5

// ProviderResult is the top candidate returned by a provider lookup.
type ProviderResult struct {
	Latitude         float64
	Longitude        float64
	FormattedAddress string
	// Relevance is the provider's match score in [0, 1].
	Relevance float64
}

// Provider performs forward geocoding of a free-text address.
type Provider interface {
	Geocode(ctx context.Context, address string) (*ProviderResult, error)
}

// MapboxProvider implements Provider against the Mapbox geocoding API.
type MapboxProvider struct {
	client  *http.Client
	token   string
	baseURL string
	country string
}

// NewMapboxProvider creates a provider using the given access token.
func NewMapboxProvider(client *http.Client, token string) *MapboxProvider {
	return &MapboxProvider{
		client:  client,
		token:   token,
		baseURL: defaultBaseURL,
		country: defaultCountry,
	}
}

// WithBaseURL overrides the API endpoint. Used by tests.
func (p *MapboxProvider) WithBaseURL(baseURL string) *MapboxProvider {
	p.baseURL = baseURL
	return p
}

// mapboxResponse is the subset of the Mapbox geocoding payload the pipeline
// reads. Center is [longitude, latitude].
type mapboxResponse struct {
	Features []struct {
		PlaceName string    `json:"place_name"`
		Relevance float64   `json:"relevance"`
		Center    []float64 `json:"center"`
	} `json:"features"`
}

// Geocode looks up an address and returns the top-ranked candidate.
// The provider returns candidates ordered by relevance; taking the first is
// the documented tie-break policy.
func (p *MapboxProvider) Geocode(ctx context.Context, address string) (*ProviderResult, error) {
	endpoint := fmt.Sprintf("%s/%s.json", p.baseURL, url.PathEscape(address))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("geocode request: %w", err)
	}

	query := req.URL.Query()
	query.Set("access_token", p.token)
	query.Set("country", p.country)
	query.Set("limit", strconv.Itoa(providerLimit))
	req.URL.RawQuery = query.Encode()

	resp, doErr := p.client.Do(req)
	if doErr != nil {
		return nil, fmt.Errorf("geocode fetch: %w", doErr)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocode fetch: unexpected status %d", resp.StatusCode)
	}

	var payload mapboxResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&payload); decodeErr != nil {
		return nil, fmt.Errorf("geocode decode: %w", decodeErr)
	}

	if len(payload.Features) == 0 {
		return nil, ErrNoResult
	}

	top := payload.Features[0]
	if len(top.Center) < 2 {
		return nil, fmt.Errorf("geocode decode: malformed center for %q", top.PlaceName)
	}

	return &ProviderResult{
		Latitude:         top.Center[1],
		Longitude:        top.Center[0],
		FormattedAddress: top.PlaceName,
		Relevance:        top.Relevance,
	}, nil
}
