package maps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/stockroute-backend/pkg/errors"
	"github.com/angelmondragon/stockroute-backend/pkg/types"
)

const (
	defaultBaseURL             = "https://maps.googleapis.com/maps/api"
	defaultCountry             = "IN"
	requestBodyReadLimit int64 = 1024
	statusOK                   = "OK"
	statusZeroResults          = "ZERO_RESULTS"
)

var (
	errAPIKeyRequired = errors.New("google maps api key is required")
	// ErrNoResults is returned when the pincode is unknown to the geocoder.
	ErrNoResults = errors.New("geocoder returned no results")
)

// Client resolves postal codes to coordinates via the Google Geocoding API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	country    string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured Maps base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithCountry restricts lookups to an ISO country code.
func WithCountry(code string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(code); trimmed != "" {
			c.country = strings.ToUpper(trimmed)
		}
	}
}

// NewClient builds the geocoding client given an API key.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(apiKey)
	if trimmedKey == "" {
		return nil, errAPIKeyRequired
	}

	client := &Client{
		apiKey:     trimmedKey,
		baseURL:    defaultBaseURL,
		country:    defaultCountry,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

// GeocodePincode returns the centroid of the given postal code.
func (c *Client) GeocodePincode(ctx context.Context, pincode string) (types.LatLng, error) {
	if c == nil {
		return types.LatLng{}, pkgerrors.New(pkgerrors.CodeDependency, "google maps client not configured")
	}
	trimmed := strings.TrimSpace(pincode)
	if trimmed == "" {
		return types.LatLng{}, pkgerrors.New(pkgerrors.CodeValidation, "pincode is required")
	}

	query := url.Values{}
	query.Set("components", fmt.Sprintf("postal_code:%s|country:%s", trimmed, c.country))
	query.Set("key", c.apiKey)
	endpoint := fmt.Sprintf("%s/geocode/json?%s", strings.TrimRight(c.baseURL, "/"), query.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return types.LatLng{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build geocode request")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return types.LatLng{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute geocode request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
		return types.LatLng{}, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "geocode request failed")
	}

	var apiResp struct {
		Status  string `json:"status"`
		Error   string `json:"error_message"`
		Results []struct {
			Geometry struct {
				Location struct {
					Lat float64 `json:"lat"`
					Lng float64 `json:"lng"`
				} `json:"location"`
			} `json:"geometry"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return types.LatLng{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode geocode response")
	}

	switch apiResp.Status {
	case statusOK:
	case statusZeroResults:
		return types.LatLng{}, ErrNoResults
	default:
		return types.LatLng{}, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %s: %s", apiResp.Status, apiResp.Error), "geocode request rejected")
	}
	if len(apiResp.Results) == 0 {
		return types.LatLng{}, ErrNoResults
	}

	loc := apiResp.Results[0].Geometry.Location
	return types.LatLng{Lat: loc.Lat, Lng: loc.Lng}, nil
}
