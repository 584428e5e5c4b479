// Package propertydata looks up property facts and rent estimates from a
// third-party data provider and extracts listing details from listing pages.
package propertydata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/ajharbinger/rei-deal-drop/internal/errors"
)

const (
	defaultTimeout = 15 * time.Second
	userAgent      = "rei-deal-drop/1.0"
	maxErrorBody   = 512
	maxRedirects   = 10
)

// PropertyFacts describes a property as reported by the provider
type PropertyFacts struct {
	Address       string  `json:"address"`
	SquareFeet    float64 `json:"square_feet"`
	Bedrooms      float64 `json:"bedrooms"`
	Bathrooms     float64 `json:"bathrooms"`
	HasPool       bool    `json:"has_pool"`
	YearBuilt     int     `json:"year_built"`
	LastSalePrice float64 `json:"last_sale_price"`
}

// RentEstimate is a long-term rent estimate with its confidence range
type RentEstimate struct {
	Rent float64 `json:"rent"`
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Client handles requests to the property data provider with rate limiting
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	limiter    *rate.Limiter
	health     *HealthMonitor

	// hosts FetchListing may contact; empty refuses every listing
	listingHosts []string
}

type listingFetchKey struct{}

// NewClient creates a provider client allowing requestsPerSecond outbound calls
func NewClient(endpoint, apiKey string, requestsPerSecond int) *Client {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	c := &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		limiter:  rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
		health:   NewHealthMonitor(),
	}
	c.httpClient.CheckRedirect = c.checkRedirect
	return c
}

// AllowListingHosts sets the hosts FetchListing may contact. Each host also
// admits its subdomains. Call before the client is shared.
func (c *Client) AllowListingHosts(hosts ...string) {
	c.listingHosts = nil
	for _, h := range hosts {
		h = strings.Trim(strings.ToLower(strings.TrimSpace(h)), ".")
		if h != "" {
			c.listingHosts = append(c.listingHosts, h)
		}
	}
}

// ListingHostAllowed reports whether host is on the listing allowlist
func (c *Client) ListingHostAllowed(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" {
		return false
	}
	for _, allowed := range c.listingHosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

// checkRedirect keeps listing fetches on allowed hosts across redirects
func (c *Client) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return errors.ServiceError("too many redirects", nil)
	}
	if req.Context().Value(listingFetchKey{}) != nil && !c.ListingHostAllowed(req.URL.Hostname()) {
		return errors.Forbidden("listing host not allowed", nil).WithDetails(req.URL.Hostname())
	}
	return nil
}

// providerProperty mirrors the provider's property record
type providerProperty struct {
	FormattedAddress string  `json:"formattedAddress"`
	SquareFootage    float64 `json:"squareFootage"`
	Bedrooms         float64 `json:"bedrooms"`
	Bathrooms        float64 `json:"bathrooms"`
	YearBuilt        int     `json:"yearBuilt"`
	LastSalePrice    float64 `json:"lastSalePrice"`
	Features         struct {
		Pool bool `json:"pool"`
	} `json:"features"`
}

type providerRent struct {
	Rent          float64 `json:"rent"`
	RentRangeLow  float64 `json:"rentRangeLow"`
	RentRangeHigh float64 `json:"rentRangeHigh"`
}

// LookupProperty returns the provider's record for an address
func (c *Client) LookupProperty(ctx context.Context, address string) (*PropertyFacts, error) {
	if strings.TrimSpace(address) == "" {
		return nil, errors.InvalidInput("address is required", nil)
	}

	var records []providerProperty
	if err := c.getJSON(ctx, "/properties", url.Values{"address": {address}}, &records); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.NotFound("no property record for address", nil).WithDetails(address)
	}

	p := records[0]
	return &PropertyFacts{
		Address:       p.FormattedAddress,
		SquareFeet:    p.SquareFootage,
		Bedrooms:      p.Bedrooms,
		Bathrooms:     p.Bathrooms,
		HasPool:       p.Features.Pool,
		YearBuilt:     p.YearBuilt,
		LastSalePrice: p.LastSalePrice,
	}, nil
}

// RentEstimate returns a long-term rent estimate for an address
func (c *Client) RentEstimate(ctx context.Context, address string) (*RentEstimate, error) {
	if strings.TrimSpace(address) == "" {
		return nil, errors.InvalidInput("address is required", nil)
	}

	var r providerRent
	if err := c.getJSON(ctx, "/avm/rent/long-term", url.Values{"address": {address}}, &r); err != nil {
		return nil, err
	}
	return &RentEstimate{Rent: r.Rent, Low: r.RentRangeLow, High: r.RentRangeHigh}, nil
}

// FetchListing downloads a listing page and extracts its microdata
func (c *Client) FetchListing(ctx context.Context, listingURL string) (*Listing, error) {
	u, err := url.Parse(listingURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.InvalidInput("invalid listing url", err)
	}
	if !c.ListingHostAllowed(u.Hostname()) {
		return nil, errors.Forbidden("listing host not allowed", nil).WithDetails(u.Hostname())
	}

	ctx = context.WithValue(ctx, listingFetchKey{}, true)
	resp, err := c.do(ctx, listingURL, "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8", false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, errors.ServiceError("failed to parse listing page", err)
	}
	return ParseListingDocument(doc), nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	resp, err := c.do(ctx, c.endpoint+path+"?"+query.Encode(), "application/json", true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.ServiceError("failed to decode property data response", err).WithOperation(path)
	}
	return nil
}

// do performs one rate-limited GET; responses other than 200 become errors
func (c *Client) do(ctx context.Context, rawURL, accept string, withKey bool) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.ServiceError("rate limiter", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.InternalError("failed to create request", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", accept)
	if withKey {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	operation := req.URL.Path
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Code(err) == errors.ErrCodeForbidden {
			return nil, errors.Forbidden("listing host not allowed", err)
		}
		c.health.RecordFailure(operation, err)
		return nil, errors.ServiceError("property data request failed", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		appErr := errors.ServiceError(fmt.Sprintf("unexpected status code: %d", resp.StatusCode), nil).
			WithDetails(strings.TrimSpace(string(body)))
		if resp.StatusCode == http.StatusNotFound {
			c.health.RecordSuccess()
			return nil, errors.NotFound("property data not found", nil)
		}
		c.health.RecordFailure(operation, appErr)
		return nil, appErr
	}
	c.health.RecordSuccess()
	return resp, nil
}

// Health reports the provider's recent success and failure rates
func (c *Client) Health() HealthStatus {
	return c.health.Status()
}

// Close cleans up the client resources
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
