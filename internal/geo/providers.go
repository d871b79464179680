package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/darkodi/whatsapp-redirect/internal/model"
)

// IPAPIClient queries ip-api.com style JSON endpoints
type IPAPIClient struct {
	baseURL string
	client  *http.Client
}

func NewIPAPIClient(baseURL string, timeout time.Duration) *IPAPIClient {
	return &IPAPIClient{
		baseURL: withSlash(baseURL),
		client:  &http.Client{Timeout: timeout},
	}
}

type ipAPIResponse struct {
	Status     string  `json:"status"`
	Message    string  `json:"message"`
	Country    string  `json:"country"`
	RegionName string  `json:"regionName"`
	City       string  `json:"city"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
}

func (c *IPAPIClient) Locate(ctx context.Context, ip string) (model.Location, error) {
	endpoint := c.baseURL + url.PathEscape(ip) + "?fields=status,message,country,regionName,city,lat,lon"

	var body ipAPIResponse
	if err := getJSON(ctx, c.client, endpoint, &body); err != nil {
		return model.Location{}, fmt.Errorf("ip-api: %w", err)
	}
	if body.Status != "success" {
		return model.Location{}, fmt.Errorf("ip-api: %s: %w", body.Message, ErrNotResolved)
	}

	return model.Location{
		City:      body.City,
		Region:    body.RegionName,
		Country:   body.Country,
		Latitude:  body.Lat,
		Longitude: body.Lon,
	}, nil
}

// IPInfoClient queries ipinfo.io style endpoints, which report "lat,lon" in one field
type IPInfoClient struct {
	baseURL string
	client  *http.Client
}

func NewIPInfoClient(baseURL string, timeout time.Duration) *IPInfoClient {
	return &IPInfoClient{
		baseURL: withSlash(baseURL),
		client:  &http.Client{Timeout: timeout},
	}
}

type ipInfoResponse struct {
	City    string `json:"city"`
	Region  string `json:"region"`
	Country string `json:"country"`
	Loc     string `json:"loc"`
}

func (c *IPInfoClient) Locate(ctx context.Context, ip string) (model.Location, error) {
	var body ipInfoResponse
	if err := getJSON(ctx, c.client, c.baseURL+url.PathEscape(ip)+"/json", &body); err != nil {
		return model.Location{}, fmt.Errorf("ipinfo: %w", err)
	}

	lat, lon, ok := strings.Cut(body.Loc, ",")
	if !ok {
		return model.Location{}, fmt.Errorf("ipinfo: loc %q: %w", body.Loc, ErrNotResolved)
	}
	latitude, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return model.Location{}, fmt.Errorf("ipinfo: latitude: %w", err)
	}
	longitude, err := strconv.ParseFloat(strings.TrimSpace(lon), 64)
	if err != nil {
		return model.Location{}, fmt.Errorf("ipinfo: longitude: %w", err)
	}

	return model.Location{
		City:      body.City,
		Region:    body.Region,
		Country:   body.Country,
		Latitude:  latitude,
		Longitude: longitude,
	}, nil
}

func getJSON(ctx context.Context, client *http.Client, endpoint string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func withSlash(s string) string {
	if strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}
