package provider

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/signalsfoundry/conjunction-sweep/model"
)

// DefaultCelesTrakURL is the CelesTrak GP query endpoint.
const DefaultCelesTrakURL = "https://celestrak.org/NORAD/elements/gp.php"

// CelesTrak fetches a GP group in three-line text form.
type CelesTrak struct {
	BaseURL string
	Group   string
	http    fetcher
}

// NewCelesTrak builds the CelesTrak source. Empty arguments take the
// defaults (the "active" group on the public endpoint).
func NewCelesTrak(baseURL, group string, client *http.Client, timeout time.Duration) *CelesTrak {
	if baseURL == "" {
		baseURL = DefaultCelesTrakURL
	}
	if group == "" {
		group = "active"
	}
	return &CelesTrak{BaseURL: baseURL, Group: group, http: newFetcher(client, timeout)}
}

// Name implements Source.
func (c *CelesTrak) Name() string { return "celestrak" }

// URL returns the query URL.
func (c *CelesTrak) URL() (string, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse celestrak url: %w", err)
	}
	q := u.Query()
	q.Set("GROUP", c.Group)
	q.Set("FORMAT", "TLE")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Fetch implements Source.
func (c *CelesTrak) Fetch(ctx context.Context) ([]model.TrackedObject, error) {
	u, err := c.URL()
	if err != nil {
		return nil, err
	}
	body, err := c.http.get(ctx, u)
	if err != nil {
		return nil, err
	}
	return ParseTLE(bytes.NewReader(body))
}
