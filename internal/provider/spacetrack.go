package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/signalsfoundry/conjunction-sweep/model"
)

// DefaultSpaceTrackURL is the Space-Track base URL.
const DefaultSpaceTrackURL = "https://www.space-track.org"

const (
	spaceTrackLoginPath = "/ajaxauth/login"
	spaceTrackQueryPath = "/basicspacedata/query/class/tle_latest/ORDINAL/1/format/3le"
)

// ErrMissingCredentials is returned by Space-Track when no user or password
// is configured.
var ErrMissingCredentials = errors.New("space-track credentials not provided")

// SpaceTrack logs in with identity/password and downloads the latest element
// sets. The session cookie lives only for one Fetch.
type SpaceTrack struct {
	BaseURL  string
	User     string
	Password string
	timeout  time.Duration
	client   *http.Client
}

// NewSpaceTrack builds the Space-Track source. client may be nil.
func NewSpaceTrack(baseURL, user, password string, client *http.Client, timeout time.Duration) *SpaceTrack {
	if baseURL == "" {
		baseURL = DefaultSpaceTrackURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &SpaceTrack{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		User:     user,
		Password: password,
		timeout:  timeout,
		client:   client,
	}
}

// Name implements Source.
func (s *SpaceTrack) Name() string { return "spacetrack" }

// Fetch implements Source.
func (s *SpaceTrack) Fetch(ctx context.Context) ([]model.TrackedObject, error) {
	if s.User == "" || s.Password == "" {
		return nil, ErrMissingCredentials
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	client := &http.Client{Jar: jar, Timeout: s.timeout}
	if s.client != nil {
		client.Transport = s.client.Transport
	}
	f := newFetcher(client, s.timeout)

	form := url.Values{"identity": {s.User}, "password": {s.Password}}.Encode()
	login, err := f.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+spaceTrackLoginPath, strings.NewReader(form))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("space-track login: %w", err)
	}
	// A rejected login still answers 200.
	if bytes.Contains(login, []byte(`"Failed"`)) {
		return nil, fmt.Errorf("space-track login: %s", bytes.TrimSpace(login))
	}

	body, err := f.get(ctx, s.BaseURL+spaceTrackQueryPath)
	if err != nil {
		return nil, fmt.Errorf("space-track query: %w", err)
	}
	return ParseTLE(bytes.NewReader(body))
}
