package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/signalsfoundry/conjunction-sweep/model"
)

// DefaultTLEAPIURL is the public TLE API collection endpoint.
const DefaultTLEAPIURL = "https://tle.ivanstanojevic.me/api/tle"

// TLEAPI fetches element sets from a JSON API returning either a plain list
// of {name, line1, line2} records or a collection document with a "member"
// list of them.
type TLEAPI struct {
	URL  string
	http fetcher
}

// NewTLEAPI builds the JSON API source.
func NewTLEAPI(url string, client *http.Client, timeout time.Duration) *TLEAPI {
	if url == "" {
		url = DefaultTLEAPIURL
	}
	return &TLEAPI{URL: url, http: newFetcher(client, timeout)}
}

// Name implements Source.
func (t *TLEAPI) Name() string { return "tleapi" }

type tleRecord struct {
	SatelliteID int    `json:"satelliteId"`
	Name        string `json:"name"`
	Line1       string `json:"line1"`
	Line2       string `json:"line2"`
}

type tleCollection struct {
	Member []tleRecord `json:"member"`
}

// Fetch implements Source.
func (t *TLEAPI) Fetch(ctx context.Context) ([]model.TrackedObject, error) {
	body, err := t.http.get(ctx, t.URL)
	if err != nil {
		return nil, err
	}
	records, err := decodeTLERecords(body)
	if err != nil {
		return nil, err
	}

	objects := make([]model.TrackedObject, 0, len(records))
	for _, r := range records {
		if !isLine(r.Line1, '1') || !isLine(r.Line2, '2') {
			continue
		}
		obj := newObject(r.Name, r.Line1, r.Line2)
		if obj.NoradID == 0 {
			obj.NoradID = r.SatelliteID
		}
		objects = append(objects, obj)
	}
	return objects, nil
}

func decodeTLERecords(body []byte) ([]tleRecord, error) {
	var list []tleRecord
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}
	var coll tleCollection
	if err := json.Unmarshal(body, &coll); err != nil {
		return nil, fmt.Errorf("decode tle api response: %w", err)
	}
	return coll.Member, nil
}
