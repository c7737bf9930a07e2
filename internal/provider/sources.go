package provider

import (
	"net/http"
	"strings"
	"time"

	"github.com/signalsfoundry/conjunction-sweep/model"
)

// Settings carries the per-source configuration.
type Settings struct {
	Timeout time.Duration
	Client  *http.Client

	CelesTrakURL   string
	CelesTrakGroup string

	TLEAPIURL string

	SpaceTrackURL      string
	SpaceTrackUser     string
	SpaceTrackPassword string

	FilePath string
}

// Source names accepted by NewSources.
const (
	SourceCelesTrak  = "celestrak"
	SourceTLEAPI     = "tleapi"
	SourceSpaceTrack = "spacetrack"
	SourceFile       = "file"
)

// DefaultSources is the fallback order used when none is configured.
var DefaultSources = []string{SourceCelesTrak, SourceTLEAPI, SourceSpaceTrack}

// NewSources instantiates the named sources in order. An unknown name is a
// configuration error.
func NewSources(names []string, s Settings) ([]Source, error) {
	if len(names) == 0 {
		names = DefaultSources
	}
	out := make([]Source, 0, len(names))
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case SourceCelesTrak:
			out = append(out, NewCelesTrak(s.CelesTrakURL, s.CelesTrakGroup, s.Client, s.Timeout))
		case SourceTLEAPI:
			out = append(out, NewTLEAPI(s.TLEAPIURL, s.Client, s.Timeout))
		case SourceSpaceTrack:
			out = append(out, NewSpaceTrack(s.SpaceTrackURL, s.SpaceTrackUser, s.SpaceTrackPassword, s.Client, s.Timeout))
		case SourceFile:
			if s.FilePath == "" {
				return nil, &model.ConfigurationError{Field: "provider.file.path", Reason: "required when the file source is enabled"}
			}
			out = append(out, NewFile(s.FilePath))
		default:
			return nil, &model.ConfigurationError{Field: "provider.sources", Reason: "unknown source " + name}
		}
	}
	return out, nil
}
