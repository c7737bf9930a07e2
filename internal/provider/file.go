package provider

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/conjunction-sweep/model"
)

// File reads element sets from a local file, for offline or reproducible
// sweeps. Files ending in .yaml or .yml hold a list of {name, line1, line2}
// entries (optionally under an "objects" key); anything else is parsed as
// NORAD text.
type File struct {
	Path string
}

// NewFile builds the file source.
func NewFile(path string) *File { return &File{Path: path} }

// Name implements Source.
func (f *File) Name() string { return "file" }

type yamlObject struct {
	Name  string `yaml:"name"`
	Norad int    `yaml:"norad"`
	Line1 string `yaml:"line1"`
	Line2 string `yaml:"line2"`
}

type yamlCatalog struct {
	Objects []yamlObject `yaml:"objects"`
}

// Fetch implements Source.
func (f *File) Fetch(ctx context.Context) ([]model.TrackedObject, error) {
	if f.Path == "" {
		return nil, fmt.Errorf("no element file configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read element file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(f.Path)) {
	case ".yaml", ".yml":
		return parseYAMLCatalog(data)
	default:
		return ParseTLE(bytes.NewReader(data))
	}
}

func parseYAMLCatalog(data []byte) ([]model.TrackedObject, error) {
	var entries []yamlObject
	if err := yaml.Unmarshal(data, &entries); err != nil {
		var doc yamlCatalog
		if derr := yaml.Unmarshal(data, &doc); derr != nil {
			return nil, fmt.Errorf("decode element file: %w", derr)
		}
		entries = doc.Objects
	}

	objects := make([]model.TrackedObject, 0, len(entries))
	for _, e := range entries {
		obj := newObject(e.Name, e.Line1, e.Line2)
		if obj.NoradID == 0 {
			obj.NoradID = e.Norad
		}
		objects = append(objects, obj)
	}
	return objects, nil
}
