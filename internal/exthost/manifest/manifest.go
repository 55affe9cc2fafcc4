// Package manifest loads the list of extensions an extension host activates
// and the URI handler each one installs.
//
// The format is chosen by file extension: .yaml/.yml or .toml.
//
//	extensions:
//	  - id: pub.notes
//	    handler: log
//	  - id: pub.auth
//	    handler: webhook
//	    url: https://hooks.internal/auth
//	    timeout: 5s
//	    retries: 2
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported manifest format")
	ErrInvalid           = errors.New("invalid manifest")
)

// Handler kinds
const (
	HandlerLog     = "log"
	HandlerWebhook = "webhook"
)

// Format of a manifest document
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// Manifest lists the extensions of one extension host.
type Manifest struct {
	Extensions []Extension `yaml:"extensions" toml:"extensions"`
}

// Extension is one manifest entry.
type Extension struct {
	ID      string            `yaml:"id" toml:"id"`
	Handler string            `yaml:"handler" toml:"handler"`
	URL     string            `yaml:"url,omitempty" toml:"url,omitempty"`
	Timeout string            `yaml:"timeout,omitempty" toml:"timeout,omitempty"`
	Retries int               `yaml:"retries,omitempty" toml:"retries,omitempty"`
	Rate    float64           `yaml:"rate_limit,omitempty" toml:"rate_limit,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty" toml:"headers,omitempty"`
}

// TimeoutDuration returns the parsed timeout, or zero when unset. Validate
// guarantees it parses.
func (e Extension) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(e.Timeout)
	return d
}

// FormatOf picks the format from a file name.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Load reads and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	m, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse decodes and validates a manifest document. Unknown keys are rejected.
func Parse(data []byte, format Format) (*Manifest, error) {
	var m Manifest
	switch format {
	case FormatYAML:
		if err := yaml.UnmarshalWithOptions(data, &m, yaml.DisallowUnknownField()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
		}
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&m); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks every entry and fills defaults. An empty handler means log.
//
// IDs must be unique ignoring case because the main process routes
// authorities case-insensitively.
func (m *Manifest) Validate() error {
	var errs []error
	seen := make(map[string]int, len(m.Extensions))

	for i := range m.Extensions {
		ext := &m.Extensions[i]
		fail := func(format string, args ...any) {
			errs = append(errs, fmt.Errorf("extensions[%d]: "+format, append([]any{i}, args...)...))
		}

		ext.ID = strings.TrimSpace(ext.ID)
		if ext.ID == "" {
			fail("id is required")
		} else if first, dup := seen[strings.ToLower(ext.ID)]; dup {
			fail("id %q duplicates extensions[%d]", ext.ID, first)
		} else {
			seen[strings.ToLower(ext.ID)] = i
		}

		if ext.Handler == "" {
			ext.Handler = HandlerLog
		}
		switch ext.Handler {
		case HandlerLog:
		case HandlerWebhook:
			if ext.URL == "" {
				fail("url is required for webhook handler")
			} else if u, err := url.Parse(ext.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				fail("url %q must be an absolute http(s) URL", ext.URL)
			}
		default:
			fail("unknown handler %q", ext.Handler)
		}

		if ext.Timeout != "" {
			if d, err := time.ParseDuration(ext.Timeout); err != nil || d <= 0 {
				fail("timeout %q is not a positive duration", ext.Timeout)
			}
		}
		if ext.Retries < 0 {
			fail("retries must not be negative")
		}
		if ext.Rate < 0 {
			fail("rate_limit must not be negative")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}
