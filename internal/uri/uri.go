package uri

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrMissingScheme is returned by Parse when the input has no scheme.
var ErrMissingScheme = errors.New("uri has no scheme")

// Components is the wire form of a URI.
type Components struct {
	Scheme    string `json:"scheme"`
	Authority string `json:"authority,omitempty"`
	Path      string `json:"path,omitempty"`
	Query     string `json:"query,omitempty"`
	Fragment  string `json:"fragment,omitempty"`
}

// URI is a fully reconstructed URI value.
type URI struct {
	scheme    string
	authority string
	path      string
	query     string
	fragment  string
}

// Revive reconstructs a URI from its wire form.
func Revive(c Components) URI {
	return URI{
		scheme:    c.Scheme,
		authority: c.Authority,
		path:      c.Path,
		query:     c.Query,
		fragment:  c.Fragment,
	}
}

// Parse builds a URI from its string form.
func Parse(raw string) (URI, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return URI{}, fmt.Errorf("failed to parse uri: %w", err)
	}
	if u.Scheme == "" {
		return URI{}, ErrMissingScheme
	}

	authority := u.Host
	if u.User != nil {
		authority = u.User.String() + "@" + u.Host
	}

	path := u.Path
	if u.Opaque != "" {
		path = u.Opaque
		if decoded, err := url.PathUnescape(u.Opaque); err == nil {
			path = decoded
		}
	}

	return URI{
		scheme:    u.Scheme,
		authority: authority,
		path:      path,
		query:     u.RawQuery,
		fragment:  u.Fragment,
	}, nil
}

func (u URI) Scheme() string    { return u.scheme }
func (u URI) Authority() string { return u.authority }
func (u URI) Path() string      { return u.path }
func (u URI) Query() string     { return u.query }
func (u URI) Fragment() string  { return u.fragment }

// IsZero reports whether u is the empty URI.
func (u URI) IsZero() bool {
	return u == URI{}
}

// ToComponents converts u to its wire form.
func (u URI) ToComponents() Components {
	return Components{
		Scheme:    u.scheme,
		Authority: u.authority,
		Path:      u.path,
		Query:     u.query,
		Fragment:  u.fragment,
	}
}

// With returns a copy of u with the non-empty fields of change applied.
func (u URI) With(change Components) URI {
	if change.Scheme != "" {
		u.scheme = change.Scheme
	}
	if change.Authority != "" {
		u.authority = change.Authority
	}
	if change.Path != "" {
		u.path = change.Path
	}
	if change.Query != "" {
		u.query = change.Query
	}
	if change.Fragment != "" {
		u.fragment = change.Fragment
	}
	return u
}

// String formats u as scheme://authority/path?query#fragment.
func (u URI) String() string {
	var sb strings.Builder
	if u.scheme != "" {
		sb.WriteString(u.scheme)
		sb.WriteString(":")
	}
	if u.authority != "" || u.scheme == "file" {
		sb.WriteString("//")
		sb.WriteString(u.authority)
	}
	if u.path != "" {
		if u.authority != "" && !strings.HasPrefix(u.path, "/") {
			sb.WriteString("/")
		}
		sb.WriteString((&url.URL{Path: u.path}).EscapedPath())
	}
	if u.query != "" {
		sb.WriteString("?")
		sb.WriteString(u.query)
	}
	if u.fragment != "" {
		sb.WriteString("#")
		sb.WriteString((&url.URL{Fragment: u.fragment}).EscapedFragment())
	}
	return sb.String()
}
