// Package service holds the static table of supported music services.
package service

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Descriptor identifies one supported service.
type Descriptor struct {
	Pattern     string
	Name        string
	FallbackURL string

	matcher *Pattern
}

// Matches reports whether rawURL belongs to the service.
func (d Descriptor) Matches(rawURL string) bool {
	if d.matcher == nil {
		p, err := ParsePattern(d.Pattern)
		if err != nil {
			return false
		}
		return p.Match(rawURL)
	}
	return d.matcher.Match(rawURL)
}

// Service names.
const (
	YouTube = "youtube"
	Spotify = "spotify"
	Amazon  = "amazon"
)

// table is ordered by discovery priority. The first entry is the default.
var table = []Descriptor{
	mustDescriptor("*://music.youtube.com/*", YouTube, "https://music.youtube.com"),
	mustDescriptor("*://open.spotify.com/*", Spotify, "https://open.spotify.com"),
	mustDescriptor("*://music.amazon.com/*", Amazon, "https://music.amazon.com"),
}

func mustDescriptor(pattern, name, fallback string) Descriptor {
	p, err := ParsePattern(pattern)
	if err != nil {
		panic(err)
	}
	return Descriptor{Pattern: pattern, Name: name, FallbackURL: fallback, matcher: p}
}

// All returns the descriptors in priority order.
func All() []Descriptor {
	out := make([]Descriptor, len(table))
	copy(out, table)
	return out
}

// Default is the highest-priority service.
func Default() Descriptor { return table[0] }

// ByName looks a descriptor up by canonical name.
func ByName(name string) (Descriptor, bool) {
	for _, d := range table {
		if d.Name == name {
			return d, true
		}
	}
	return Descriptor{}, false
}

// ForURL returns the first descriptor whose pattern matches rawURL.
func ForURL(rawURL string) (Descriptor, bool) {
	for _, d := range table {
		if d.Matches(rawURL) {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Pattern is a compiled browser match pattern such as "*://music.youtube.com/*".
type Pattern struct {
	schemes []string
	host    string
	anySub  bool
	path    *regexp.Regexp
}

// ParsePattern compiles a match pattern.
func ParsePattern(s string) (*Pattern, error) {
	scheme, rest, ok := strings.Cut(s, "://")
	if !ok {
		return nil, fmt.Errorf("match pattern %q: missing scheme separator", s)
	}
	host, path, ok := strings.Cut(rest, "/")
	if !ok {
		return nil, fmt.Errorf("match pattern %q: missing path", s)
	}
	path = "/" + path

	p := &Pattern{}
	switch scheme {
	case "*":
		p.schemes = []string{"http", "https"}
	case "http", "https":
		p.schemes = []string{scheme}
	default:
		return nil, fmt.Errorf("match pattern %q: unsupported scheme %q", s, scheme)
	}

	switch {
	case host == "":
		return nil, fmt.Errorf("match pattern %q: empty host", s)
	case host == "*":
		p.anySub = true
	case strings.HasPrefix(host, "*."):
		p.anySub = true
		p.host = strings.TrimPrefix(host, "*.")
	case strings.Contains(host, "*"):
		return nil, fmt.Errorf("match pattern %q: wildcard must lead the host", s)
	default:
		p.host = host
	}

	parts := strings.Split(path, "*")
	for i := range parts {
		parts[i] = regexp.QuoteMeta(parts[i])
	}
	re, err := regexp.Compile("^" + strings.Join(parts, ".*") + "$")
	if err != nil {
		return nil, fmt.Errorf("match pattern %q: %w", s, err)
	}
	p.path = re
	return p, nil
}

// Match reports whether rawURL satisfies the pattern.
func (p *Pattern) Match(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	schemeOK := false
	for _, s := range p.schemes {
		if strings.EqualFold(u.Scheme, s) {
			schemeOK = true
			break
		}
	}
	if !schemeOK {
		return false
	}

	host := strings.ToLower(u.Hostname())
	switch {
	case p.anySub && p.host == "":
	case p.anySub:
		if host != p.host && !strings.HasSuffix(host, "."+p.host) {
			return false
		}
	default:
		if host != p.host {
			return false
		}
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return p.path.MatchString(path)
}
