package link

import (
	"errors"
	"net/url"
	"strings"

	"github.com/yachaflex/pairing/internal/model/pairing"
)

const (
	DefaultScheme = "yachaflex"
	DefaultHost   = "yachaflex.link"

	connectHost = "connect"
	connectPath = "/connect"
)

// ErrParseFailure is returned when no usable endpoint can be extracted.
var ErrParseFailure = errors.New("scan failed: no endpoint in content")

// Style selects which deep-link form Build produces.
type Style string

const (
	// StyleCustom produces <scheme>://connect?...
	StyleCustom Style = "custom"
	// StyleUniversal produces https://<host>/connect?...
	StyleUniversal Style = "https"
)

// Parser decodes QR and deep-link content into connection descriptors.
type Parser struct {
	Scheme string
	Host   string
}

// NewParser returns a parser recognising the given custom scheme and
// universal-link host, falling back to the defaults when empty.
func NewParser(scheme, host string) Parser {
	if strings.TrimSpace(scheme) == "" {
		scheme = DefaultScheme
	}
	if strings.TrimSpace(host) == "" {
		host = DefaultHost
	}
	return Parser{Scheme: scheme, Host: host}
}

// Parse turns raw scanned content into a descriptor.
//
// Recognised deep links contribute their endpoint and token query parameters.
// A deep link without an endpoint parameter, content that is not a URI, and
// URIs with any other scheme or host are all taken verbatim as the endpoint.
func (p Parser) Parse(raw string) (pairing.Descriptor, error) {
	content := strings.TrimSpace(raw)
	if content == "" {
		return pairing.Descriptor{}, ErrParseFailure
	}

	d := pairing.Descriptor{Endpoint: content}

	u, err := url.Parse(content)
	if err == nil && p.recognised(u) {
		q := u.Query()
		if q.Has("endpoint") {
			d.Endpoint = q.Get("endpoint")
		}
		d.AuthToken = q.Get("token")
	}

	if strings.TrimSpace(d.Endpoint) == "" {
		return pairing.Descriptor{}, ErrParseFailure
	}
	return d, nil
}

func (p Parser) recognised(u *url.URL) bool {
	if strings.EqualFold(u.Scheme, p.Scheme) && strings.EqualFold(u.Host, connectHost) {
		return true
	}
	return strings.EqualFold(u.Scheme, "https") &&
		strings.EqualFold(u.Host, p.Host) &&
		strings.HasPrefix(u.Path, connectPath)
}

// Build encodes an endpoint and optional token as a deep link that Parse
// maps back to the same descriptor.
func (p Parser) Build(style Style, endpoint, token string) string {
	q := url.Values{}
	q.Set("endpoint", endpoint)
	if token != "" {
		q.Set("token", token)
	}

	u := url.URL{RawQuery: q.Encode()}
	switch style {
	case StyleUniversal:
		u.Scheme = "https"
		u.Host = p.Host
		u.Path = connectPath
	default:
		u.Scheme = p.Scheme
		u.Host = connectHost
	}
	return u.String()
}
