// Package url translates course-catalog URLs between the CIS API, CIS explorer and
// public search schemes served from courses.illinois.edu.
package url

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

const (
	// Host is the only host the catalog schemes are served from.
	Host = "courses.illinois.edu"

	APIPrefix      = "/cisapi"
	ExplorerPrefix = "/cisapp/explorer"
	SearchPrefix   = "/search"

	scheduleSegment = "schedule"
	xmlSuffix       = ".xml"
)

// AsString returns v as a URL string. Values decoded from JSON or other untyped
// sources go through here so that a non-string is reported as KindInvalidType.
func AsString(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", NewError(KindInvalidType, fmt.Errorf("got %T", v))
	}
	return s, nil
}

// Parse checks that rawURL is non-empty and an absolute URL with a scheme and host.
func Parse(rawURL string) (*url.URL, error) {
	if rawURL == "" {
		return nil, NewError(KindEmptyInput, nil)
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, NewError(KindMalformedURL, err)
	}

	if parsedURL.Scheme == "" || parsedURL.Host == "" || parsedURL.Opaque != "" {
		return nil, NewError(KindMalformedURL, fmt.Errorf("url must be absolute with scheme and host"))
	}

	return parsedURL, nil
}

// isWebScheme reports whether scheme is http or https.
func isWebScheme(scheme string) bool {
	return scheme == "http" || scheme == "https"
}

// forceHTTPS upgrades an http URL to https in place.
func forceHTTPS(u *url.URL) {
	if u.Scheme == "http" {
		u.Scheme = "https"
	}
}

// setEscapedPath replaces the path of u while keeping the caller's percent-encoding.
func setEscapedPath(u *url.URL, escaped string) {
	unescaped, err := url.PathUnescape(escaped)
	if err != nil {
		u.Path = escaped
		u.RawPath = ""
		return
	}
	u.Path = unescaped
	u.RawPath = escaped
}

// relocate swaps the first occurrence of from in the escaped path of u for to.
func relocate(u *url.URL, from, to string) {
	setEscapedPath(u, strings.Replace(u.EscapedPath(), from, to, 1))
}

// stringWithRawFragment renders u with the fragment exactly as it appeared in rawURL.
// url.URL.String would percent-encode it.
func stringWithRawFragment(u *url.URL, rawURL string) string {
	u.Fragment = ""
	u.RawFragment = ""
	out := u.String()
	if _, fragment, ok := strings.Cut(rawURL, "#"); ok {
		out += "#" + fragment
	}
	return out
}

// pathSegments splits an escaped path after prefix into its segments.
func pathSegments(escapedPath, prefix string) []string {
	rest := strings.TrimPrefix(escapedPath, prefix)
	rest = strings.TrimPrefix(rest, "/")
	return strings.Split(rest, "/")
}

// ValidateNotPrivate checks if a host (hostname or hostname:port) resolves to a private or loopback IP address.
// Link-local addresses (169.254.0.0/16 and fe80::/10) are rejected as well.
func ValidateNotPrivate(host string) error {
	hostname, _, err := net.SplitHostPort(host)
	if err != nil {
		hostname = host
	}

	hostname = strings.Trim(hostname, "[]")

	if ip := net.ParseIP(hostname); ip != nil {
		return checkIP(hostname, ip)
	}

	ips, err := net.LookupIP(hostname)
	if err != nil {
		return nil
	}

	for _, resolvedIP := range ips {
		if err := checkIP(hostname, resolvedIP); err != nil {
			return fmt.Errorf("url resolves to disallowed address: %w", err)
		}
	}

	return nil
}

func checkIP(hostname string, ip net.IP) error {
	if ip.IsLoopback() || ip.IsPrivate() {
		return fmt.Errorf("requests to private IP addresses are not allowed: %s (%s)", hostname, ip)
	}
	if ip.IsLinkLocalUnicast() {
		return fmt.Errorf("requests to link-local addresses are not allowed: %s (%s)", hostname, ip)
	}
	return nil
}

// ExtractHost extracts the host (hostname:port or just hostname) from a URL string.
func ExtractHost(urlStr string) (string, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}

	if parsedURL.Host == "" {
		return "", fmt.Errorf("url has no host: %s", urlStr)
	}

	return parsedURL.Host, nil
}
