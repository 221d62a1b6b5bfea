package trawl

import (
	"net/url"
	"path"
	"sort"
	"strings"
)

// MaxURLLength is the maximum accepted length of a raw URL.
const MaxURLLength = 500

// trackingParams are query parameters that serve only for analytics
// attribution. They are dropped during normalization so that the same page
// reached through different campaigns dedups to one URL.
var trackingParams = map[string]bool{
	"fbclid":   true,
	"gclid":    true,
	"msclkid":  true,
	"mc_cid":   true,
	"mc_eid":   true,
	"_ga":      true,
	"_gid":     true,
	"ref":      true,
	"referrer": true,
}

// NormalizeURL produces the canonical form of a URL. Two URLs that
// normalize to the same string are treated as the same page everywhere in
// the system.
//
// Returns an EINVALID error when the scheme is not http(s), the host is
// empty, or the raw URL exceeds MaxURLLength.
func NormalizeURL(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if len(rawURL) > MaxURLLength {
		return "", Errorf(EINVALID, "url exceeds %d characters", MaxURLLength)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", Errorf(EINVALID, "unparseable url: %v", err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", Errorf(EINVALID, "unsupported scheme %q", u.Scheme)
	}
	u.Scheme = scheme

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if host == "" {
		return "", Errorf(EINVALID, "empty host")
	}

	// Strip default ports.
	port := u.Port()
	if port == "" || (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		u.Host = host
	} else {
		u.Host = host + ":" + port
	}

	u.Fragment = ""

	// u.Path holds the percent-decoded path; setting RawPath to empty forces
	// net/url to re-encode it with a consistent reserved set on output.
	u.RawPath = ""
	cleaned := path.Clean("/" + u.Path)
	if cleaned == "." {
		cleaned = "/"
	}
	// Directory-style paths get a trailing slash; paths whose final segment
	// carries a dot-extension are files and stay as-is.
	if !strings.HasSuffix(cleaned, "/") {
		last := cleaned[strings.LastIndexByte(cleaned, '/')+1:]
		if !strings.Contains(last, ".") {
			cleaned += "/"
		}
	}
	u.Path = cleaned

	// Drop tracking parameters, alphabetize the rest. url.Values.Encode
	// emits keys in sorted order.
	if u.RawQuery != "" {
		params := u.Query()
		for k := range params {
			lk := strings.ToLower(k)
			if trackingParams[lk] || strings.HasPrefix(lk, "utm_") {
				delete(params, k)
			}
		}
		for _, vals := range params {
			sort.Strings(vals)
		}
		u.RawQuery = params.Encode()
	}

	return u.String(), nil
}

// RegistrableDomain extracts the domain used as the unit of politeness and
// bus partitioning: the lowercased host with any leading "www." removed.
func RegistrableDomain(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", Errorf(EINVALID, "unparseable url: %v", err)
	}
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if host == "" {
		return "", Errorf(EINVALID, "empty host")
	}
	return host, nil
}
