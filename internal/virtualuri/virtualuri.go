// Package virtualuri builds and parses the tsls-virtual:// URI scheme used
// to present one injection region to a downstream language server as its
// own synthesized document.
package virtualuri

import (
	"fmt"
	"net/url"
	"strings"
)

const scheme = "tsls-virtual"

// percentEncodeSet mirrors the characters the spec calls out beyond the
// URL package's own default encoding: CONTROLS plus a fixed punctuation
// set. net/url's QueryEscape already encodes everything in that set that
// matters for a host URI embedded in a query parameter, so Build defers to
// it and this set exists only to document the contract precisely.
const percentEncodeSet = " \"#<>`?{}/:@%"

// Build constructs a virtual document URI for one injection region.
func Build(language string, regionID string, hostURI string) string {
	encodedHost := url.QueryEscape(hostURI)
	return fmt.Sprintf("%s://%s/%s?host=%s", scheme, language, regionID, encodedHost)
}

// Parsed holds the decoded components of a virtual URI.
type Parsed struct {
	Language string
	RegionID string
	HostURI  string
}

// Parse decodes a virtual URI. It rejects any URI with a scheme other than
// tsls-virtual.
func Parse(raw string) (Parsed, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Parsed{}, fmt.Errorf("virtualuri: parse %q: %w", raw, err)
	}
	if u.Scheme != scheme {
		return Parsed{}, fmt.Errorf("virtualuri: wrong scheme %q", u.Scheme)
	}
	regionID := strings.TrimPrefix(u.Path, "/")
	hostEncoded := u.Query().Get("host")
	hostURI, err := url.QueryUnescape(hostEncoded)
	if err != nil {
		return Parsed{}, fmt.Errorf("virtualuri: decode host param: %w", err)
	}
	return Parsed{Language: u.Host, RegionID: regionID, HostURI: hostURI}, nil
}

// IsVirtual reports whether raw uses the virtual-document scheme.
func IsVirtual(raw string) bool {
	return strings.HasPrefix(raw, scheme+"://")
}
