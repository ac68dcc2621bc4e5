package domain

import (
	"net/url"
	"strings"
)

// trackingParamPrefixes are query parameter prefixes stripped wholesale.
var trackingParamPrefixes = []string{"utm_"}

// trackingParams are individual query parameters stripped during
// canonicalization. The same article linked with different tracking
// parameters must compare equal.
var trackingParams = map[string]bool{
	"fbclid":   true,
	"gclid":    true,
	"gbraid":   true,
	"wbraid":   true,
	"msclkid":  true,
	"mc_cid":   true,
	"mc_eid":   true,
	"igshid":   true,
	"ref":      true,
	"ref_src":  true,
	"cmpid":    true,
	"s_cid":    true,
	"smid":     true,
	"sh":       true,
	"twclid":   true,
	"yclid":    true,
	"_ga":      true,
	"spm":      true,
	"vero_id":  true,
	"mkt_tok":  true,
	"trk":      true,
	"share_id": true,
}

// CanonicalizeURL strips known tracking query parameters and any fragment
// from rawURL so syndicated links to the same article compare equal.
// Unparseable URLs are returned unchanged.
func CanonicalizeURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	query := parsed.Query()
	for param := range query {
		if isTrackingParam(param) {
			query.Del(param)
		}
	}

	parsed.RawQuery = query.Encode()
	parsed.Fragment = ""

	return parsed.String()
}

// isTrackingParam reports whether a query parameter carries tracking state.
func isTrackingParam(param string) bool {
	lower := strings.ToLower(param)
	if trackingParams[lower] {
		return true
	}

	for _, prefix := range trackingParamPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}

	return false
}
