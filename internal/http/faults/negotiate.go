package faults

import (
	"net/http"
	"net/url"
	"strings"
)

// WantsJSON reports whether the Accept header contains application/json. An
// absent header selects HTML.
func WantsJSON(r *http.Request) bool {
	return strings.Contains(strings.ToLower(r.Header.Get("Accept")), "application/json")
}

// SafePath returns a same-origin redirect target derived from a Referer
// value. Only the path survives; scheme, host, query and fragment are
// dropped. A leading run of slashes or backslashes collapses to one slash so
// the result can never be read as a network-path reference ("//evil.test").
// An absent, unparsable or pathless referer yields "/".
func SafePath(referer string) string {
	if referer == "" {
		return "/"
	}
	u, err := url.Parse(referer)
	if err != nil {
		return "/"
	}
	p := u.EscapedPath()
	if p == "" {
		return "/"
	}
	trimmed := strings.TrimLeft(p, `/\`)
	return "/" + trimmed
}
