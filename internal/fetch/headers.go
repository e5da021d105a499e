package fetch

import (
	"net/http"
	"sort"
	"strings"
)

// Marker headers. Presence alone carries the signal; values are ignored.
const (
	MarkerTauriFetch = "x-tauri-fetch"
	MarkerNoOrigin   = "x-no-origin"
	MarkerMobile     = "x-mobile"
)

// HasHeader reports whether h carries name under its canonical key or under
// any raw key that matches case-insensitively.
func HasHeader(h http.Header, name string) bool {
	if h == nil {
		return false
	}
	if _, ok := h[http.CanonicalHeaderKey(name)]; ok {
		return true
	}
	for k := range h {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}

// HeaderTuple is one [name, value] pair as the HTTP plugin carries headers.
type HeaderTuple [2]string

// HasTuple reports whether tuples carry a header named name.
func HasTuple(tuples []HeaderTuple, name string) bool {
	for _, t := range tuples {
		if strings.EqualFold(t[0], name) {
			return true
		}
	}
	return false
}

// TuplesFromHeader flattens h into tuples, one per value, keys in order.
func TuplesFromHeader(h http.Header) []HeaderTuple {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]HeaderTuple, 0, len(h))
	for _, k := range keys {
		for _, v := range h[k] {
			out = append(out, HeaderTuple{strings.ToLower(k), v})
		}
	}
	return out
}

// HeaderFromTuples rebuilds an http.Header from tuples.
func HeaderFromTuples(tuples []HeaderTuple) http.Header {
	h := make(http.Header, len(tuples))
	for _, t := range tuples {
		h.Add(t[0], t[1])
	}
	return h
}
