package cycle

import "strings"

// MembershipRule decides which connected peers join a playlist automatically.
type MembershipRule struct {
	ExcludePrefixes []string `json:"excludePrefixes,omitempty"`
	ExcludeSuffixes []string `json:"excludeSuffixes,omitempty"`
}

// Admits reports whether a peer named name passes the rule.
func (r MembershipRule) Admits(name string) bool {
	if name == "" {
		return false
	}
	for _, prefix := range r.ExcludePrefixes {
		if prefix != "" && strings.HasPrefix(name, prefix) {
			return false
		}
	}
	for _, suffix := range r.ExcludeSuffixes {
		if suffix != "" && strings.HasSuffix(name, suffix) {
			return false
		}
	}
	return true
}
