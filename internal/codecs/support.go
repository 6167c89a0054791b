package codecs

import (
	"sort"
)

// Support is the set of codec families the playback session can decode.
// An empty Support accepts everything.
type Support map[string]bool

// NewSupport creates a Support from codec families or full codec strings.
func NewSupport(codecs ...string) Support {
	s := make(Support, len(codecs))
	for _, c := range codecs {
		if f := Family(c); f != "" {
			s[f] = true
		}
	}
	return s
}

// DefaultSupport returns the families a typical MSE-backed player decodes.
func DefaultSupport() Support {
	return NewSupport("avc1", "avc3", "mp4a", "ac-3", "ec-3", "opus")
}

// Playable reports whether every codec in the comma-separated list is supported.
func (s Support) Playable(codecs string) bool {
	if len(s) == 0 {
		return true
	}
	for _, c := range Split(codecs) {
		if !s[Family(c)] {
			return false
		}
	}
	return true
}

// Families returns the supported families in sorted order.
func (s Support) Families() []string {
	out := make([]string, 0, len(s))
	for f := range s {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
