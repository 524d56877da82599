package model

import "strings"

// Delimiter separates the namespace and components of a Key.
const Delimiter = ":"

// Key is a canonical cache key. It can only be built from a namespace and
// escaped components, so a component can never smuggle in a delimiter.
type Key struct {
	v string
}

var escaper = strings.NewReplacer("%", "%25", ":", "%3A")

// NewKey joins namespace and parts with the delimiter, escaping every part.
func NewKey(namespace string, parts ...string) Key {
	var b strings.Builder
	b.WriteString(namespace)
	for _, p := range parts {
		b.WriteString(Delimiter)
		b.WriteString(escaper.Replace(p))
	}
	return Key{v: b.String()}
}

// RawKey wraps an already canonical key string, e.g. one read back from the external tier.
func RawKey(s string) Key { return Key{v: s} }

func (k Key) String() string { return k.v }
func (k Key) IsZero() bool   { return k.v == "" }

// Namespace returns everything before the first delimiter.
func (k Key) Namespace() string {
	if i := strings.Index(k.v, Delimiter); i >= 0 {
		return k.v[:i]
	}
	return k.v
}
