// Package domain contains core concepts of the group-guard bot.
// This file defines identity references and their canonical string form.
// No runtime, network, or UI logic should be added here.
package domain

// IdentityRef is one of the shapes an identity arrives in from the
// platform. The set is closed: a canonical string, a pre-serialized
// wrapper, a bare user part, or a wrapper around another reference.
type IdentityRef interface {
	isIdentityRef()
}

// CanonicalID is an identity already in its canonical string form.
type CanonicalID string

// SerializedID wraps an identity that carries its own serialized form.
type SerializedID struct {
	Serialized string
}

// BareUser carries only the local user part; the canonical form is
// composed with a default domain.
type BareUser struct {
	User string
}

// WrappedID nests another reference, as seen in quoted or forwarded
// payloads. Only one level of nesting is resolvable.
type WrappedID struct {
	Inner IdentityRef
}

func (CanonicalID) isIdentityRef()  {}
func (SerializedID) isIdentityRef() {}
func (BareUser) isIdentityRef()     {}
func (WrappedID) isIdentityRef()    {}

// Canonicalize reduces any identity shape to the single string form used
// for equality checks. It never panics and it is idempotent: feeding a
// successful result back in yields the same string. The boolean is false
// when the reference cannot be resolved.
func Canonicalize(ref IdentityRef, defaultDomain string) (string, bool) {
	return canonicalize(ref, defaultDomain, 1)
}

func canonicalize(ref IdentityRef, defaultDomain string, wrapBudget int) (string, bool) {
	switch v := ref.(type) {
	case CanonicalID:
		if v == "" {
			return "", false
		}
		return string(v), true
	case SerializedID:
		if v.Serialized == "" {
			return "", false
		}
		return v.Serialized, true
	case BareUser:
		if v.User == "" || defaultDomain == "" {
			return "", false
		}
		return v.User + "@" + defaultDomain, true
	case WrappedID:
		if wrapBudget == 0 || v.Inner == nil {
			return "", false
		}
		return canonicalize(v.Inner, defaultDomain, wrapBudget-1)
	default:
		return "", false
	}
}
