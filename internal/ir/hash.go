package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for fingerprints. The version suffix allows the
// algorithm to change without old and new fingerprints colliding.
const (
	DomainRequest = "qgraph/request/v1"
	DomainShape   = "qgraph/shape/v1"
	DomainSchema  = "qgraph/schema/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte keeps the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint hashes a tuple of values under a domain. Values that
// compare equal (IRInt(1) and IRFloat(1), NFC-equivalent strings) produce
// the same fingerprint.
func Fingerprint(domain string, vals ...IRValue) (string, error) {
	key, err := CanonicalKey(vals...)
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", domain, err)
	}
	return hashWithDomain(domain, []byte(key)), nil
}

// RequestFingerprint identifies one request exactly: the same operation
// with the same arguments and selection always has the same fingerprint.
func RequestFingerprint(operation string, args IRObject, selection IRValue) (string, error) {
	if args == nil {
		args = IRObject{}
	}
	return Fingerprint(DomainRequest, IRString(operation), args, orNull(selection))
}

// ShapeFingerprint identifies the shape of a request: requests that
// differ only in literal values share it. Logged next to the request
// fingerprint so slow or failing request kinds can be grouped.
func ShapeFingerprint(operation string, args IRObject, selection IRValue) (string, error) {
	if args == nil {
		args = IRObject{}
	}
	return Fingerprint(DomainShape, IRString(operation), Shape(args), orNull(selection))
}

// SchemaFingerprint identifies a schema by its source text.
func SchemaFingerprint(source string) string {
	return hashWithDomain(DomainSchema, []byte(source))
}

// Shape replaces every scalar in v by the name of its kind. Object keys
// and list lengths are kept.
func Shape(v IRValue) IRValue {
	switch val := v.(type) {
	case IRObject:
		out := make(IRObject, len(val))
		for k, x := range val {
			out[k] = Shape(x)
		}
		return out
	case IRArray:
		out := make(IRArray, len(val))
		for i, x := range val {
			out[i] = Shape(x)
		}
		return out
	case IRString:
		return IRString("$string")
	case IRInt, IRFloat:
		return IRString("$number")
	case IRBool:
		return IRString("$bool")
	default:
		return IRNull{}
	}
}

func orNull(v IRValue) IRValue {
	if v == nil {
		return IRNull{}
	}
	return v
}

// MustFingerprint is like Fingerprint but panics on error.
// Use only in tests or when inputs are known to be finite.
func MustFingerprint(domain string, vals ...IRValue) string {
	fp, err := Fingerprint(domain, vals...)
	if err != nil {
		panic(err)
	}
	return fp
}
