// Package idutil maps between external URIs, proxy URIs, proxy IDs, and the
// short/tiny hash keys derived from them.
//
// A proxy URI has the shape "<root>/<id>#id" where id is exactly 32
// lowercase hexadecimal characters (a UUIDv4 with hyphens removed). See
// spec.md §3.1 and §4.7.
package idutil

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spindle-coref/spindle/internal/spindleerr"
)

// idLength is the number of hex characters a valid proxy ID must contain.
const idLength = 32

// IDFromURI extracts the proxy ID from a proxy URI: the substring after the
// last '/', lowercased, keeping only hex digits up to a '#'. It fails unless
// exactly 32 hex characters are found.
func IDFromURI(uri string) (string, error) {
	slash := strings.LastIndexByte(uri, '/')
	tail := uri
	if slash >= 0 {
		tail = uri[slash+1:]
	}
	if hash := strings.IndexByte(tail, '#'); hash >= 0 {
		tail = tail[:hash]
	}
	tail = strings.ToLower(tail)

	var b strings.Builder
	b.Grow(idLength)
	for _, r := range tail {
		if isHexDigit(r) {
			b.WriteRune(r)
		}
	}
	id := b.String()
	if len(id) != idLength {
		return "", fmt.Errorf("idutil: parse id from %q: %w", uri, spindleerr.ErrInvalidProxyID)
	}
	return id, nil
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')
}

// ProxyURIFromID joins root, "/", id, and the "#id" fragment, inserting
// exactly one '/' between root and id regardless of whether root already
// ends with one.
func ProxyURIFromID(root, id string) (string, error) {
	if len(id) != idLength || !isAllHex(id) {
		return "", fmt.Errorf("idutil: build uri for id %q: %w", id, spindleerr.ErrInvalidProxyID)
	}
	root = strings.TrimSuffix(root, "/")
	return root + "/" + strings.ToLower(id) + "#id", nil
}

func isAllHex(s string) bool {
	for _, r := range s {
		if !isHexDigit(r) && !(r >= 'A' && r <= 'F') {
			return false
		}
	}
	return true
}

// IsLocal reports whether uri has root as a prefix.
func IsLocal(root, uri string) bool {
	return strings.HasPrefix(uri, root)
}

// ShortHash returns the unsigned 32-bit integer obtained by hex-decoding the
// first 8 characters of id. id is assumed to already be a valid 32-hex id
// (e.g. returned from [IDFromURI]); callers that hold an unvalidated string
// should call [IDFromURI] first.
func ShortHash(id string) (uint32, error) {
	if len(id) < 8 {
		return 0, fmt.Errorf("idutil: short hash of %q: %w", id, spindleerr.ErrInvalidProxyID)
	}
	raw, err := hex.DecodeString(id[:8])
	if err != nil {
		return 0, fmt.Errorf("idutil: short hash of %q: %w", id, spindleerr.ErrInvalidProxyID)
	}
	return uint32(raw[0])<<24 | uint32(raw[1])<<16 | uint32(raw[2])<<8 | uint32(raw[3]), nil
}

// TinyHash returns the short hash modulo 256.
func TinyHash(shortHash uint32) uint8 {
	return uint8(shortHash % 256)
}
