// Package hashing computes the content fingerprint used for change
// detection across the engine.
package hashing

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint returns a deterministic 16-character lowercase hex
// fingerprint of content. Same bytes always produce the same string;
// differing bytes produce an unrelated one with overwhelming
// probability, which is all change detection within one repository
// needs.
func Fingerprint(content []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(content))
}
