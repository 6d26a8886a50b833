// Package fingerprint derives the stable identity of an alert from its event
// payload. Events describing the same underlying incident must hash to the
// same fingerprint across pushes and pulls, so the hash is computed over a
// canonical rendering of the identity-bearing fields rather than the raw
// payload — retries, reordered keys, and volatile fields like timestamps must
// not change the result. Keeping this logic in a dedicated package applies
// consistent hashing behaviour across the ingest, pull, and audit layers.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// identityFields are the payload keys that carry alert identity, in the order
// they are hashed. Everything else (timestamps, values, annotations) is
// presentation and excluded.
var identityFields = []string{"name", "alertname", "service", "environment"}

// Compute derives the fingerprint of an alert event. When the payload carries
// an explicit fingerprint field it wins; otherwise the hash covers the
// identity fields plus the sorted label set.
func Compute(event map[string]any) string {
	if fp, ok := event["fingerprint"].(string); ok && fp != "" {
		return fp
	}

	hasher := sha256.New()
	for _, field := range identityFields {
		if v, ok := event[field]; ok {
			fmt.Fprintf(hasher, "%s=%v\n", field, v)
		}
	}

	if labels, ok := event["labels"].(map[string]any); ok {
		keys := make([]string, 0, len(labels))
		for k := range labels {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(hasher, "label:%s=%v\n", k, labels[k])
		}
	}

	return hex.EncodeToString(hasher.Sum(nil))
}

// ComputeFromParts hashes an explicit list of identity parts. Used when the
// caller has already extracted the identity (e.g. provider type + rule uid)
// and no payload exists.
func ComputeFromParts(parts ...string) string {
	hasher := sha256.New()
	hasher.Write([]byte(strings.Join(parts, "\n")))
	return hex.EncodeToString(hasher.Sum(nil))
}
