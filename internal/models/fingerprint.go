package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint identifies the latest known state of a shipment.
//
// Two fingerprints are equal iff they were computed from the same
// (location, status text, timestamp) triple of the latest scan, or, when the
// courier returned no scans, from the same current status. Fields are
// whitespace-trimmed before hashing; casing is preserved. The zero value means
// "nothing known yet" and never equals a computed fingerprint.
type Fingerprint string

const fingerprintSep = "\x1f"

// FingerprintOf computes the fingerprint of a timeline given oldest-first.
func FingerprintOf(scans []ScanEvent, currentStatus string) Fingerprint {
	if len(scans) == 0 {
		status := strings.TrimSpace(currentStatus)
		if status == "" {
			return ""
		}
		return hashParts("status", status)
	}
	last := scans[len(scans)-1]
	return hashParts(
		"scan",
		strings.TrimSpace(last.Location),
		strings.TrimSpace(last.StatusText),
		strings.TrimSpace(last.Timestamp),
	)
}

func hashParts(parts ...string) Fingerprint {
	sum := sha256.Sum256([]byte(strings.Join(parts, fingerprintSep)))
	return Fingerprint(hex.EncodeToString(sum[:]))
}

func (f Fingerprint) IsZero() bool { return f == "" }

// Short is a log-friendly prefix.
func (f Fingerprint) Short() string {
	if len(f) <= 12 {
		return string(f)
	}
	return string(f[:12])
}
