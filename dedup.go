package safeswipe

import (
	"fmt"
	"image"

	"github.com/corona10/goimagehash"
)

// Fingerprint is a 64-bit DCT perceptual hash. Fingerprints are only
// comparable with fingerprints computed by ComputeFingerprint.
type Fingerprint uint64

func (f Fingerprint) String() string { return fmt.Sprintf("%016x", uint64(f)) }

// ComputeFingerprint hashes img with the same parameters every time.
func ComputeFingerprint(img image.Image) (Fingerprint, error) {
	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return 0, fmt.Errorf("perception hash: %w", err)
	}
	return Fingerprint(hash.GetHash()), nil
}

// HasDuplicates reports whether two or more fingerprints are identical.
//
// Only exact matches count. Near-duplicates that differ by a few bits
// (re-encoded or lightly edited copies) are not detected.
func HasDuplicates(fps []Fingerprint) bool {
	seen := make(map[Fingerprint]struct{}, len(fps))
	for _, fp := range fps {
		if _, ok := seen[fp]; ok {
			return true
		}
		seen[fp] = struct{}{}
	}
	return false
}
