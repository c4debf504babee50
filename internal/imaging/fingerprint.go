package imaging

import (
	"image"

	"github.com/corona10/goimagehash"
)

// Fingerprint returns the perceptual difference hash of img, e.g. "d:8f0e...".
// Near-identical photos share a fingerprint or differ in a few bits, which
// lets reviewers spot resubmissions in logs.
func Fingerprint(img image.Image) (string, error) {
	hash, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return "", err
	}
	return hash.ToString(), nil
}

// FingerprintDistance is the Hamming distance between two fingerprints.
func FingerprintDistance(a, b string) (int, error) {
	ha, err := goimagehash.ImageHashFromString(a)
	if err != nil {
		return 0, err
	}
	hb, err := goimagehash.ImageHashFromString(b)
	if err != nil {
		return 0, err
	}
	return ha.Distance(hb)
}
