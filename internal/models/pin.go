package models

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const pinSpace = 10000 // 4-digit PINs, zero padded

// GeneratePIN returns a random 4-digit handover PIN.
func GeneratePIN() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(pinSpace))
	if err != nil {
		return "", fmt.Errorf("failed to generate pin: %w", err)
	}
	return fmt.Sprintf("%04d", n.Int64()), nil
}

// GeneratePINPair returns a collection PIN and a delivery PIN that are
// guaranteed to differ; the delivery PIN is re-rolled on collision.
func GeneratePINPair() (string, string, error) {
	collection, err := GeneratePIN()
	if err != nil {
		return "", "", err
	}

	for {
		delivery, err := GeneratePIN()
		if err != nil {
			return "", "", err
		}
		if delivery != collection {
			return collection, delivery, nil
		}
	}
}
