package domain

import (
	"crypto/sha256"
	"fmt"
)

// Fingerprint digests the semantically relevant payload fields: the amount in
// canonical decimal text and the normalized currency. Two submissions carry
// the same payload iff their fingerprints are equal. The digest is only used
// to detect key reuse with a different payload, never for routing or lookup.
func (p *PaymentIntent) Fingerprint() string {
	h := sha256.New()
	h.Write([]byte(p.Amount.String()))
	h.Write([]byte("|"))
	h.Write([]byte(p.Currency))
	return fmt.Sprintf("%x", h.Sum(nil))
}
