// Package cardnumber generates card numbers and derives the opaque
// lookup tokens the rest of the service uses instead of plaintext PANs.
package cardnumber

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// Length of generated card numbers, digits.
const Length = 16

// Generate returns a random numeral string of Length digits.
// Collision avoidance is the caller's job: the generated number is not
// guaranteed unique, only unpredictable enough to make collisions rare.
func Generate() (string, error) {
	b := make([]byte, Length)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("error while generating card number. Err: %w", err)
	}

	digits := make([]byte, Length)
	for i, v := range b {
		digits[i] = v%10 + '0'
	}

	return string(digits), nil
}

// Encoder derives a deterministic token from a plaintext card number.
// The token is the only form the number is stored or compared in, the
// service never decodes it back.
type Encoder struct {
	key []byte
}

func NewEncoder(secret string) (*Encoder, error) {
	if secret == "" {
		return nil, errors.New("encoder secret must not be empty")
	}

	return &Encoder{key: []byte(secret)}, nil
}

func (e *Encoder) Encode(plain string) string {
	mac := hmac.New(sha256.New, e.key)
	mac.Write([]byte(plain))
	return hex.EncodeToString(mac.Sum(nil))
}

// Mask renders the card view shown to users. The plaintext number is
// gone by the time a card is stored, so the mask tail comes from the
// token, it only has to be stable, not pretty.
func Mask(token string) string {
	if len(token) < 4 {
		return "**** **** **** ****"
	}
	return "**** **** **** " + token[len(token)-4:]
}
