package internal

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// NewOTP returns a numeric one-time passcode with the given number of
// digits. Each digit is drawn independently from crypto/rand so leading
// zeros are possible and the full keyspace stays uniform.
func NewOTP(digits int) (string, error) {
	if digits < 4 || digits > 10 {
		return "", errors.New("invalid otp digits")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	otp := b.String()
	if len(otp) != digits {
		return "", fmt.Errorf("invalid otp generation length")
	}
	return otp, nil
}

// HashToken maps an opaque token string onto a fixed-size digest used as a
// Redis key component. Raw tokens never appear in the keyspace.
func HashToken(token string) [32]byte {
	return sha256.Sum256([]byte(token))
}

// HashCode computes the keyed hash of a one-time passcode. The server-held
// secret keeps a leaked challenge record from being brute-forced offline.
func HashCode(secret []byte, code string) [32]byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(code))

	var sum [32]byte
	copy(sum[:], mac.Sum(nil))
	return sum
}

// NewSecret returns n bytes of cryptographically random key material.
func NewSecret(n int) ([]byte, error) {
	if n < 16 {
		return nil, errors.New("secret too short")
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}
