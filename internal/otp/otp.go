// Package otp provides unbiased random code and token generation backed by
// crypto/rand.
package otp

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const base62Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// GenerateOTP returns a numeric one-time code of the given length. Single
// random bytes are drawn and any byte >= 250 is discarded before reducing
// mod 10, so every digit is equally likely.
func GenerateOTP(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("otp length must be positive, got %d", length)
	}

	digits := make([]byte, 0, length)
	buf := make([]byte, 1)
	for len(digits) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generating random digit: %w", err)
		}
		// 250 is the largest multiple of 10 that fits in a byte.
		if buf[0] >= 250 {
			continue
		}
		digits = append(digits, '0'+buf[0]%10)
	}

	return string(digits), nil
}

// GenerateNonce returns 32 random bytes encoded as base64.
func GenerateNonce() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// GenerateBase62 returns a random string of length n uniform over the
// 62-symbol alphabet. Bytes >= 248 (the largest multiple of 62 in a byte)
// are discarded to avoid modulo bias.
func GenerateBase62(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("base62 length must be positive, got %d", n)
	}

	out := make([]byte, 0, n)
	buf := make([]byte, 1)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generating random byte: %w", err)
		}
		if buf[0] >= 248 {
			continue
		}
		out = append(out, base62Alphabet[buf[0]%62])
	}

	return string(out), nil
}
