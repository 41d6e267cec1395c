package siwe

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"
)

// SignatureLength is the byte length of an Ethereum wallet signature:
// r (32) || s (32) || v (1).
const SignatureLength = 65

// HashPersonalMessage applies the EIP-191 personal-message prefix and
// returns the Keccak-256 digest wallets actually sign.
func HashPersonalMessage(message string) []byte {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(prefixed))
	return h.Sum(nil)
}

// RecoverPublicKey recovers the uncompressed secp256k1 public key (65
// bytes, 0x04 format prefix) that produced the signature (r, s, recoveryID)
// over messageHash. It is a pure function with no shared state.
func RecoverPublicKey(messageHash, r, s []byte, recoveryID byte) ([]byte, error) {
	if len(r) != 32 || len(s) != 32 {
		return nil, fmt.Errorf("invalid signature component length: r=%d s=%d", len(r), len(s))
	}
	if recoveryID > 1 {
		return nil, fmt.Errorf("invalid recovery id %d", recoveryID)
	}

	// RecoverCompact expects [v+27, r, s].
	compact := make([]byte, SignatureLength)
	compact[0] = 27 + recoveryID
	copy(compact[1:33], r)
	copy(compact[33:65], s)

	pub, _, err := ecdsa.RecoverCompact(compact, messageHash)
	if err != nil {
		return nil, fmt.Errorf("recovering public key: %w", err)
	}

	return pub.SerializeUncompressed(), nil
}

// RecoverAddress derives the Ethereum address that signed the message with
// the given 65-byte signature.
func RecoverAddress(message string, signature []byte) (string, error) {
	if len(signature) != SignatureLength {
		return "", fmt.Errorf("invalid signature length %d, want %d", len(signature), SignatureLength)
	}

	v := signature[64]
	if v != 27 && v != 28 {
		return "", fmt.Errorf("invalid recovery byte %d", v)
	}

	hash := HashPersonalMessage(message)
	pub, err := RecoverPublicKey(hash, signature[:32], signature[32:64], v-27)
	if err != nil {
		return "", err
	}

	// The address is the last 20 bytes of the Keccak-256 hash of the raw
	// 64-byte public key (the 0x04 format prefix is dropped).
	h := sha3.NewLegacyKeccak256()
	h.Write(pub[1:])
	digest := h.Sum(nil)

	return "0x" + hex.EncodeToString(digest[12:]), nil
}

// ParseSignature decodes a hex wallet signature, with or without the 0x
// prefix.
func ParseSignature(sigHex string) ([]byte, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("decoding signature hex: %w", err)
	}
	return sig, nil
}

// VerifySignature reports whether the signature over message was produced
// by the claimed address. The comparison is case-insensitive and every
// parse or recovery failure yields false; a malformed proof never produces
// an error or a panic.
func VerifySignature(address, sigHex, message string) bool {
	sig, err := ParseSignature(sigHex)
	if err != nil {
		return false
	}

	recovered, err := RecoverAddress(message, sig)
	if err != nil {
		return false
	}

	return strings.EqualFold(recovered, address)
}
