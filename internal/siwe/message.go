// Package siwe implements the Sign-In with Ethereum (EIP-4361) message
// format and EIP-191 personal-message signature recovery.
package siwe

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNonceNotFound is returned when a message carries no Nonce line.
var ErrNonceNotFound = errors.New("siwe message has no nonce")

// Message holds the fields of an EIP-4361 message. The rendered text is
// hashed during verification and must therefore be byte-exact between
// construction and verification.
type Message struct {
	Domain         string
	Address        string
	Statement      string
	URI            string
	Version        string
	ChainID        int
	Nonce          string
	IssuedAt       time.Time
	ExpirationTime time.Time
	NotBefore      time.Time
	RequestID      string
	Resources      []string
}

// Build renders the message in the exact EIP-4361 line order.
func (m Message) Build() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s wants you to sign in with your Ethereum account:\n", m.Domain)
	fmt.Fprintf(&b, "%s\n", m.Address)
	b.WriteString("\n")

	if m.Statement != "" {
		fmt.Fprintf(&b, "%s\n\n", m.Statement)
	}

	fmt.Fprintf(&b, "URI: %s\n", m.URI)

	version := m.Version
	if version == "" {
		version = "1"
	}
	fmt.Fprintf(&b, "Version: %s\n", version)

	fmt.Fprintf(&b, "Chain ID: %d\n", m.ChainID)
	fmt.Fprintf(&b, "Nonce: %s\n", m.Nonce)
	fmt.Fprintf(&b, "Issued At: %s", m.IssuedAt.UTC().Format(time.RFC3339))

	if !m.ExpirationTime.IsZero() {
		fmt.Fprintf(&b, "\nExpiration Time: %s", m.ExpirationTime.UTC().Format(time.RFC3339))
	}
	if !m.NotBefore.IsZero() {
		fmt.Fprintf(&b, "\nNot Before: %s", m.NotBefore.UTC().Format(time.RFC3339))
	}
	if m.RequestID != "" {
		fmt.Fprintf(&b, "\nRequest ID: %s", m.RequestID)
	}
	if len(m.Resources) > 0 {
		b.WriteString("\nResources:")
		for _, r := range m.Resources {
			fmt.Fprintf(&b, "\n- %s", r)
		}
	}

	return b.String()
}

// ParseNonce extracts the value of the "Nonce:" line from a rendered
// message.
func ParseNonce(message string) (string, error) {
	for _, line := range strings.Split(message, "\n") {
		if nonce, ok := strings.CutPrefix(line, "Nonce: "); ok {
			nonce = strings.TrimSpace(nonce)
			if nonce == "" {
				return "", ErrNonceNotFound
			}
			return nonce, nil
		}
	}
	return "", ErrNonceNotFound
}
