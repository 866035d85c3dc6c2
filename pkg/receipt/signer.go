// Package receipt builds, serialises, and signs the on-disk receipt
// envelope that binds a sealed Turn to a verifiable Ed25519 signature.
package receipt

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
)

// Signer holds a process-wide Ed25519 keypair. It is a value
// constructed once at process start and passed, not imported, through
// the boundary — mutation after construction is not exposed.
type Signer struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewEphemeralSigner generates a fresh keypair that lives only for
// this process.
func NewEphemeralSigner() (*Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("receipt: key generation failed: %w", err)
	}
	return &Signer{priv: priv, pub: pub}, nil
}

// LoadOrCreateSigner loads a persisted key from path, or generates and
// persists a new one if path doesn't exist. An empty path behaves
// like NewEphemeralSigner. If passphrase is non-empty, the key is
// sealed at rest (see keystore.go).
func LoadOrCreateSigner(path, passphrase string) (*Signer, error) {
	if path == "" {
		return NewEphemeralSigner()
	}

	if raw, err := os.ReadFile(path); err == nil { //nolint:gosec // path is operator-configured
		priv, perr := decodeKeyFile(raw, passphrase)
		if perr != nil {
			return nil, fmt.Errorf("receipt: loading node key %s: %w", path, perr)
		}
		return &Signer{priv: priv, pub: priv.Public().(ed25519.PublicKey)}, nil
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("receipt: key generation failed: %w", err)
	}
	encoded, err := encodeKeyFile(priv, passphrase)
	if err != nil {
		return nil, fmt.Errorf("receipt: sealing node key: %w", err)
	}
	if err := os.WriteFile(path, encoded, 0o600); err != nil {
		return nil, fmt.Errorf("receipt: persisting node key %s: %w", path, err)
	}
	return &Signer{priv: priv, pub: pub}, nil
}

// PublicKeyHex returns the signer's public key, hex-encoded — the
// receipt carries this so verification is self-contained.
func (s *Signer) PublicKeyHex() string {
	return hex.EncodeToString(s.pub)
}

// Sign signs proofID (the receipt's meta.proof_id) and returns the
// hex-encoded signature.
func (s *Signer) Sign(proofID string) string {
	sig := ed25519.Sign(s.priv, []byte(proofID))
	return hex.EncodeToString(sig)
}

// Verify checks a hex signature against a hex public key and the
// signed proof id. It takes no receiver: replay verification must be
// able to check a signature using only what the receipt itself
// carries, not the process's own signer.
func Verify(pubKeyHex, sigHex, proofID string) (bool, error) {
	pubKey, err := hex.DecodeString(pubKeyHex)
	if err != nil {
		return false, fmt.Errorf("receipt: invalid public key hex: %w", err)
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return false, fmt.Errorf("receipt: invalid signature hex: %w", err)
	}
	if len(pubKey) != ed25519.PublicKeySize {
		return false, fmt.Errorf("receipt: invalid public key size %d", len(pubKey))
	}
	return ed25519.Verify(pubKey, []byte(proofID), sig), nil
}
