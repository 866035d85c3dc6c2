package receipt

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

// On-disk key file layout: a plain hex-encoded Ed25519 seed when no
// passphrase is configured, or "sealed:<hex nonce><hex ciphertext>"
// when INVARIANT_NODE_KEY_PASSPHRASE is set. Sealing derives a
// secretbox key from the passphrase via HKDF-SHA256 rather than using
// the passphrase bytes directly.
const sealedPrefix = "sealed:"

func encodeKeyFile(priv ed25519.PrivateKey, passphrase string) ([]byte, error) {
	seed := priv.Seed()
	if passphrase == "" {
		return []byte(hex.EncodeToString(seed)), nil
	}

	key, err := deriveSealingKey(passphrase)
	if err != nil {
		return nil, err
	}

	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("receipt: generating nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], seed, &nonce, key)
	return []byte(sealedPrefix + hex.EncodeToString(sealed)), nil
}

func decodeKeyFile(raw []byte, passphrase string) (ed25519.PrivateKey, error) {
	s := string(raw)
	if len(s) >= len(sealedPrefix) && s[:len(sealedPrefix)] == sealedPrefix {
		if passphrase == "" {
			return nil, fmt.Errorf("receipt: key file is passphrase-sealed but no passphrase was supplied")
		}
		sealed, err := hex.DecodeString(s[len(sealedPrefix):])
		if err != nil {
			return nil, fmt.Errorf("receipt: malformed sealed key file: %w", err)
		}
		if len(sealed) < 24 {
			return nil, fmt.Errorf("receipt: sealed key file too short")
		}
		var nonce [24]byte
		copy(nonce[:], sealed[:24])

		key, err := deriveSealingKey(passphrase)
		if err != nil {
			return nil, err
		}
		seed, ok := secretbox.Open(nil, sealed[24:], &nonce, key)
		if !ok {
			return nil, fmt.Errorf("receipt: wrong passphrase or corrupted key file")
		}
		return ed25519.NewKeyFromSeed(seed), nil
	}

	seed, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("receipt: malformed key file: %w", err)
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

func deriveSealingKey(passphrase string) (*[32]byte, error) {
	reader := hkdf.New(sha256.New, []byte(passphrase), []byte("invariant-node-key-salt"), []byte("invariant-node-key-seal"))
	var key [32]byte
	if _, err := io.ReadFull(reader, key[:]); err != nil {
		return nil, fmt.Errorf("receipt: deriving sealing key: %w", err)
	}
	return &key, nil
}
