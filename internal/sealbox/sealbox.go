// Package sealbox encrypts task inputs to an organization's public key.
//
// Organizations publish age X25519 public keys (age1... format). The relay
// seals each organization's private input to that key before anything
// leaves the node boundary, so the coordinator and other organizations only
// ever see ciphertext. Ciphertext is base64-encoded so it can be carried in
// JSON payload fields.
package sealbox

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"

	"filippo.io/age"
)

// Sealer encrypts plaintext to a single recipient public key.
type Sealer interface {
	Seal(plaintext []byte, publicKey string) (string, error)
}

// AgeSealer implements Sealer with age X25519 recipients.
type AgeSealer struct{}

// Seal encrypts plaintext to the recipient's public key and returns the
// ciphertext as a base64 string.
func (AgeSealer) Seal(plaintext []byte, publicKey string) (string, error) {
	recipient, err := age.ParseX25519Recipient(publicKey)
	if err != nil {
		return "", fmt.Errorf("sealbox: parsing recipient key: %w", err)
	}
	var buf bytes.Buffer
	writer, err := age.Encrypt(&buf, recipient)
	if err != nil {
		return "", fmt.Errorf("sealbox: creating encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return "", fmt.Errorf("sealbox: writing plaintext: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("sealbox: finalizing encryption: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Open decrypts a base64 ciphertext with the holder's private key. Used by
// node-side consumers and tests; the relay itself only seals.
func Open(ciphertext string, privateKey string) ([]byte, error) {
	identity, err := age.ParseX25519Identity(privateKey)
	if err != nil {
		return nil, fmt.Errorf("sealbox: parsing private key: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("sealbox: decoding ciphertext: %w", err)
	}
	reader, err := age.Decrypt(bytes.NewReader(raw), identity)
	if err != nil {
		return nil, fmt.Errorf("sealbox: decrypting: %w", err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("sealbox: reading plaintext: %w", err)
	}
	return plaintext, nil
}

// GenerateKeypair returns a new (publicKey, privateKey) pair. The private
// key stays on the organization's node; only the public key is uploaded to
// the coordinator.
func GenerateKeypair() (publicKey, privateKey string, err error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return "", "", fmt.Errorf("sealbox: generating keypair: %w", err)
	}
	return identity.Recipient().String(), identity.String(), nil
}

// ValidatePublicKey reports whether the string is a parseable age public key.
func ValidatePublicKey(publicKey string) error {
	if _, err := age.ParseX25519Recipient(publicKey); err != nil {
		return fmt.Errorf("sealbox: invalid public key: %w", err)
	}
	return nil
}
