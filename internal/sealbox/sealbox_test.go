package sealbox_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consortia/consortia/internal/sealbox"
)

func TestSealOpenRoundtrip(t *testing.T) {
	publicKey, privateKey, err := sealbox.GenerateKeypair()
	require.NoError(t, err)

	plaintext := []byte(`{"method":"average","columns":["age"]}`)
	ciphertext, err := sealbox.AgeSealer{}.Seal(plaintext, publicKey)
	require.NoError(t, err)
	assert.NotContains(t, ciphertext, "average")

	opened, err := sealbox.Open(ciphertext, privateKey)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestSealRejectsInvalidKey(t *testing.T) {
	_, err := sealbox.AgeSealer{}.Seal([]byte("data"), "not-a-key")
	require.Error(t, err)
}

func TestOpenRejectsForeignKey(t *testing.T) {
	publicKey, _, err := sealbox.GenerateKeypair()
	require.NoError(t, err)
	_, otherPrivate, err := sealbox.GenerateKeypair()
	require.NoError(t, err)

	ciphertext, err := sealbox.AgeSealer{}.Seal([]byte("data"), publicKey)
	require.NoError(t, err)

	_, err = sealbox.Open(ciphertext, otherPrivate)
	require.Error(t, err)
}

func TestValidatePublicKey(t *testing.T) {
	publicKey, _, err := sealbox.GenerateKeypair()
	require.NoError(t, err)

	assert.NoError(t, sealbox.ValidatePublicKey(publicKey))
	assert.Error(t, sealbox.ValidatePublicKey("age1notakey"))
	assert.Error(t, sealbox.ValidatePublicKey(""))
}
