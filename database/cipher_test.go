package database

import (
	"crypto/rand"
	"testing"

	"github.com/mjuillard/veil/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCipher(t *testing.T) *Cipher {
	salt := make([]byte, saltLen)
	_, err := rand.Read(salt)
	require.NoError(t, err)

	cipher, err := NewCipher(testPassphrase, salt)
	require.NoError(t, err, "Expected NewCipher to not return an error")
	return cipher
}

func TestNewCipher(t *testing.T) {
	t.Run("Valid call NewCipher", func(t *testing.T) {
		cipher := newTestCipher(t)
		assert.NotNil(t, cipher, "Expected NewCipher to return a non-nil cipher")
	})

	t.Run("Invalid call NewCipher with short salt", func(t *testing.T) {
		_, err := NewCipher(testPassphrase, []byte("short"))
		assert.Error(t, err, "Expected error when creating cipher with short salt")

		encErr := &model.EncryptionError{}
		require.ErrorAs(t, err, &encErr, "Expected an EncryptionError")
		assert.Equal(t, "derive", encErr.Op, "Expected the derive operation to fail")
	})
}

func TestCipherEncryptDecrypt(t *testing.T) {
	cipher := newTestCipher(t)

	t.Run("Round trip", func(t *testing.T) {
		sealed, err := cipher.Encrypt("Marie Dubois")
		assert.NoError(t, err, "Expected Encrypt to not return an error")
		assert.NotContains(t, string(sealed), "Marie", "Expected ciphertext to not contain the plaintext")

		plaintext, err := cipher.Decrypt(sealed)
		assert.NoError(t, err, "Expected Decrypt to not return an error")
		assert.Equal(t, "Marie Dubois", plaintext, "Expected decrypted value to match the original")
	})

	t.Run("Empty value stays empty", func(t *testing.T) {
		sealed, err := cipher.Encrypt("")
		assert.NoError(t, err, "Expected Encrypt to not return an error")
		assert.Nil(t, sealed, "Expected empty plaintext to produce no ciphertext")

		plaintext, err := cipher.Decrypt(nil)
		assert.NoError(t, err, "Expected Decrypt to not return an error")
		assert.Empty(t, plaintext, "Expected empty ciphertext to produce no plaintext")
	})

	t.Run("Nonce makes ciphertexts differ", func(t *testing.T) {
		first, err := cipher.Encrypt("Marie Dubois")
		require.NoError(t, err)
		second, err := cipher.Encrypt("Marie Dubois")
		require.NoError(t, err)
		assert.NotEqual(t, first, second, "Expected two encryptions of the same value to differ")
	})

	t.Run("Tampered ciphertext fails", func(t *testing.T) {
		sealed, err := cipher.Encrypt("Marie Dubois")
		require.NoError(t, err)
		sealed[len(sealed)-1] ^= 0xff

		_, err = cipher.Decrypt(sealed)
		assert.Error(t, err, "Expected Decrypt to fail on tampered ciphertext")

		encErr := &model.EncryptionError{}
		require.ErrorAs(t, err, &encErr, "Expected an EncryptionError")
		assert.Equal(t, "decrypt", encErr.Op, "Expected the decrypt operation to fail")
	})

	t.Run("Truncated ciphertext fails", func(t *testing.T) {
		_, err := cipher.Decrypt([]byte{0x01, 0x02})
		assert.Error(t, err, "Expected Decrypt to fail on truncated ciphertext")
	})
}

func TestCipherNameKey(t *testing.T) {
	cipher := newTestCipher(t)

	t.Run("Deterministic per name", func(t *testing.T) {
		first := cipher.NameKey("starwars", model.EntityTypePerson, "marie dubois")
		second := cipher.NameKey("starwars", model.EntityTypePerson, "marie dubois")
		assert.Equal(t, first, second, "Expected the same name to produce the same key")
		assert.Len(t, first, 64, "Expected a hex encoded SHA-256 key")
	})

	t.Run("Differs by theme and type", func(t *testing.T) {
		base := cipher.NameKey("starwars", model.EntityTypePerson, "marie dubois")
		otherTheme := cipher.NameKey("olympus", model.EntityTypePerson, "marie dubois")
		otherType := cipher.NameKey("starwars", model.EntityTypeLocation, "marie dubois")
		assert.NotEqual(t, base, otherTheme, "Expected keys to differ across themes")
		assert.NotEqual(t, base, otherType, "Expected keys to differ across entity types")
	})

	t.Run("Differs by passphrase", func(t *testing.T) {
		other := newTestCipher(t)
		first := cipher.NameKey("starwars", model.EntityTypePerson, "marie dubois")
		second := other.NameKey("starwars", model.EntityTypePerson, "marie dubois")
		assert.NotEqual(t, first, second, "Expected keys to differ across derived keys")
	})
}

func TestNewStoreCipher(t *testing.T) {
	t.Run("Initializes a new store", func(t *testing.T) {
		database := initDB(t)

		cipher, err := NewStoreCipher(database, testPassphrase)
		assert.NoError(t, err, "Expected NewStoreCipher to not return an error")
		require.NotNil(t, cipher, "Expected NewStoreCipher to return a non-nil cipher")

		var count int
		err = database.Instance.QueryRow(`SELECT COUNT(*) FROM veil_meta`).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 3, count, "Expected schema version, salt and canary in the meta table")
	})

	t.Run("Reopens with the same passphrase", func(t *testing.T) {
		database := initDB(t)

		first, err := NewStoreCipher(database, testPassphrase)
		require.NoError(t, err)

		second, err := NewStoreCipher(database, testPassphrase)
		assert.NoError(t, err, "Expected reopening with the same passphrase to succeed")
		require.NotNil(t, second)

		sealed, err := first.Encrypt("Marie Dubois")
		require.NoError(t, err)
		plaintext, err := second.Decrypt(sealed)
		assert.NoError(t, err, "Expected the reopened cipher to decrypt existing values")
		assert.Equal(t, "Marie Dubois", plaintext, "Expected both ciphers to share the derived key")
	})

	t.Run("Rejects a wrong passphrase", func(t *testing.T) {
		database := initDB(t)

		_, err := NewStoreCipher(database, testPassphrase)
		require.NoError(t, err)

		_, err = NewStoreCipher(database, "not the passphrase")
		assert.Error(t, err, "Expected a wrong passphrase to be rejected")

		encErr := &model.EncryptionError{}
		require.ErrorAs(t, err, &encErr, "Expected an EncryptionError")
		assert.Equal(t, "verify", encErr.Op, "Expected the canary verification to fail")
	})

	t.Run("Invalid call NewStoreCipher with nil database", func(t *testing.T) {
		_, err := NewStoreCipher(nil, testPassphrase)
		assert.Error(t, err, "Expected error when opening store cipher with nil database")
		assert.Contains(t, err.Error(), "database connection is nil", "Expected specific error message for nil database connection")
	})
}
