package database

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/mjuillard/veil/helper"
	"github.com/mjuillard/veil/model"
	loadSql "github.com/mjuillard/veil/sql"
	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for passphrase key derivation. Changing them after
// stores exist would orphan every mapping, so they are fixed.
const (
	kdfTime    = 1
	kdfMemory  = 64 * 1024
	kdfThreads = 4
	kdfKeyLen  = 64
	saltLen    = 16
)

// canaryValue is sealed into a new store; opening it again proves the
// passphrase matches before any mapping row is touched.
const canaryValue = "veil-canary-v1"

// SchemaVersion is written into new stores and checked on open.
const SchemaVersion = "1"

// Cipher encrypts mapping fields and derives the blind index keys.
// The first half of the derived key encrypts, the second half keys the
// HMAC used for name lookups.
type Cipher struct {
	aead   cipher.AEAD
	macKey []byte
}

// NewCipher derives the field cipher from a passphrase and salt.
func NewCipher(passphrase string, salt []byte) (*Cipher, error) {
	if len(salt) != saltLen {
		return nil, model.NewEncryptionError("derive", fmt.Errorf("salt must be %d bytes, got %d", saltLen, len(salt)))
	}

	key := argon2.IDKey([]byte(passphrase), salt, kdfTime, kdfMemory, kdfThreads, kdfKeyLen)

	block, err := aes.NewCipher(key[:32])
	if err != nil {
		return nil, model.NewEncryptionError("derive", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, model.NewEncryptionError("derive", err)
	}

	return &Cipher{aead: aead, macKey: key[32:]}, nil
}

// NewStoreCipher opens or initializes the encryption state of a store.
// New stores get a fresh salt, the sealed canary and the schema version;
// existing stores have their canary verified, so a wrong passphrase fails
// here and nowhere else.
func NewStoreCipher(db *helper.Database, passphrase string) (*Cipher, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	err := loadSql.LoadMetaSql(db.Instance, false)
	if err != nil {
		return nil, helper.NewError("load meta sql", err)
	}

	salt, err := selectMeta(db.Instance, "kdf_salt")
	if err != nil {
		return nil, helper.NewError("read salt", err)
	}

	if salt == nil {
		return initStoreCipher(db, passphrase)
	}

	c, err := NewCipher(passphrase, salt)
	if err != nil {
		return nil, err
	}

	sealed, err := selectMeta(db.Instance, "canary")
	if err != nil {
		return nil, helper.NewError("read canary", err)
	}
	if sealed == nil {
		return nil, model.NewEncryptionError("verify", fmt.Errorf("store has a salt but no canary"))
	}
	if err := c.verifyCanary(sealed); err != nil {
		return nil, err
	}

	db.Logger.Debug("Verified store passphrase")

	return c, nil
}

func initStoreCipher(db *helper.Database, passphrase string) (*Cipher, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, model.NewEncryptionError("salt", err)
	}

	c, err := NewCipher(passphrase, salt)
	if err != nil {
		return nil, err
	}

	sealed, err := c.Encrypt(canaryValue)
	if err != nil {
		return nil, err
	}

	tx, err := db.Instance.Begin()
	if err != nil {
		return nil, helper.NewError("begin", err)
	}
	defer tx.Rollback()

	for key, value := range map[string][]byte{
		"schema_version": []byte(SchemaVersion),
		"kdf_salt":       salt,
		"canary":         sealed,
	} {
		_, err = tx.Exec(`INSERT INTO veil_meta (key, value) VALUES (?, ?)`, key, value)
		if err != nil {
			return nil, helper.NewError("write meta", err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return nil, helper.NewError("commit", err)
	}

	db.Logger.Info("Initialized new encrypted store")

	return c, nil
}

func selectMeta(db *sql.DB, key string) ([]byte, error) {
	var value []byte
	err := db.QueryRow(`SELECT value FROM veil_meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Encrypt seals a value. The random nonce is prepended to the ciphertext.
// Empty values stay empty so optional columns remain NULL.
func (c *Cipher) Encrypt(plaintext string) ([]byte, error) {
	if plaintext == "" {
		return nil, nil
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, model.NewEncryptionError("encrypt", err)
	}
	return c.aead.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

// Decrypt opens a value sealed by Encrypt.
func (c *Cipher) Decrypt(ciphertext []byte) (string, error) {
	if len(ciphertext) == 0 {
		return "", nil
	}
	if len(ciphertext) < c.aead.NonceSize() {
		return "", model.NewEncryptionError("decrypt", fmt.Errorf("ciphertext shorter than nonce"))
	}
	nonce, sealed := ciphertext[:c.aead.NonceSize()], ciphertext[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", model.NewEncryptionError("decrypt", err)
	}
	return string(plaintext), nil
}

// NameKey computes the deterministic lookup key for a folded name within
// a theme and type. Equality on this value finds a row without
// decrypting anything.
func (c *Cipher) NameKey(theme string, entityType model.EntityType, foldedName string) string {
	mac := hmac.New(sha256.New, c.macKey)
	mac.Write([]byte(theme))
	mac.Write([]byte{0})
	mac.Write([]byte(entityType))
	mac.Write([]byte{0})
	mac.Write([]byte(foldedName))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Cipher) verifyCanary(sealed []byte) error {
	value, err := c.Decrypt(sealed)
	if err != nil || value != canaryValue {
		return model.NewEncryptionError("verify", fmt.Errorf("passphrase does not match store"))
	}
	return nil
}
