// Package envelope seals JSON payloads with AES-256 into the
// "hex(iv):hex(ciphertext)" text form shared with the UI.
package envelope

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// KeySize is the only accepted key length (AES-256).
const KeySize = 32

const ivSize = aes.BlockSize

// Mode selects the block cipher mode. Both modes share the envelope layout.
type Mode string

const (
	ModeCBC Mode = "cbc"
	ModeGCM Mode = "gcm"
)

var (
	ErrInvalidKeyLength  = errors.New("encryption key must be 32 bytes")
	ErrMalformedEnvelope = errors.New("malformed envelope")
	ErrDecryptionFailed  = errors.New("decryption failed")
)

var randReader io.Reader = rand.Reader

// ParseMode maps a config value to a Mode. Empty means CBC.
func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(ModeCBC):
		return ModeCBC, nil
	case string(ModeGCM):
		return ModeGCM, nil
	default:
		return "", fmt.Errorf("unknown encryption mode %q", raw)
	}
}

// Encrypt seals plaintext with AES-256-CBC and a fresh random IV.
func Encrypt(plaintext, key []byte) (string, error) {
	return EncryptMode(ModeCBC, plaintext, key)
}

// Decrypt opens a CBC envelope produced by Encrypt.
func Decrypt(env string, key []byte) ([]byte, error) {
	return DecryptMode(ModeCBC, env, key)
}

// EncryptMode seals plaintext using the given mode.
func EncryptMode(mode Mode, plaintext, key []byte) (string, error) {
	block, err := newBlock(key)
	if err != nil {
		return "", err
	}
	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(randReader, iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	var sealed []byte
	switch mode {
	case ModeGCM:
		aead, err := cipher.NewGCMWithNonceSize(block, ivSize)
		if err != nil {
			return "", err
		}
		sealed = aead.Seal(nil, iv, plaintext, nil)
	case ModeCBC, "":
		padded := pad(plaintext)
		sealed = make([]byte, len(padded))
		cipher.NewCBCEncrypter(block, iv).CryptBlocks(sealed, padded)
	default:
		return "", fmt.Errorf("unknown encryption mode %q", mode)
	}
	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(sealed), nil
}

// DecryptMode opens an envelope using the given mode.
func DecryptMode(mode Mode, env string, key []byte) ([]byte, error) {
	block, err := newBlock(key)
	if err != nil {
		return nil, err
	}
	iv, sealed, err := split(env)
	if err != nil {
		return nil, err
	}

	switch mode {
	case ModeGCM:
		aead, err := cipher.NewGCMWithNonceSize(block, ivSize)
		if err != nil {
			return nil, err
		}
		plain, err := aead.Open(nil, iv, sealed, nil)
		if err != nil {
			return nil, ErrDecryptionFailed
		}
		return plain, nil
	case ModeCBC, "":
		if len(sealed) == 0 || len(sealed)%aes.BlockSize != 0 {
			return nil, ErrDecryptionFailed
		}
		out := make([]byte, len(sealed))
		cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, sealed)
		return unpad(out)
	default:
		return nil, fmt.Errorf("unknown encryption mode %q", mode)
	}
}

func newBlock(key []byte) (cipher.Block, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeyLength
	}
	return aes.NewCipher(key)
}

func split(env string) ([]byte, []byte, error) {
	ivHex, ctHex, ok := strings.Cut(strings.TrimSpace(env), ":")
	if !ok {
		return nil, nil, fmt.Errorf("%w: missing ':' delimiter", ErrMalformedEnvelope)
	}
	iv, err := hex.DecodeString(ivHex)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: iv is not hex", ErrMalformedEnvelope)
	}
	if len(iv) != ivSize {
		return nil, nil, fmt.Errorf("%w: iv must be %d bytes", ErrMalformedEnvelope, ivSize)
	}
	sealed, err := hex.DecodeString(ctHex)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: ciphertext is not hex", ErrMalformedEnvelope)
	}
	return iv, sealed, nil
}

func pad(data []byte) []byte {
	n := aes.BlockSize - len(data)%aes.BlockSize
	return append(append([]byte(nil), data...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrDecryptionFailed
	}
	n := int(data[len(data)-1])
	if n == 0 || n > aes.BlockSize || n > len(data) {
		return nil, ErrDecryptionFailed
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrDecryptionFailed
		}
	}
	return data[:len(data)-n], nil
}
