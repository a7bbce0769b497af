package envelope

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Codec seals JSON values with a fixed key and mode.
type Codec struct {
	Key  []byte
	Mode Mode
}

// NewCodec validates the key before any payload is sealed.
func NewCodec(key []byte, mode Mode) (*Codec, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeyLength
	}
	if mode == "" {
		mode = ModeCBC
	}
	return &Codec{Key: append([]byte(nil), key...), Mode: mode}, nil
}

// Seal marshals v to JSON and encrypts it.
func (c *Codec) Seal(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return EncryptMode(c.Mode, raw, c.Key)
}

// Open decrypts an envelope and returns the JSON it carried.
func (c *Codec) Open(env string) (json.RawMessage, error) {
	plain, err := DecryptMode(c.Mode, env, c.Key)
	if err != nil {
		return nil, err
	}
	if !json.Valid(plain) {
		return nil, ErrDecryptionFailed
	}
	return json.RawMessage(plain), nil
}

// ResolveKey decodes a hex key. An empty value yields a random key and
// generated=true; such a key does not survive a restart.
func ResolveKey(hexKey string) ([]byte, bool, error) {
	hexKey = strings.TrimSpace(hexKey)
	if hexKey == "" {
		key := make([]byte, KeySize)
		if _, err := io.ReadFull(rand.Reader, key); err != nil {
			return nil, false, fmt.Errorf("generate key: %w", err)
		}
		return key, true, nil
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, false, fmt.Errorf("decode ENCRYPTION_KEY: %w", err)
	}
	if len(key) != KeySize {
		return nil, false, ErrInvalidKeyLength
	}
	return key, false, nil
}
