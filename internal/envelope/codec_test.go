package envelope

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCodecSealOpen(t *testing.T) {
	t.Parallel()

	for _, mode := range []Mode{ModeCBC, ModeGCM} {
		codec, err := NewCodec(testKey(), mode)
		if err != nil {
			t.Fatalf("NewCodec: %v", err)
		}
		verdict := map[string]any{
			"prediction": "liable",
			"confidence": 0.7,
			"precedents": []any{"A v B"},
		}
		env, err := codec.Seal(verdict)
		if err != nil {
			t.Fatalf("Seal: %v", err)
		}
		raw, err := codec.Open(env)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		var got map[string]any
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if diff := cmp.Diff(verdict, got); diff != "" {
			t.Fatalf("%s verdict mismatch (-want +got):\n%s", mode, diff)
		}
	}
}

func TestNewCodecRejectsShortKey(t *testing.T) {
	t.Parallel()

	if _, err := NewCodec(make([]byte, 16), ModeCBC); !errors.Is(err, ErrInvalidKeyLength) {
		t.Fatalf("expected ErrInvalidKeyLength, got %v", err)
	}
}

func TestResolveKey(t *testing.T) {
	t.Parallel()

	key, generated, err := ResolveKey("")
	if err != nil {
		t.Fatalf("ResolveKey empty: %v", err)
	}
	if !generated || len(key) != KeySize {
		t.Fatalf("expected generated 32 byte key, got generated=%v len=%d", generated, len(key))
	}

	configured := strings.Repeat("0f", KeySize)
	key, generated, err = ResolveKey(configured)
	if err != nil {
		t.Fatalf("ResolveKey configured: %v", err)
	}
	if generated || hex.EncodeToString(key) != configured {
		t.Fatalf("expected configured key to be decoded as-is")
	}

	if _, _, err := ResolveKey(strings.Repeat("0f", 16)); !errors.Is(err, ErrInvalidKeyLength) {
		t.Fatalf("expected ErrInvalidKeyLength for 16 byte key, got %v", err)
	}
	if _, _, err := ResolveKey("not-hex"); err == nil {
		t.Fatalf("expected error for non-hex key")
	}
}
