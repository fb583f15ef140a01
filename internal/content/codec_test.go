package content

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name       string
		plaintext  []byte
		passphrase string
	}{
		{name: "simple", plaintext: []byte("hello questions"), passphrase: "abc123"},
		{name: "empty plaintext", plaintext: []byte{}, passphrase: "abc123"},
		{name: "binary payload", plaintext: []byte{0x50, 0x4B, 0x03, 0x04, 0x00, 0xFF}, passphrase: "s3cret!"},
		{name: "empty passphrase", plaintext: []byte("x"), passphrase: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			blob, err := Encode(tc.plaintext, tc.passphrase)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			if len(blob) != minContainerSize+len(tc.plaintext) {
				t.Fatalf("container length = %d, want %d", len(blob), minContainerSize+len(tc.plaintext))
			}

			got, err := Decode(blob, tc.passphrase)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !bytes.Equal(got, tc.plaintext) {
				t.Fatalf("round trip mismatch: got %q want %q", got, tc.plaintext)
			}
		})
	}
}

func TestDecodeWrongPassphrase(t *testing.T) {
	blob, err := Encode([]byte("confidential rows"), "correct-password")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	_, err = Decode(blob, "wrong-password")
	if !errors.Is(err, ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication, got %v", err)
	}
}

func TestDecodeCorruptedCiphertext(t *testing.T) {
	blob, err := Encode([]byte("confidential rows"), "pw")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	blob[len(blob)-1] ^= 0xFF

	_, err = Decode(blob, "pw")
	if !errors.Is(err, ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication for corrupted tag, got %v", err)
	}
}

func TestDecodeTooShort(t *testing.T) {
	for _, n := range []int{0, 1, 16, 28, minContainerSize - 1} {
		if _, err := Decode(make([]byte, n), "pw"); !errors.Is(err, ErrFormat) {
			t.Fatalf("len=%d: expected ErrFormat, got %v", n, err)
		}
	}
}

func TestEncodeUsesFreshSaltAndNonce(t *testing.T) {
	a, err := Encode([]byte("same input"), "pw")
	if err != nil {
		t.Fatalf("encode a: %v", err)
	}
	b, err := Encode([]byte("same input"), "pw")
	if err != nil {
		t.Fatalf("encode b: %v", err)
	}
	if bytes.Equal(a[:saltSize+nonceSize], b[:saltSize+nonceSize]) {
		t.Fatalf("salt+nonce repeated across encodes")
	}
}
