// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package wrap

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"testing"
)

func mustGenerateRSAKey(t *testing.T, bits int) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		t.Fatalf("could not generate rsa key: %v", err)
	}
	return key
}

func TestSymmetricWrapRoundTrip(t *testing.T) {
	for _, size := range []int{16, 32, 64, 1024} {
		kek := make([]byte, 32)
		plain := bytes.Repeat([]byte{0x41}, size)

		wrapped, err := KeyWrap(kek, plain)
		if err != nil {
			t.Fatalf("size=%d: wrap: %v", size, err)
		}
		if len(wrapped) != len(plain)+8 {
			t.Fatalf("size=%d: wrapped length = %d, want %d", size, len(wrapped), len(plain)+8)
		}

		got, err := KeyUnwrap(kek, wrapped)
		if err != nil {
			t.Fatalf("size=%d: unwrap: %v", size, err)
		}
		if !bytes.Equal(got, plain) {
			t.Fatalf("size=%d: round trip mismatch", size)
		}
	}
}

// A 32-byte zero KEK wrapping 16 bytes of 0x41 yields a 24-byte
// ciphertext (8 bytes of wrap overhead) that unwraps back to the
// original 16 bytes.
func TestSymmetricWrapFixedVector(t *testing.T) {
	kek := make([]byte, 32)
	plain := bytes.Repeat([]byte{0x41}, 16)

	wrapped, err := KeyWrap(kek, plain)
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}
	if len(wrapped) != 24 {
		t.Fatalf("wrapped length = %d, want 24", len(wrapped))
	}

	got, err := KeyUnwrap(kek, wrapped)
	if err != nil {
		t.Fatalf("unwrap: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("round trip mismatch: got %x want %x", got, plain)
	}
}

func TestSymmetricWrapBadKEKLen(t *testing.T) {
	if _, err := KeyWrap(make([]byte, 16), make([]byte, 16)); err == nil {
		t.Fatal("expected error for 16-byte kek")
	}
}

func TestSymmetricUnwrapDetectsCorruption(t *testing.T) {
	kek := make([]byte, 32)
	plain := bytes.Repeat([]byte{0x41}, 16)

	wrapped, err := KeyWrap(kek, plain)
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}
	wrapped[0] ^= 0xFF

	if _, err := KeyUnwrap(kek, wrapped); err == nil {
		t.Fatal("expected integrity check failure on corrupted wrapped key")
	}
}

func TestHybridWrapRoundTrip(t *testing.T) {
	key := mustGenerateRSAKey(t, 2048)

	for _, size := range []int{1, 47, 4096, 65536} {
		plain := make([]byte, size)
		for i := range plain {
			plain[i] = byte(i)
		}

		env, err := Wrap(&key.PublicKey, plain)
		if err != nil {
			t.Fatalf("size=%d: wrap: %v", size, err)
		}

		got, err := Unwrap(key, env)
		if err != nil {
			t.Fatalf("size=%d: unwrap: %v", size, err)
		}
		if !bytes.Equal(got, plain) {
			t.Fatalf("size=%d: round trip mismatch", size)
		}
	}
}

func TestEnvelopeMarshalUnmarshalRoundTrip(t *testing.T) {
	key := mustGenerateRSAKey(t, 2048)
	env, err := Wrap(&key.PublicKey, []byte("hello wrapped world"))
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}

	wire := env.Marshal()
	if len(wire) != 8+len(env.IV)+len(env.EK)+len(env.CT) {
		t.Fatalf("marshaled length mismatch")
	}

	got, err := UnmarshalEnvelope(wire)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !bytes.Equal(got.IV, env.IV) || !bytes.Equal(got.EK, env.EK) || !bytes.Equal(got.CT, env.CT) {
		t.Fatal("unmarshal did not reproduce original envelope fields")
	}
}

func TestUnmarshalEnvelopeRejectsShortBuffer(t *testing.T) {
	if _, err := UnmarshalEnvelope([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for buffer shorter than the 8-byte header")
	}
}

func TestUnmarshalEnvelopeRejectsLengthMismatch(t *testing.T) {
	key := mustGenerateRSAKey(t, 2048)
	env, err := Wrap(&key.PublicKey, []byte("payload"))
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}

	wire := env.Marshal()
	truncated := wire[:len(wire)-1]

	if _, err := UnmarshalEnvelope(truncated); err == nil {
		t.Fatal("expected error for truncated envelope")
	}
}
