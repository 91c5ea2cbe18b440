// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package wrap

import (
	"crypto/aes"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
)

// defaultIV is the fixed AES key wrap default integrity check value
// from RFC 3394 §2.2.3.1.
var defaultIV = [8]byte{0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6}

// KeyWrap wraps key (a multiple of 8 bytes, at least 16) under kek
// using AES-256 key wrap (RFC 3394) with the fixed default IV,
// implemented directly from the RFC over the stdlib AES block cipher.
func KeyWrap(kek, key []byte) ([]byte, error) {
	if len(kek) != 32 {
		return nil, fmt.Errorf("wrap: key encryption key must be 32 bytes, got %d", len(kek))
	}
	if len(key) < 16 || len(key)%8 != 0 {
		return nil, fmt.Errorf("wrap: key to wrap must be a multiple of 8 bytes, at least 16, got %d", len(key))
	}

	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, fmt.Errorf("wrap: could not create cipher: %w", err)
	}

	n := len(key) / 8
	r := make([][8]byte, n+1)
	copy(r[0][:], defaultIV[:])
	for i := 0; i < n; i++ {
		copy(r[i+1][:], key[i*8:(i+1)*8])
	}

	var buf [16]byte
	for j := 0; j <= 5; j++ {
		for i := 1; i <= n; i++ {
			copy(buf[:8], r[0][:])
			copy(buf[8:], r[i][:])
			block.Encrypt(buf[:], buf[:])

			t := uint64(n*j + i)
			var tb [8]byte
			binary.BigEndian.PutUint64(tb[:], t)
			for k := range r[0] {
				r[0][k] = buf[k] ^ tb[k]
			}
			copy(r[i][:], buf[8:])
		}
	}

	out := make([]byte, (n+1)*8)
	copy(out[:8], r[0][:])
	for i := 1; i <= n; i++ {
		copy(out[i*8:(i+1)*8], r[i][:])
	}

	return out, nil
}

// KeyUnwrap reverses KeyWrap, returning an error if the integrity check
// value does not match the fixed default IV.
func KeyUnwrap(kek, wrapped []byte) ([]byte, error) {
	if len(kek) != 32 {
		return nil, fmt.Errorf("wrap: key encryption key must be 32 bytes, got %d", len(kek))
	}
	if len(wrapped) < 24 || len(wrapped)%8 != 0 {
		return nil, fmt.Errorf("wrap: wrapped key must be a multiple of 8 bytes, at least 24, got %d", len(wrapped))
	}

	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, fmt.Errorf("wrap: could not create cipher: %w", err)
	}

	n := len(wrapped)/8 - 1
	r := make([][8]byte, n+1)
	copy(r[0][:], wrapped[:8])
	for i := 0; i < n; i++ {
		copy(r[i+1][:], wrapped[(i+1)*8:(i+2)*8])
	}

	var buf [16]byte
	for j := 5; j >= 0; j-- {
		for i := n; i >= 1; i-- {
			t := uint64(n*j + i)
			var tb [8]byte
			binary.BigEndian.PutUint64(tb[:], t)

			var a [8]byte
			for k := range a {
				a[k] = r[0][k] ^ tb[k]
			}

			copy(buf[:8], a[:])
			copy(buf[8:], r[i][:])
			block.Decrypt(buf[:], buf[:])

			copy(r[0][:], buf[:8])
			copy(r[i][:], buf[8:])
		}
	}

	if subtle.ConstantTimeCompare(r[0][:], defaultIV[:]) != 1 {
		return nil, fmt.Errorf("wrap: integrity check failed")
	}

	out := make([]byte, n*8)
	for i := 1; i <= n; i++ {
		copy(out[(i-1)*8:i*8], r[i][:])
	}

	return out, nil
}
