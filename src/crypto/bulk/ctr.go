// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package bulk

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// CTRContext is a streaming AES-CTR cipher context: a caller
// initializes it once with a key and IV, then feeds it successive
// chunks of data across multiple calls. Encryption and decryption under
// CTR mode are the same operation, so a single stream type serves both.
type CTRContext struct {
	stream cipher.Stream
}

// NewCTREncrypt creates a streaming AES-CTR context for encryption. iv
// must equal the cipher's block size (16 bytes for AES).
func NewCTREncrypt(key, iv []byte) (*CTRContext, error) {
	return newCTRContext(key, iv)
}

// NewCTRDecrypt creates a streaming AES-CTR context for decryption. CTR
// mode is symmetric, so this is identical to NewCTREncrypt; it exists
// so encrypting and decrypting call sites read symmetrically.
func NewCTRDecrypt(key, iv []byte) (*CTRContext, error) {
	return newCTRContext(key, iv)
}

func newCTRContext(key, iv []byte) (*CTRContext, error) {
	if len(key) != 16 && len(key) != 32 {
		return nil, fmt.Errorf("bulk: key length must be 16 or 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("bulk: %w", err)
	}
	if len(iv) != block.BlockSize() {
		return nil, fmt.Errorf("bulk: iv length %d does not match block size %d", len(iv), block.BlockSize())
	}

	return &CTRContext{stream: cipher.NewCTR(block, iv)}, nil
}

// Update processes the next chunk of the stream, returning the
// transformed output in a newly allocated slice; chunk itself is left
// unchanged. Calls to Update across a single context must be
// made in order; there is no seeking.
func (c *CTRContext) Update(chunk []byte) []byte {
	out := make([]byte, len(chunk))
	c.stream.XORKeyStream(out, chunk)
	return out
}

// Close releases the context. AES-CTR holds no OS resources, so this is
// a no-op retained so callers can defer Close() uniformly across cipher
// contexts.
func (c *CTRContext) Close() {}
