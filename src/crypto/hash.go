// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package crypto

import (
	"bytes"
	"crypto"
	"io"

	// Register the SHA-2 family for crypto.Hash.New.
	_ "crypto/sha256"
	_ "crypto/sha512"
)

// hashBufferSize is the chunk size HashBuf and HashFile stream their
// input through rather than loading the whole input into the hash state
// at once.
const hashBufferSize = 4096

// HashBuf hashes buf with the given algorithm, streaming it through in
// hashBufferSize chunks.
func HashBuf(h crypto.Hash, buf []byte) ([]byte, error) {
	return HashFile(h, bytes.NewReader(buf))
}

// HashFile hashes the remaining contents of r with the given algorithm,
// streaming it through in hashBufferSize chunks.
func HashFile(h crypto.Hash, r io.Reader) ([]byte, error) {
	if !h.Available() {
		return nil, newError(KindUnsupported, nil, "hash algorithm %v is not available", h)
	}

	hasher := h.New()
	buf := make([]byte, hashBufferSize)

	for {
		n, err := r.Read(buf)
		if n > 0 {
			hasher.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, newError(KindIO, err, "could not read input")
		}
	}

	return hasher.Sum(nil), nil
}
