// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

// Package bulk implements the trust core's bulk cipher service:
// one-shot AES-ECB encryption/decryption with optional PKCS#7 padding,
// and a streaming AES-CTR cipher context.
//
// Go's crypto/cipher deliberately has no ECB mode; it is implemented
// here directly over cipher.Block.
package bulk

import (
	"crypto/aes"
	"fmt"
)

// ecbCipher is the subset of cipher.Block that ECB mode needs; running
// it independently over successive blocks is the entire ECB algorithm.
type ecbCipher interface {
	BlockSize() int
	Encrypt(dst, src []byte)
	Decrypt(dst, src []byte)
}

func cryptECB(block ecbCipher, dst, src []byte, encrypt bool) {
	bs := block.BlockSize()
	for len(src) > 0 {
		if encrypt {
			block.Encrypt(dst, src[:bs])
		} else {
			block.Decrypt(dst, src[:bs])
		}
		src = src[bs:]
		dst = dst[bs:]
	}
}

// EncryptECB encrypts plaintext with AES in ECB mode. key must be 16 or
// 32 bytes, selecting AES-128 or AES-256. When pad
// is true, plaintext is PKCS#7-padded to the block size first; when
// false, len(plaintext) must already be a multiple of the block size.
func EncryptECB(key, plaintext []byte, pad bool) ([]byte, error) {
	if len(key) != 16 && len(key) != 32 {
		return nil, fmt.Errorf("bulk: key length must be 16 or 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("bulk: %w", err)
	}

	in := plaintext
	if pad {
		in = pkcs7Pad(plaintext, block.BlockSize())
	} else if len(plaintext)%block.BlockSize() != 0 {
		return nil, fmt.Errorf("bulk: plaintext length %d is not a multiple of the block size", len(plaintext))
	}

	out := make([]byte, len(in))
	cryptECB(block, out, in, true)
	return out, nil
}

// DecryptECB decrypts ciphertext with AES in ECB mode. When unpad is
// true, PKCS#7 padding is stripped from the result.
func DecryptECB(key, ciphertext []byte, unpad bool) ([]byte, error) {
	if len(key) != 16 && len(key) != 32 {
		return nil, fmt.Errorf("bulk: key length must be 16 or 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("bulk: %w", err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%block.BlockSize() != 0 {
		return nil, fmt.Errorf("bulk: ciphertext length %d is not a multiple of the block size", len(ciphertext))
	}

	out := make([]byte, len(ciphertext))
	cryptECB(block, out, ciphertext, false)

	if unpad {
		return pkcs7Unpad(out)
	}
	return out, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("bulk: cannot unpad empty data")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) {
		return nil, fmt.Errorf("bulk: invalid padding")
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, fmt.Errorf("bulk: invalid padding")
		}
	}
	return data[:len(data)-padLen], nil
}
