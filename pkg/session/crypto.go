/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package session

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/des" //nolint:gosec // 3DES is a wire-advertised cipher choice, §4.4/§6
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"

	"golang.org/x/crypto/blowfish"

	"github.com/carverauto/serviceradar/pkg/wire"
)

var (
	errUnsupportedCipher = errors.New("session: cipher not in the supported set")
	errKeyTooShort       = errors.New("session: unwrapped session key too short for cipher")
	errFrameTooShort     = errors.New("session: encrypted frame shorter than one block")
)

// cipherContext holds the negotiated symmetric key material installed
// after a successful SESSION_KEY exchange (§4.4 Encryption upgrade).
// Every non-control frame is encrypted/decrypted through it once set.
type cipherContext struct {
	id    wire.Cipher
	block cipher.Block
}

// keySizeForCipher returns the symmetric key length a given advertised
// cipher expects. IDEA is intentionally absent: SupportedCiphers never
// advertises it (see SPEC_FULL.md DOMAIN STACK / wire.SupportedCiphers).
func keySizeForCipher(id wire.Cipher) (int, error) {
	switch id {
	case wire.CipherAES256:
		return 32, nil
	case wire.CipherAES128:
		return 16, nil
	case wire.CipherBlowfish256:
		return 32, nil
	case wire.CipherBlowfish128:
		return 16, nil
	case wire.Cipher3DES:
		return 24, nil
	default:
		return 0, errUnsupportedCipher
	}
}

// newCipherContext builds the block cipher for a negotiated (cipher id,
// key) pair, called after the server has RSA-unwrapped the symmetric key
// carried by SESSION_KEY.
func newCipherContext(id wire.Cipher, key []byte) (*cipherContext, error) {
	wantLen, err := keySizeForCipher(id)
	if err != nil {
		return nil, err
	}

	if len(key) < wantLen {
		return nil, fmt.Errorf("%w: want %d got %d", errKeyTooShort, wantLen, len(key))
	}

	key = key[:wantLen]

	var block cipher.Block

	switch id {
	case wire.CipherAES256, wire.CipherAES128:
		block, err = aes.NewCipher(key)
	case wire.CipherBlowfish256, wire.CipherBlowfish128:
		block, err = blowfish.NewCipher(key)
	case wire.Cipher3DES:
		block, err = des.NewTripleDESCipher(key)
	default:
		return nil, errUnsupportedCipher
	}

	if err != nil {
		return nil, err
	}

	return &cipherContext{id: id, block: block}, nil
}

// encrypt produces an IV-prefixed CTR-mode ciphertext of plaintext. CTR is
// used uniformly across all five cipher ids here (rather than e.g. CBC)
// so a single codec works regardless of which cipher the server selected.
func (c *cipherContext) encrypt(plaintext []byte) ([]byte, error) {
	iv := make([]byte, c.block.BlockSize())
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}

	out := make([]byte, len(iv)+len(plaintext))
	copy(out, iv)

	stream := cipher.NewCTR(c.block, iv)
	stream.XORKeyStream(out[len(iv):], plaintext)

	return out, nil
}

// decrypt reverses encrypt. On a malformed (too-short) ciphertext the
// caller drops the single frame and keeps the session open (§7 Recovered
// locally: "encrypted-frame decryption failures").
func (c *cipherContext) decrypt(ciphertext []byte) ([]byte, error) {
	blockSize := c.block.BlockSize()
	if len(ciphertext) < blockSize {
		return nil, errFrameTooShort
	}

	iv := ciphertext[:blockSize]
	body := ciphertext[blockSize:]

	out := make([]byte, len(body))

	stream := cipher.NewCTR(c.block, iv)
	stream.XORKeyStream(out, body)

	return out, nil
}

// wrapSessionKey is used by test doubles / the peer side of a handshake
// fixture to RSA-encrypt a generated symmetric key the way a real client
// would before sending SESSION_KEY; production code never calls this —
// the server only ever unwraps.
func wrapSessionKey(pub *rsa.PublicKey, key []byte) ([]byte, error) {
	return rsa.EncryptPKCS1v15(rand.Reader, pub, key)
}

// unwrapSessionKey RSA-decrypts the symmetric key carried by a SESSION_KEY
// frame's FieldServerKey field.
func unwrapSessionKey(priv *rsa.PrivateKey, wrapped []byte) ([]byte, error) {
	return rsa.DecryptPKCS1v15(rand.Reader, priv, wrapped)
}
