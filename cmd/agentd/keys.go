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

package main

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

var errNotRSAPEM = errors.New("file does not contain an RSA private key PEM block")

// loadServerKeyPair reads the RSA private key advertised to clients for
// the §4.4 encryption upgrade (REQUEST_SESSION_KEY/SESSION_KEY) and
// derives the PKIX-encoded public key bytes session.Config.ServerPublicKey
// carries on the wire.
func loadServerKeyPair(path string) (*rsa.PrivateKey, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read server private key: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, nil, errNotRSAPEM
	}

	priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		key, pkcs8Err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if pkcs8Err != nil {
			return nil, nil, fmt.Errorf("failed to parse server private key: %w", err)
		}

		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, nil, errNotRSAPEM
		}

		priv = rsaKey
	}

	pubBytes, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal server public key: %w", err)
	}

	return priv, pubBytes, nil
}
