// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package unitdir

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Digest is the BLAKE3 keyed hash of a unit file body.
type Digest [32]byte

// unitDomainKey is the ASCII domain name zero-padded to 32 bytes.
var unitDomainKey = [32]byte{
	'v', 'm', '-', 'm', 'o', 'd', 'u', 'l', 'e', 's', '.', 'u', 'n', 'i', 't', 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// HashUnit returns the digest of a unit body. Two runs that produce
// byte-identical units produce equal digests.
func HashUnit(body []byte) Digest {
	hasher, err := blake3.NewKeyed(unitDomainKey[:])
	if err != nil {
		// NewKeyed only fails for keys that are not 32 bytes.
		panic("unitdir: blake3.NewKeyed: " + err.Error())
	}
	hasher.Write(body)
	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest
}

// String returns the lowercase hex encoding.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}
