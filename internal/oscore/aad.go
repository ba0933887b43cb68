// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package oscore

import (
	"github.com/edhocd/gateway/internal/cbor"
	"github.com/edhocd/gateway/internal/cose"
)

// buildAAD assembles the AEAD associated data for one OSCORE-protected
// message: Enc_structure wraps the RFC 8613 §5.3 external_aad, which binds
// the AEAD algorithm, the sender's identity, its Partial IV, and the
// class-I CoAP options (always empty here — this engine only distinguishes
// class-E from class-U and never carries class-I options).
func buildAAD(requestKid, requestPiv []byte) ([]byte, error) {
	externalAAD, err := cbor.Marshal([]interface{}{
		int64(1), // oscore_version
		[]interface{}{int64(algAEAD)},
		requestKid,
		requestPiv,
		[]byte{}, // options, class-I (none in this engine)
	})
	if err != nil {
		return nil, err
	}
	return cose.EncStructure(nil, externalAAD)
}
