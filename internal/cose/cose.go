// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

// Package cose builds the two COSE-style constructs EDHOC needs: the
// Sig_structure used to produce/verify SIG_V and SIG_U, and the
// COSE_Encrypt0 envelope CIPHERTEXT_2/CIPHERTEXT_3 are carried in.
//
// Headers are kept as a serialized-protected-bstr plus a raw unprotected
// map, and the Sig_structure assembly mirrors veraison/go-cose's
// Signature.Sign/digestToBeSigned.
package cose

import (
	"fmt"

	"github.com/edhocd/gateway/internal/cbor"
)

// Common COSE header labels used by EDHOC's identity payloads.
const (
	LabelKid = 4
)

// SigStructure builds and CBOR-encodes:
//
//	Sig_structure = ["Signature1", protected, external_aad, payload]
//
// protected and externalAAD are already-CBOR-encoded byte strings;
// external_aad is empty for EDHOC's signature payloads.
func SigStructure(protected, externalAAD, payload []byte) ([]byte, error) {
	if protected == nil {
		protected = []byte{}
	}
	if externalAAD == nil {
		externalAAD = []byte{}
	}
	return cbor.Marshal([]interface{}{
		"Signature1",
		protected,
		externalAAD,
		payload,
	})
}

// EncStructure builds and CBOR-encodes:
//
//	Enc_structure = ["Encrypt0", protected, external_aad]
//
// used as the AEAD associated data for CIPHERTEXT_2/CIPHERTEXT_3, with
// external_aad bound to the running transcript hash.
func EncStructure(protected, externalAAD []byte) ([]byte, error) {
	if protected == nil {
		protected = []byte{}
	}
	if externalAAD == nil {
		externalAAD = []byte{}
	}
	return cbor.Marshal([]interface{}{
		"Encrypt0",
		protected,
		externalAAD,
	})
}

// Encrypt0 is a COSE_Encrypt0 structure:
//
//	COSE_Encrypt0 = [
//	    protected   : bstr .cbor header_map,
//	    unprotected : header_map,
//	    ciphertext  : bstr
//	]
type Encrypt0 struct {
	Protected   map[int]interface{}
	Unprotected map[int]interface{}
	Ciphertext  []byte
}

type encrypt0Wire struct {
	_           struct{} `cbor:",toarray"`
	Protected   []byte
	Unprotected map[int]interface{}
	Ciphertext  []byte
}

// Marshal serializes e as the 3-element COSE_Encrypt0 array.
func (e Encrypt0) Marshal() ([]byte, error) {
	protected, err := encodeHeaderMap(e.Protected)
	if err != nil {
		return nil, fmt.Errorf("cose: encode protected header: %w", err)
	}
	unprotected := e.Unprotected
	if unprotected == nil {
		unprotected = map[int]interface{}{}
	}
	return cbor.Marshal(encrypt0Wire{
		Protected:   protected,
		Unprotected: unprotected,
		Ciphertext:  e.Ciphertext,
	})
}

// UnmarshalEncrypt0 decodes a COSE_Encrypt0 array.
func UnmarshalEncrypt0(data []byte) (Encrypt0, error) {
	var wire encrypt0Wire
	if err := cbor.Unmarshal(data, &wire); err != nil {
		return Encrypt0{}, fmt.Errorf("cose: decode COSE_Encrypt0: %w", err)
	}
	protected, err := decodeHeaderMap(wire.Protected)
	if err != nil {
		return Encrypt0{}, fmt.Errorf("cose: decode protected header: %w", err)
	}
	return Encrypt0{
		Protected:   protected,
		Unprotected: wire.Unprotected,
		Ciphertext:  wire.Ciphertext,
	}, nil
}

// encodeHeaderMap returns the canonical empty-or-serialized-map bstr
// form the Sig_structure/Enc_structure protected field uses.
func encodeHeaderMap(hmap map[int]interface{}) ([]byte, error) {
	if len(hmap) == 0 {
		return []byte{}, nil
	}
	return cbor.Marshal(hmap)
}

func decodeHeaderMap(raw []byte) (map[int]interface{}, error) {
	if len(raw) == 0 {
		return map[int]interface{}{}, nil
	}
	var m map[int]interface{}
	if err := cbor.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
