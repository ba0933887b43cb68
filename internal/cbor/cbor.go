// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

// Package cbor wraps fxamacker/cbor/v2 with the encode mode EDHOC and OSCORE
// need: shortest-form integers and no indefinite-length items, so two
// encoders of the same value always produce the same bytes. It also adds
// helpers for the headerless CBOR sequences EDHOC messages use on the wire
// (a run of top-level data items with no enclosing array).
package cbor

import (
	"bytes"

	"github.com/fxamacker/cbor/v2"
)

// RawMessage is a raw, already-encoded CBOR value (e.g. a COSE protected
// header). Alias kept local so callers don't need the v2 import directly.
type RawMessage = cbor.RawMessage

var encMode = func() cbor.EncMode {
	opts := cbor.CanonicalEncOptions()
	mode, err := opts.EncMode()
	if err != nil {
		panic("cbor: invalid deterministic encode options: " + err.Error())
	}
	return mode
}()

var decMode = func() cbor.DecMode {
	mode, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("cbor: invalid decode options: " + err.Error())
	}
	return mode
}()

// Marshal deterministically CBOR-encodes v.
func Marshal(v interface{}) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR bytes into v.
func Unmarshal(data []byte, v interface{}) error {
	return decMode.Unmarshal(data, v)
}

// EncodeSeq deterministically encodes each item in order and concatenates
// the results with no enclosing array, producing an EDHOC-style CBOR
// sequence (RFC 8742).
func EncodeSeq(items ...interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := encMode.NewEncoder(&buf)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// SeqDecoder decodes successive items out of a CBOR sequence.
type SeqDecoder struct {
	dec *cbor.Decoder
}

// NewSeqDecoder returns a decoder positioned at the start of data.
func NewSeqDecoder(data []byte) *SeqDecoder {
	return &SeqDecoder{dec: decMode.NewDecoder(bytes.NewReader(data))}
}

// Decode reads the next item in the sequence into v.
func (s *SeqDecoder) Decode(v interface{}) error {
	return s.dec.Decode(v)
}
