// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package coap

import (
	"bytes"
	"testing"
)

func TestMarshalParseRoundTrip(t *testing.T) {
	msg := Message{
		Type:      TypeConfirmable,
		Code:      CodePOST,
		MessageID: 0x1234,
		Token:     []byte{0xAB, 0xCD},
		Options: []Option{
			{Number: OptionURIPath, Value: []byte("edhoc")},
			{Number: OptionOSCORE, Value: []byte{0x01}},
		},
		Payload: []byte("hello"),
	}

	encoded, err := msg.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	decoded, err := Parse(encoded)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if decoded.Type != msg.Type || decoded.Code != msg.Code || decoded.MessageID != msg.MessageID {
		t.Fatalf("header mismatch: %+v", decoded)
	}
	if !bytes.Equal(decoded.Token, msg.Token) {
		t.Fatalf("token mismatch: got %x want %x", decoded.Token, msg.Token)
	}
	if !bytes.Equal(decoded.Payload, msg.Payload) {
		t.Fatalf("payload mismatch: got %q want %q", decoded.Payload, msg.Payload)
	}
	if len(decoded.Options) != 2 {
		t.Fatalf("expected 2 options, got %d", len(decoded.Options))
	}
	for i, opt := range msg.Options {
		if decoded.Options[i].Number != opt.Number || !bytes.Equal(decoded.Options[i].Value, opt.Value) {
			t.Fatalf("option %d mismatch: got %+v want %+v", i, decoded.Options[i], opt)
		}
	}
}

func TestParseRejectsTruncated(t *testing.T) {
	if _, err := Parse([]byte{0x40}); err != ErrTruncated {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestParseRejectsBadVersion(t *testing.T) {
	data := []byte{0x00, 0x01, 0x00, 0x00} // version 0
	if _, err := Parse(data); err == nil {
		t.Fatal("expected version error")
	}
}

func TestOptionLookup(t *testing.T) {
	msg := Message{Options: []Option{{Number: OptionOSCORE, Value: []byte{0x09}}}}
	v, ok := msg.Option(OptionOSCORE)
	if !ok || !bytes.Equal(v, []byte{0x09}) {
		t.Fatalf("expected OSCORE option, got %x ok=%v", v, ok)
	}
	if _, ok := msg.Option(OptionURIPath); ok {
		t.Fatal("expected URI-Path option to be absent")
	}
}

func TestExtendedOptionLengthRoundTrip(t *testing.T) {
	big := bytes.Repeat([]byte{0x42}, 400)
	msg := Message{Options: []Option{{Number: OptionOSCORE, Value: big}}}
	enc, err := msg.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	dec, err := Parse(enc)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !bytes.Equal(dec.Options[0].Value, big) {
		t.Fatal("extended-length option value mismatch")
	}
}
