// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

// Package coap implements the minimal subset of RFC 7252's message format
// the session orchestrator needs to carry EDHOC and OSCORE traffic over UDP.
// No suitable CoAP library was available to build on, so this codec is
// hand-written directly against the RFC's wire format — see DESIGN.md for
// the justification.
package coap

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Message types (RFC 7252 §3).
const (
	TypeConfirmable    uint8 = 0
	TypeNonConfirmable uint8 = 1
	TypeAcknowledgement uint8 = 2
	TypeReset          uint8 = 3
)

// Codes relevant to this engine (RFC 7252 §12.1, RFC 8613 §2).
const (
	CodeGET     uint8 = 0x01
	CodePOST    uint8 = 0x02
	CodeContent uint8 = 0x45
	CodeChanged uint8 = 0x44
	CodeBadRequest uint8 = 0x80
	CodeNotFound   uint8 = 0x84
)

// Option numbers used by this engine (RFC 7252 §12.2, RFC 8613 §2 for
// OSCORE).
const (
	OptionURIPath uint16 = 11
	OptionOSCORE  uint16 = 9
)

var (
	ErrTruncated    = errors.New("coap: message truncated")
	ErrBadVersion   = errors.New("coap: unsupported version")
	ErrTokenTooLong = errors.New("coap: token length exceeds 8 bytes")
)

// Option is one CoAP option, already resolved to an absolute option number.
type Option struct {
	Number uint16
	Value  []byte
}

// Message is a parsed CoAP datagram.
type Message struct {
	Type      uint8
	Code      uint8
	MessageID uint16
	Token     []byte
	Options   []Option
	Payload   []byte
}

// Option returns the first option with the given number, if present.
func (m Message) Option(number uint16) ([]byte, bool) {
	for _, o := range m.Options {
		if o.Number == number {
			return o.Value, true
		}
	}
	return nil, false
}

// Parse decodes a CoAP datagram per RFC 7252 §3.
func Parse(data []byte) (Message, error) {
	if len(data) < 4 {
		return Message{}, ErrTruncated
	}
	version := data[0] >> 6
	if version != 1 {
		return Message{}, fmt.Errorf("%w: version %d", ErrBadVersion, version)
	}
	typ := (data[0] >> 4) & 0x03
	tkl := int(data[0] & 0x0F)
	if tkl > 8 {
		return Message{}, ErrTokenTooLong
	}
	code := data[1]
	msgID := binary.BigEndian.Uint16(data[2:4])

	off := 4
	if len(data) < off+tkl {
		return Message{}, ErrTruncated
	}
	token := append([]byte(nil), data[off:off+tkl]...)
	off += tkl

	var options []Option
	lastNumber := uint16(0)
	for off < len(data) {
		if data[off] == 0xFF {
			off++
			break
		}
		delta := int(data[off] >> 4)
		length := int(data[off] & 0x0F)
		off++

		ext, n, err := readExt(data, off, delta)
		if err != nil {
			return Message{}, err
		}
		delta = ext
		off = n

		ext, n, err = readExt(data, off, length)
		if err != nil {
			return Message{}, err
		}
		length = ext
		off = n

		if len(data) < off+length {
			return Message{}, ErrTruncated
		}
		lastNumber += uint16(delta)
		options = append(options, Option{Number: lastNumber, Value: append([]byte(nil), data[off:off+length]...)})
		off += length
	}

	payload := append([]byte(nil), data[off:]...)
	return Message{
		Type:      typ,
		Code:      code,
		MessageID: msgID,
		Token:     token,
		Options:   options,
		Payload:   payload,
	}, nil
}

// readExt resolves a 4-bit option delta/length nibble against RFC 7252's
// extended encodings (13 => 1 extra byte + 13, 14 => 2 extra bytes + 269).
func readExt(data []byte, off, nibble int) (int, int, error) {
	switch nibble {
	case 13:
		if len(data) < off+1 {
			return 0, 0, ErrTruncated
		}
		return int(data[off]) + 13, off + 1, nil
	case 14:
		if len(data) < off+2 {
			return 0, 0, ErrTruncated
		}
		return int(binary.BigEndian.Uint16(data[off:off+2])) + 269, off + 2, nil
	case 15:
		return 0, 0, fmt.Errorf("coap: reserved option nibble 15")
	default:
		return nibble, off, nil
	}
}

// Marshal serializes m per RFC 7252 §3. Options must already be sorted by
// Number (option deltas are computed relative to the previous option).
func (m Message) Marshal() ([]byte, error) {
	if len(m.Token) > 8 {
		return nil, ErrTokenTooLong
	}
	buf := make([]byte, 0, 32+len(m.Payload))
	buf = append(buf, (1<<6)|(m.Type<<4)|byte(len(m.Token)))
	buf = append(buf, m.Code)
	var idBytes [2]byte
	binary.BigEndian.PutUint16(idBytes[:], m.MessageID)
	buf = append(buf, idBytes[:]...)
	buf = append(buf, m.Token...)

	lastNumber := uint16(0)
	for _, o := range m.Options {
		delta := int(o.Number - lastNumber)
		lastNumber = o.Number
		length := len(o.Value)

		deltaNibble, deltaExt := extNibble(delta)
		lengthNibble, lengthExt := extNibble(length)
		buf = append(buf, byte(deltaNibble<<4)|byte(lengthNibble))
		buf = append(buf, deltaExt...)
		buf = append(buf, lengthExt...)
		buf = append(buf, o.Value...)
	}

	if len(m.Payload) > 0 {
		buf = append(buf, 0xFF)
		buf = append(buf, m.Payload...)
	}
	return buf, nil
}

func extNibble(v int) (int, []byte) {
	switch {
	case v < 13:
		return v, nil
	case v < 269:
		return 13, []byte{byte(v - 13)}
	default:
		var ext [2]byte
		binary.BigEndian.PutUint16(ext[:], uint16(v-269))
		return 14, ext[:]
	}
}
