// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package oscore

// EncodeOption builds the CoAP OSCORE option value (RFC 8613 §6.1): a flag
// byte (bit 0x08 set iff kid is present, low 3 bits = len(piv)), followed by
// piv, followed by kid. No kid_context is used by this engine.
func EncodeOption(piv, kid []byte) ([]byte, error) {
	if len(piv) > 5 {
		return nil, ErrMalformedOption
	}
	flags := byte(len(piv))
	if len(kid) > 0 {
		flags |= 0x08
	}
	out := make([]byte, 0, 1+len(piv)+len(kid))
	out = append(out, flags)
	out = append(out, piv...)
	out = append(out, kid...)
	return out, nil
}

// DecodeOption parses an OSCORE option value back into piv and kid.
func DecodeOption(data []byte) (piv, kid []byte, err error) {
	if len(data) == 0 {
		return nil, nil, ErrMalformedOption
	}
	flags := data[0]
	pivLen := int(flags & 0x07)
	hasKid := flags&0x08 != 0
	if len(data) < 1+pivLen {
		return nil, nil, ErrMalformedOption
	}
	piv = append([]byte(nil), data[1:1+pivLen]...)
	rest := data[1+pivLen:]
	if hasKid {
		kid = append([]byte(nil), rest...)
	} else if len(rest) > 0 {
		return nil, nil, ErrMalformedOption
	}
	return piv, kid, nil
}
