// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package session

import (
	"strings"

	"github.com/edhocd/gateway/internal/coap"
)

// CoAP content-format identifiers used by this engine (RFC 7252 §12.3).
const (
	contentFormatTextPlain   = 0
	contentFormatLinkFormat  = 40
	contentFormatOctetStream = 42
)

const linkFormatListing = "</hello>,</echo>,</.well-known/edhoc>"

// uriPath joins a request's Uri-Path options into a single "/"-delimited
// path, the way a CoAP server resolves its routing table.
func uriPath(req coap.Message) string {
	var parts []string
	for _, o := range req.Options {
		if o.Number == coap.OptionURIPath {
			parts = append(parts, string(o.Value))
		}
	}
	return strings.Join(parts, "/")
}

func contentFormatOption(format uint16) coap.Option {
	var v []byte
	if format != 0 {
		v = []byte{byte(format)}
	}
	return coap.Option{Number: 12, Value: v} // Content-Format, RFC 7252 §12.2
}

// reply builds a response sharing the request's message id and token, the
// framing CoAP requires for both success and error responses.
func reply(req coap.Message, code uint8, contentFormat uint16, payload []byte) coap.Message {
	resp := coap.Message{
		Type:      coap.TypeAcknowledgement,
		Code:      code,
		MessageID: req.MessageID,
		Token:     req.Token,
		Payload:   payload,
	}
	if len(payload) > 0 {
		resp.Options = []coap.Option{contentFormatOption(contentFormat)}
	}
	return resp
}
