// Package msgload builds an env.Message from an RFC 822 message, the
// input format sieve-test and sieve-filter both read. Parsing an RFC 822
// message is a standard library concern (net/mail); nothing in the corpus
// this module is grounded on brings its own mail parser, and reaching for
// one here would add a dependency nothing else exercises.
package msgload

import (
	"bytes"
	"fmt"
	"io"
	"net/mail"

	"github.com/sievebox/sievecore/env"
)

// FromReader parses an RFC 822 message from r into an env.Message. id is
// used as the message's ID if the message carries no Message-ID header.
func FromReader(r io.Reader, id string) (*env.Message, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("msgload: read message: %w", err)
	}

	m, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("msgload: parse message: %w", err)
	}

	headers := make(map[string][]string, len(m.Header))
	for k, vs := range m.Header {
		headers[k] = vs
	}

	msgID := id
	if mid := m.Header.Get("Message-Id"); mid != "" {
		msgID = mid
	}

	return &env.Message{
		ID:      msgID,
		Size:    len(raw),
		Raw:     raw,
		Headers: headers,
		Envelope: env.Envelope{
			From: firstAddress(m.Header.Get("From")),
			To:   firstAddress(m.Header.Get("To")),
		},
	}, nil
}

func firstAddress(field string) string {
	if field == "" {
		return ""
	}
	addrs, err := mail.ParseAddressList(field)
	if err != nil || len(addrs) == 0 {
		return field
	}
	return addrs[0].Address
}
