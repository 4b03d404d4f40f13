// Package envelope encodes and decodes the self-describing document exchanged
// over the proximity link. Decoding checks structure, message type, version and
// the presence of the payload fields; semantic checks belong to the caller.
package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/shared"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/transfer"
)

const (
	MessageType = "P2P_TRANSFER"
	Version     = "1.0"
)

// Decode failure kinds
var (
	ErrMalformed          = errors.New("malformed envelope")
	ErrUnsupportedType    = errors.New("unsupported message type")
	ErrUnsupportedVersion = errors.New("unsupported envelope version")

	ErrNotTransmissible = errors.New("only signed outgoing transfers can be encoded")
)

// DecodeError describes why inbound bytes were refused
type DecodeError struct {
	Kind   error // one of ErrMalformed, ErrUnsupportedType, ErrUnsupportedVersion
	Detail string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := e.Kind.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Metadata carries the human-meaningful terms of the transfer
type Metadata struct {
	Amount        uint64 `json:"amount"` // lamports
	From          string `json:"from"`
	To            string `json:"to"`
	Memo          string `json:"memo,omitempty"`
	Fee           uint64 `json:"fee"`
	Timestamp     int64  `json:"timestamp"` // epoch millis of creation
	Anchor        string `json:"anchor,omitempty"`
	SenderName    string `json:"senderName,omitempty"`
	RecipientName string `json:"recipientName,omitempty"`
}

// Payload is the transfer-derived part of the envelope
type Payload struct {
	ID            string    `json:"id"`
	SignedPayload []byte    `json:"signedPayload"` // base64 on the wire
	Nonce         string    `json:"nonce"`
	Metadata      *Metadata `json:"metadata"`
}

// Envelope is a decoded proximity message
type Envelope struct {
	MessageType string
	Version     string
	CreatedAt   time.Time
	Payload     Payload
}

type wireEnvelope struct {
	MessageType *string         `json:"messageType"`
	Version     *string         `json:"version"`
	Timestamp   *int64          `json:"timestamp"`
	Payload     json.RawMessage `json:"payload"`
}

// Encode wraps the transmissible fields of a signed transfer
func Encode(r transfer.Record, at time.Time) ([]byte, error) {
	return encode(r, "", at)
}

// EncodeWithSender is Encode plus the sender's display name in the metadata
func EncodeWithSender(r transfer.Record, senderName string, at time.Time) ([]byte, error) {
	return encode(r, senderName, at)
}

func encode(r transfer.Record, senderName string, at time.Time) ([]byte, error) {
	if r.Direction != shared.DirectionOutgoing || r.Status != shared.TransferStatusSigned {
		return nil, fmt.Errorf("%w: transfer %s is %s %s", ErrNotTransmissible, r.ID, r.Direction, r.Status)
	}

	payload, err := json.Marshal(Payload{
		ID:            r.ID,
		SignedPayload: r.SignedPayload,
		Nonce:         r.Nonce,
		Metadata: &Metadata{
			Amount:        r.Amount,
			From:          r.From(),
			To:            r.To(),
			Memo:          r.Memo,
			Fee:           r.Fee,
			Timestamp:     r.Timestamps.Created.UnixMilli(),
			Anchor:        r.Anchor,
			SenderName:    senderName,
			RecipientName: r.Counterparty.DisplayName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope payload: %w", err)
	}

	messageType, version, ts := MessageType, Version, at.UnixMilli()
	return json.Marshal(wireEnvelope{
		MessageType: &messageType,
		Version:     &version,
		Timestamp:   &ts,
		Payload:     payload,
	})
}

// Decode parses inbound bytes. Unknown fields are ignored.
func Decode(data []byte) (Envelope, error) {
	data = bytes.TrimSpace(data)

	var wire wireEnvelope
	if err := json.Unmarshal(data, &wire); err != nil {
		return Envelope{}, &DecodeError{Kind: ErrMalformed, Err: err}
	}

	switch {
	case wire.MessageType == nil:
		return Envelope{}, &DecodeError{Kind: ErrMalformed, Detail: "missing messageType"}
	case wire.Version == nil:
		return Envelope{}, &DecodeError{Kind: ErrMalformed, Detail: "missing version"}
	case wire.Timestamp == nil:
		return Envelope{}, &DecodeError{Kind: ErrMalformed, Detail: "missing timestamp"}
	case len(wire.Payload) == 0 || bytes.Equal(wire.Payload, []byte("null")):
		return Envelope{}, &DecodeError{Kind: ErrMalformed, Detail: "missing payload"}
	}

	if *wire.MessageType != MessageType {
		return Envelope{}, &DecodeError{Kind: ErrUnsupportedType, Detail: *wire.MessageType}
	}
	if *wire.Version != Version {
		return Envelope{}, &DecodeError{Kind: ErrUnsupportedVersion, Detail: *wire.Version}
	}

	var payload Payload
	if err := json.Unmarshal(wire.Payload, &payload); err != nil {
		return Envelope{}, &DecodeError{Kind: ErrMalformed, Detail: "payload", Err: err}
	}
	if field := missingField(payload); field != "" {
		return Envelope{}, &DecodeError{Kind: ErrMalformed, Detail: "missing payload." + field}
	}

	return Envelope{
		MessageType: *wire.MessageType,
		Version:     *wire.Version,
		CreatedAt:   time.UnixMilli(*wire.Timestamp),
		Payload:     payload,
	}, nil
}

func missingField(p Payload) string {
	switch {
	case p.ID == "":
		return "id"
	case len(p.SignedPayload) == 0:
		return "signedPayload"
	case p.Nonce == "":
		return "nonce"
	case p.Metadata == nil:
		return "metadata"
	}
	return ""
}

// Inbound converts the payload into the input of transfer.ApplyReceived.
// Metadata is present on every decoded payload.
func (p Payload) Inbound() transfer.Inbound {
	in := transfer.Inbound{
		ID:            p.ID,
		SignedPayload: p.SignedPayload,
		Nonce:         p.Nonce,
	}
	if m := p.Metadata; m != nil {
		in.Amount = m.Amount
		in.Fee = m.Fee
		in.From = m.From
		in.To = m.To
		in.Memo = m.Memo
		in.Anchor = m.Anchor
		in.SenderName = m.SenderName
		if m.Timestamp > 0 {
			in.SentAt = time.UnixMilli(m.Timestamp)
		}
	}
	return in
}
