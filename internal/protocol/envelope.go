package protocol

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// ErrProtocolMisuse covers malformed envelopes, unknown message types and
// requests the authority cannot interpret.
var ErrProtocolMisuse = errors.New("protocol: misuse")

// Envelope is the wire frame: a type tag, a per-sender sequence number and
// the JSON payload.
type Envelope struct {
	Seq     uint64          `json:"seq,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode frames msg with sequence number seq.
func Encode(seq uint64, msg Message) ([]byte, error) {
	if msg == nil {
		return nil, errors.Wrap(ErrProtocolMisuse, "nil message")
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, errors.Wrapf(err, "marshal %s", msg.MessageType())
	}
	return json.Marshal(Envelope{Seq: seq, Type: msg.MessageType(), Payload: payload})
}

// Decode parses one frame and its payload.
func Decode(data []byte) (Envelope, Message, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, nil, errors.Wrapf(ErrProtocolMisuse, "envelope: %v", err)
	}
	if len(bytes.TrimSpace(env.Payload)) == 0 || bytes.Equal(bytes.TrimSpace(env.Payload), []byte("null")) {
		return env, nil, errors.Wrapf(ErrProtocolMisuse, "%s: empty payload", env.Type)
	}

	var (
		msg Message
		err error
	)
	switch env.Type {
	case TypeItemEvent:
		msg, err = decodeAs[ItemEvent](env.Payload)
	case TypeCraft:
		msg, err = decodeAs[CraftRequest](env.Payload)
	case TypeEnchant:
		msg, err = decodeAs[EnchantRequest](env.Payload)
	case TypeTakeAll:
		msg, err = decodeAs[TakeAllRequest](env.Payload)
	case TypeClear:
		msg, err = decodeAs[ClearRequest](env.Payload)
	case TypeResult:
		msg, err = decodeAs[Result](env.Payload)
	case TypeInventory:
		msg, err = decodeAs[InventoryUpdate](env.Payload)
	default:
		return env, nil, errors.Wrapf(ErrProtocolMisuse, "unknown message type %q", env.Type)
	}
	if err != nil {
		return env, nil, errors.Wrapf(ErrProtocolMisuse, "%s: %v", env.Type, err)
	}
	return env, msg, nil
}

func decodeAs[T Message](raw json.RawMessage) (Message, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
