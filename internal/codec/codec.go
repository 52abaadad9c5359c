// Package codec parses inbound wire frames into tagged message variants
// and serializes outbound events, calls, and replies to their wire forms.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/covesa/iotea-go-sdk/pkg/model"
)

// MsgType is the first-phase classification tag on every inbound frame.
type MsgType int

const (
	MsgEvent    MsgType = 1
	MsgDiscover MsgType = 2
	MsgError    MsgType = 4
)

// Kind identifies which variant an Inbound frame decoded to.
type Kind int

const (
	KindEvent Kind = iota
	KindDiscover
	KindError
	KindPlatformEvent
)

// Inbound is the parsed, tagged form of any inbound frame. Exactly the
// field matching Kind is populated.
type Inbound struct {
	Kind     Kind
	Event    *model.Event
	Discover *Discover
	Error    *ErrorFrame
	Platform *PlatformEvent
}

// Discover is a discovery probe from the platform.
type Discover struct {
	Version     string
	ReturnTopic string
}

// ErrorFrame is a protocol-level error reported by the platform.
type ErrorFrame struct {
	Code    int
	Message string
}

// errorMessages is the exhaustive code → human message table from the
// platform's error taxonomy. Any code not present here maps to "unknown error".
var errorMessages = map[int]string{
	4000: "non prefixed output feature found",
	4001: "feature dependency loop found",
	4002: "invalid discovery info",
	4003: "error resolving given segment in the talent ruleset",
}

// ErrorMessage returns the human-readable message for a protocol error code.
func ErrorMessage(code int) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return "unknown error"
}

// PlatformEventKind tags the well-known platform lifecycle event types.
type PlatformEventKind int

const (
	PlatformUndef PlatformEventKind = iota
	PlatformTalentRulesSet
	PlatformTalentRulesUnset
)

// PlatformEvent is a platform lifecycle notification (config set/unset).
type PlatformEvent struct {
	Kind      PlatformEventKind
	Data      json.RawMessage
	Timestamp int64
}

func platformKind(typ string) PlatformEventKind {
	switch typ {
	case "platform.talent.config.set":
		return PlatformTalentRulesSet
	case "platform.talent.config.unset":
		return PlatformTalentRulesUnset
	default:
		return PlatformUndef
	}
}

// inboundEnvelope is the superset of fields any inbound frame may carry;
// classification dispatches on MsgType first, then picks the relevant
// subset. A generic-first parse (matching the upstream SDK's two-phase
// decode) means a malformed frame is detected before any type-specific
// field access.
type inboundEnvelope struct {
	MsgType     *MsgType        `json:"msgType"`
	Subject     string          `json:"subject"`
	Feature     string          `json:"feature"`
	Value       json.RawMessage `json:"value"`
	Type        string          `json:"type"`
	Instance    string          `json:"instance"`
	WhenMs      int64           `json:"whenMs"`
	ReturnTopic string          `json:"returnTopic"`
	Version     string          `json:"version"`
	Code        int             `json:"code"`
	Data        json.RawMessage `json:"data"`
	Timestamp   int64           `json:"timestamp"`
}

// ParseInbound classifies and decodes a raw inbound frame. Frames that
// fail to parse at all (not valid JSON, or missing msgType) return an
// error; callers are expected to log and drop per the error-handling
// design — parse errors are not protocol ErrorFrames.
func ParseInbound(raw []byte) (*Inbound, error) {
	var env inboundEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("codec: malformed frame: %w", err)
	}
	if env.MsgType == nil {
		return nil, fmt.Errorf("codec: frame missing msgType")
	}

	switch *env.MsgType {
	case MsgEvent:
		var value interface{}
		if len(env.Value) > 0 {
			if err := json.Unmarshal(env.Value, &value); err != nil {
				return nil, fmt.Errorf("codec: malformed event value: %w", err)
			}
		}
		return &Inbound{
			Kind: KindEvent,
			Event: &model.Event{
				Subject:      env.Subject,
				Feature:      env.Feature,
				Value:        value,
				TypeSelector: env.Type,
				Instance:     env.Instance,
				ReturnTopic:  env.ReturnTopic,
				WhenMs:       env.WhenMs,
			},
		}, nil

	case MsgDiscover:
		version := env.Version
		if version == "" {
			version = "0.0.0"
		}
		return &Inbound{
			Kind: KindDiscover,
			Discover: &Discover{
				Version:     version,
				ReturnTopic: env.ReturnTopic,
			},
		}, nil

	case MsgError:
		return &Inbound{
			Kind: KindError,
			Error: &ErrorFrame{
				Code:    env.Code,
				Message: ErrorMessage(env.Code),
			},
		}, nil

	default:
		return nil, fmt.Errorf("codec: unknown msgType %d", *env.MsgType)
	}
}

// ParsePlatformEvent decodes a `NS/platform/$events` frame, which carries
// its own type/data/timestamp shape distinct from the tagged msgType frames.
func ParsePlatformEvent(raw []byte) (*PlatformEvent, error) {
	var env struct {
		Type      string          `json:"type"`
		Data      json.RawMessage `json:"data"`
		Timestamp int64           `json:"timestamp"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("codec: malformed platform event: %w", err)
	}
	return &PlatformEvent{
		Kind:      platformKind(env.Type),
		Data:      env.Data,
		Timestamp: env.Timestamp,
	}, nil
}
