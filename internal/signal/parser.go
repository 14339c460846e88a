package signal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"crypto-trading-bot/internal/types"
)

// ErrInvalid is matched by every parse failure.
var ErrInvalid = errors.New("invalid trading signal")

// Error carries the raw advisory text that could not be parsed.
type Error struct {
	Raw string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %v", ErrInvalid, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrInvalid }

func fail(raw string, format string, args ...any) error {
	return &Error{Raw: raw, Err: fmt.Errorf(format, args...)}
}

// Parse extracts a Decision from advisory text. The text may be wrapped in a
// markdown code fence; what remains must be exactly one JSON object with a
// string "decision" of buy, sell or hold.
func Parse(raw string) (types.Decision, error) {
	body := stripFence(strings.TrimSpace(raw))
	if body == "" {
		return types.Decision{}, fail(raw, "empty response")
	}

	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var obj map[string]json.RawMessage
	if err := dec.Decode(&obj); err != nil {
		return types.Decision{}, fail(raw, "not a JSON object: %w", err)
	}
	if obj == nil {
		return types.Decision{}, fail(raw, "not a JSON object")
	}
	if _, err := dec.Token(); err != io.EOF {
		return types.Decision{}, fail(raw, "trailing data after JSON object")
	}

	rawDecision, ok := obj["decision"]
	if !ok {
		return types.Decision{}, fail(raw, "missing \"decision\" field")
	}
	var action string
	if err := json.Unmarshal(rawDecision, &action); err != nil {
		return types.Decision{}, fail(raw, "\"decision\" must be a string, got %s", bytes.TrimSpace(rawDecision))
	}

	var d types.Decision
	switch types.Action(action) {
	case types.Buy, types.Sell, types.Hold:
		d.Action = types.Action(action)
	default:
		return types.Decision{}, fail(raw, "unknown decision %q", action)
	}

	if rawReason, ok := obj["reason"]; ok && string(bytes.TrimSpace(rawReason)) != "null" {
		if err := json.Unmarshal(rawReason, &d.Reason); err != nil {
			return types.Decision{}, fail(raw, "\"reason\" must be a string")
		}
	}
	return d, nil
}

// stripFence removes a surrounding ``` or ```json fence.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		lang := strings.TrimSpace(s[:nl])
		if lang == "" || strings.EqualFold(lang, "json") {
			s = s[nl+1:]
		}
	} else if strings.HasPrefix(strings.ToLower(s), "json") {
		s = s[len("json"):]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
