package mqtt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sweeney/mpx-bridge/internal/logic"
)

// Command is a key request received on TopicKeys. Either Digits is set and
// names a string of digit keys, or Key names a single key.
type Command struct {
	Key    logic.Key
	Digits string
}

func (c Command) String() string {
	if c.Digits != "" {
		return "keys " + c.Digits
	}
	return "key " + c.Key.String()
}

// commandJSON is the object form of a command.
type commandJSON struct {
	Key  string `json:"key"`
	Keys string `json:"keys"`
}

// ParseCommand decodes a command payload. Accepted forms:
//
//	{"key":"ZONA_IN"}
//	{"keys":"1234"}
//	"ZONA_IN" or ZONA_IN
//	"1234" or 1234
func ParseCommand(payload []byte) (Command, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return Command{}, errors.New("empty command")
	}

	switch payload[0] {
	case '{':
		var cj commandJSON
		if err := json.Unmarshal(payload, &cj); err != nil {
			return Command{}, fmt.Errorf("decode command: %w", err)
		}
		switch {
		case cj.Key != "" && cj.Keys != "":
			return Command{}, errors.New("command has both key and keys")
		case cj.Keys != "":
			return digitsCommand(cj.Keys)
		case cj.Key != "":
			return keyCommand(cj.Key)
		default:
			return Command{}, errors.New("command has neither key nor keys")
		}
	case '"':
		var s string
		if err := json.Unmarshal(payload, &s); err != nil {
			return Command{}, fmt.Errorf("decode command: %w", err)
		}
		return bareCommand(s)
	default:
		return bareCommand(string(payload))
	}
}

func bareCommand(s string) (Command, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Command{}, errors.New("empty command")
	}
	if isDigits(s) {
		return Command{Digits: s}, nil
	}
	return keyCommand(s)
}

func keyCommand(name string) (Command, error) {
	k, err := logic.ParseKey(name)
	if err != nil {
		return Command{}, err
	}
	return Command{Key: k}, nil
}

func digitsCommand(s string) (Command, error) {
	s = strings.TrimSpace(s)
	if !isDigits(s) {
		return Command{}, fmt.Errorf("keys must be digits, got %q", s)
	}
	return Command{Digits: s}, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if _, ok := logic.DigitKey(r); !ok {
			return false
		}
	}
	return true
}
