package routing

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// AllChats is the token chat id that stands for every eligible candidate.
const AllChats int64 = -1

// UniqueRoute is the callback endpoint for every routing button.
const UniqueRoute = "route"

// MaxTokenLen is the longest token that fits in Telegram's 64-byte
// callback data once the "\f<unique>|" prefix is added.
const MaxTokenLen = 64 - len("\f"+UniqueRoute+"|")

var (
	// ErrMalformedToken is returned for callback data that does not parse.
	ErrMalformedToken = errors.New("routing: malformed token")
	// ErrTokenTooLong is returned when a token would exceed MaxTokenLen.
	ErrTokenTooLong = errors.New("routing: token too long")
)

// Token is the payload of a routing button: a target chat and, for
// buttons that are not backed by the pending cache, the command to run.
//
// Wire form is "<chat>" or "<chat>_<n>_<command>" where n is the byte
// length of command, so the command may itself contain underscores.
type Token struct {
	ChatID  int64
	Command string
}

// UsesCache reports whether the command must come from the pending cache.
func (t Token) UsesCache() bool {
	return t.Command == ""
}

// Encode renders the token in wire form.
func (t Token) Encode() string {
	id := strconv.FormatInt(t.ChatID, 10)
	if t.Command == "" {
		return id
	}
	return id + "_" + strconv.Itoa(len(t.Command)) + "_" + t.Command
}

// EncodeLimited is Encode that rejects tokens longer than MaxTokenLen.
func (t Token) EncodeLimited() (string, error) {
	s := t.Encode()
	if len(s) > MaxTokenLen {
		return "", fmt.Errorf("%w: %d bytes for chat %d", ErrTokenTooLong, len(s), t.ChatID)
	}
	return s, nil
}

// DecodeToken parses a token in wire form.
func DecodeToken(s string) (Token, error) {
	idPart, rest, hasCommand := strings.Cut(s, "_")

	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return Token{}, fmt.Errorf("%w: chat id %q", ErrMalformedToken, idPart)
	}
	if !hasCommand {
		return Token{ChatID: id}, nil
	}

	lenPart, command, ok := strings.Cut(rest, "_")
	if !ok {
		return Token{}, fmt.Errorf("%w: missing command length", ErrMalformedToken)
	}
	n, err := strconv.Atoi(lenPart)
	if err != nil || n < 0 {
		return Token{}, fmt.Errorf("%w: command length %q", ErrMalformedToken, lenPart)
	}
	if len(command) != n {
		return Token{}, fmt.Errorf("%w: command is %d bytes, expected %d", ErrMalformedToken, len(command), n)
	}

	return Token{ChatID: id, Command: command}, nil
}
