package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rivo/uniseg"
)

const (
	MinBodyLength     = 3
	MaxBodyLength     = 30
	MinNicknameLength = 1
	MaxNicknameLength = 20
	MaxCommentLength  = 30
)

var (
	ErrInvalidBody     = errors.New("invalid body")
	ErrInvalidNickname = errors.New("invalid nickname")
	ErrInvalidPersona  = errors.New("invalid persona")
)

// ValidationError describes rejected input. It unwraps to one of the
// ErrInvalid* sentinels.
type ValidationError struct {
	Field  string
	Reason string
	kind   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.kind }

// GraphemeLen counts user-perceived characters.
func GraphemeLen(s string) int {
	return uniseg.GraphemeClusterCount(s)
}

// TruncateGraphemes keeps at most n grapheme clusters of s.
func TruncateGraphemes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	g := uniseg.NewGraphemes(s)
	end, count := 0, 0
	for g.Next() {
		if count == n {
			return s[:end]
		}
		_, end = g.Positions()
		count++
	}
	return s
}

// HasControlChars reports whether s contains ASCII control characters.
func HasControlChars(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] <= 0x1F || s[i] == 0x7F {
			return true
		}
	}
	return false
}

// ValidateBody checks a post body before it is judged or stored.
func ValidateBody(body string) error {
	if strings.TrimSpace(body) == "" {
		return &ValidationError{Field: "body", Reason: "must not be empty", kind: ErrInvalidBody}
	}
	if HasControlChars(body) {
		return &ValidationError{Field: "body", Reason: "must not contain control characters", kind: ErrInvalidBody}
	}
	if n := GraphemeLen(body); n < MinBodyLength || n > MaxBodyLength {
		return &ValidationError{
			Field:  "body",
			Reason: fmt.Sprintf("length %d outside [%d,%d]", n, MinBodyLength, MaxBodyLength),
			kind:   ErrInvalidBody,
		}
	}
	return nil
}

// ValidateNickname checks a poster's display name.
func ValidateNickname(nickname string) error {
	if strings.TrimSpace(nickname) == "" {
		return &ValidationError{Field: "nickname", Reason: "must not be empty", kind: ErrInvalidNickname}
	}
	if HasControlChars(nickname) {
		return &ValidationError{Field: "nickname", Reason: "must not contain control characters", kind: ErrInvalidNickname}
	}
	if n := GraphemeLen(nickname); n < MinNicknameLength || n > MaxNicknameLength {
		return &ValidationError{
			Field:  "nickname",
			Reason: fmt.Sprintf("length %d outside [%d,%d]", n, MinNicknameLength, MaxNicknameLength),
			kind:   ErrInvalidNickname,
		}
	}
	return nil
}

// ValidatePersona rejects anything but the fixed personas.
func ValidatePersona(p Persona) error {
	if !p.Valid() {
		return &ValidationError{Field: "persona", Reason: fmt.Sprintf("unknown persona %q", p), kind: ErrInvalidPersona}
	}
	return nil
}
