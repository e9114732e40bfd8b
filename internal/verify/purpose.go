package verify

import (
	"fmt"
	"net/mail"
	"strings"
)

// Purpose scopes a code to one business flow. Codes that differ only in
// purpose are independent even for the same email.
type Purpose uint8

const (
	PurposeRegister Purpose = iota + 1
	PurposeLogin
	PurposeResetPassword
	PurposeEmailChange
	PurposeFeedback
)

var purposeNames = map[Purpose]string{
	PurposeRegister:      "register",
	PurposeLogin:         "login",
	PurposeResetPassword: "reset_password",
	PurposeEmailChange:   "email_change",
	PurposeFeedback:      "feedback",
}

func Purposes() []Purpose {
	return []Purpose{PurposeRegister, PurposeLogin, PurposeResetPassword, PurposeEmailChange, PurposeFeedback}
}

func ParsePurpose(s string) (Purpose, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	for p, name := range purposeNames {
		if name == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidPurpose, s)
}

func (p Purpose) Valid() bool {
	_, ok := purposeNames[p]
	return ok
}

func (p Purpose) String() string {
	if name, ok := purposeNames[p]; ok {
		return name
	}
	return fmt.Sprintf("purpose(%d)", uint8(p))
}

// Key is the identity key: one active code and one throttle timer per key.
type Key struct {
	Email   string
	Purpose Purpose
}

func (k Key) String() string {
	return k.Purpose.String() + ":" + k.Email
}

// NormalizeEmail lowercases and trims the address and rejects anything that
// is not a bare addr-spec.
func NormalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || len(email) > 254 {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return "", ErrInvalidEmail
	}
	return email, nil
}
