package validator

import (
	"errors"
	"fmt"
	"strings"

	playground "github.com/go-playground/validator/v10"
)

var (
	// ErrEmptyAddress indicates a recipient entry is blank
	ErrEmptyAddress = errors.New("email address cannot be empty")

	// ErrInvalidAddress indicates a recipient entry is not a valid email address
	ErrInvalidAddress = errors.New("invalid email address")
)

// RecipientValidator validates notification recipient addresses
type RecipientValidator struct {
	validate *playground.Validate
}

// NewRecipientValidator creates a new recipient validator instance
func NewRecipientValidator() *RecipientValidator {
	return &RecipientValidator{validate: playground.New()}
}

// Validate checks a single address and returns it trimmed and lower-cased
func (v *RecipientValidator) Validate(address string) (string, error) {
	sanitized := strings.ToLower(strings.TrimSpace(address))
	if sanitized == "" {
		return "", ErrEmptyAddress
	}
	if err := v.validate.Var(sanitized, "email"); err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidAddress, address)
	}
	return sanitized, nil
}

// ValidateList validates every address in the list
func (v *RecipientValidator) ValidateList(addresses []string) error {
	for _, addr := range addresses {
		if _, err := v.Validate(addr); err != nil {
			return err
		}
	}
	return nil
}

// ValidateRouting validates every address of a department routing table
func (v *RecipientValidator) ValidateRouting(routing map[string][]string) error {
	for dept, addresses := range routing {
		if err := v.ValidateList(addresses); err != nil {
			return fmt.Errorf("department %s: %w", dept, err)
		}
	}
	return nil
}
