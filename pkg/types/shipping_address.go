package types

import (
	"regexp"
	"strings"

	pkgerrors "github.com/linyuhan/shophub-backend/pkg/errors"
)

const (
	maxRecipientNameLen = 50
	maxAddressLen       = 200
)

// Taiwanese mobile numbers: 09 followed by 8 digits. Separators are
// stripped before matching.
var mobilePhonePattern = regexp.MustCompile(`^09\d{8}$`)

var phoneSeparators = strings.NewReplacer("-", "", " ", "")

// ShippingAddress is the recipient snapshot embedded in an order. It is
// stored as JSON and never re-normalized after the order is created.
type ShippingAddress struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// Normalize returns a copy with surrounding whitespace removed from every
// field. Validation always runs against the normalized form.
func (a ShippingAddress) Normalize() ShippingAddress {
	return ShippingAddress{
		Name:    strings.TrimSpace(a.Name),
		Phone:   strings.TrimSpace(a.Phone),
		Address: strings.TrimSpace(a.Address),
	}
}

// Validate checks the structural rules for a recipient. Violations come
// back as INVALID_SHIPPING_ADDRESS with the offending field in details.
func (a ShippingAddress) Validate() error {
	norm := a.Normalize()

	if norm.Name == "" {
		return invalidAddress("recipient name is required", "name")
	}
	if len([]rune(norm.Name)) > maxRecipientNameLen {
		return invalidAddress("recipient name too long", "name")
	}
	if norm.Address == "" {
		return invalidAddress("address is required", "address")
	}
	if len([]rune(norm.Address)) > maxAddressLen {
		return invalidAddress("address too long", "address")
	}
	if norm.Phone == "" {
		return invalidAddress("phone number is required", "phone")
	}
	if !mobilePhonePattern.MatchString(phoneSeparators.Replace(norm.Phone)) {
		return invalidAddress("invalid phone number format", "phone")
	}
	return nil
}

func invalidAddress(message, field string) error {
	return pkgerrors.New(pkgerrors.CodeInvalidShippingAddress, message).
		WithDetails(map[string]any{"field": field})
}
