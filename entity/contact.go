package entity

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ContactInfo holds reachability details for funders, prospects and
// schools. All fields are optional; a zero ContactInfo is valid.
type ContactInfo struct {
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
	Website string `json:"website,omitempty"`
}

// Normalize prefixes bare website hosts with https://.
func (c *ContactInfo) Normalize() {
	if c == nil {
		return
	}
	if c.Website != "" && !strings.HasPrefix(c.Website, "http://") && !strings.HasPrefix(c.Website, "https://") {
		c.Website = "https://" + c.Website
	}
}

// Validate implements validation.Validatable so nested contact info is
// checked whenever the owning entity is validated.
func (c ContactInfo) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Email, validation.By(emailShapeRule)),
	)
}

// emailShapeRule matches the permissive legacy check: a non-empty email
// only needs to contain an @.
func emailShapeRule(value any) error {
	s, _ := value.(string)
	if s != "" && !strings.Contains(s, "@") {
		return fmt.Errorf("invalid email format")
	}
	return nil
}
