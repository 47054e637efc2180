package checkout

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ShippingAddress is the checkout form. Missing fields are a validation
// error surfaced before any write happens.
type ShippingAddress struct {
	FullName   string `json:"full_name" validate:"required"`
	Phone      string `json:"phone" validate:"required"`
	Line1      string `json:"line1" validate:"required"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city" validate:"required"`
	Province   string `json:"province" validate:"required"`
	PostalCode string `json:"postal_code" validate:"required"`
	Country    string `json:"country" validate:"required"`
}

func (a ShippingAddress) Validate() error {
	return validate.Struct(a)
}

// Encode renders the address as the JSON blob stored on the order row.
func (a ShippingAddress) Encode() string {
	b, _ := json.Marshal(a)
	return string(b)
}
