package types

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// FlexDecimal is a decimal amount that can be unmarshaled from either a JSON
// number or a JSON string. Payment providers disagree on which one they send.
type FlexDecimal decimal.Decimal

// UnmarshalJSON implements the json.Unmarshaler interface.
func (f *FlexDecimal) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	// Try unmarshaling as a string first so precision is never lost
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		val, err := decimal.NewFromString(s)
		if err != nil {
			return fmt.Errorf("FlexDecimal: invalid decimal string %q: %w", s, err)
		}
		*f = FlexDecimal(val)
		return nil
	}

	var val decimal.Decimal
	if err := json.Unmarshal(data, &val); err == nil {
		*f = FlexDecimal(val)
		return nil
	}

	return fmt.Errorf("FlexDecimal: unexpected type, expected number or string")
}

// MarshalJSON implements the json.Marshaler interface.
func (f FlexDecimal) MarshalJSON() ([]byte, error) {
	return json.Marshal(decimal.Decimal(f))
}

// Decimal converts FlexDecimal back to decimal.Decimal.
func (f FlexDecimal) Decimal() decimal.Decimal {
	return decimal.Decimal(f)
}
