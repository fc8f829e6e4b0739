package httputil

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// OptionalString tracks presence and value of a JSON field, which *string
// alone cannot express:
//   - Present=false: field absent from JSON (leave unchanged)
//   - Present=true, Value=nil: field is JSON null
//   - Present=true, Value=&"...": field has a value
type OptionalString struct {
	Present bool
	Value   *string
}

// UnmarshalJSON implements json.Unmarshaler.
// When this method is called, the field was present in the JSON.
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Present = true

	if string(bytes.TrimSpace(data)) == "null" {
		o.Value = nil
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

// NonNull converts the field for a column that cannot be cleared: absent
// yields nil, a value yields a pointer to it, and an explicit null is an error.
func (o OptionalString) NonNull(field string) (*string, error) {
	if !o.Present {
		return nil, nil
	}
	if o.Value == nil {
		return nil, fmt.Errorf("%s cannot be null", field)
	}
	return o.Value, nil
}
