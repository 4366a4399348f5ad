package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"air-server/internal/pricing"
)

// AirRequest is the pricing endpoint input, bound from the query string,
// a form body or a JSON body. Absent fields stay nil.
type AirRequest struct {
	Parameters *string `form:"parameters"` // JSON grid of parameter names
	Values     *string `form:"values"`     // JSON grid of parameter values
	Option1    *string `form:"option1"`
	Option2    *string `form:"option2"`
	Culture    *string `form:"culture"`
}

// UnmarshalJSON accepts each grid either as a JSON string holding the grid
// or as the grid itself.
func (r *AirRequest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	fields := map[string]**string{
		"parameters": &r.Parameters,
		"values":     &r.Values,
		"option1":    &r.Option1,
		"option2":    &r.Option2,
		"culture":    &r.Culture,
	}
	for name, dst := range fields {
		v, ok := raw[name]
		if !ok {
			continue
		}
		s, err := textOf(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = s
	}
	return nil
}

func textOf(v json.RawMessage) (*string, error) {
	v = bytes.TrimSpace(v)
	switch {
	case bytes.Equal(v, []byte("null")):
		return nil, nil
	case len(v) > 0 && v[0] == '"':
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return nil, err
		}
		return &s, nil
	default:
		s := string(v)
		return &s, nil
	}
}

// PricingRequest converts the bound input for the pricing engine.
func (r AirRequest) PricingRequest() pricing.Request {
	return pricing.Request{
		Parameters: deref(r.Parameters),
		Values:     deref(r.Values),
		Option1:    r.Option1,
		Option2:    r.Option2,
		Culture:    r.Culture,
	}
}

// AirArgs is the record of request arguments kept in the audit log, with
// the caller headers as sent (nil when missing).
type AirArgs struct {
	Parameters *string `json:"parameters"`
	Values     *string `json:"values"`
	Option1    *string `json:"option1"`
	Option2    *string `json:"option2"`
	Culture    *string `json:"culture"`
	UserName   *string `json:"UserName"`
	Machine    *string `json:"Machine"`
}

// Args pairs the request with its caller headers.
func (r AirRequest) Args(userName, machine *string) AirArgs {
	return AirArgs{
		Parameters: r.Parameters,
		Values:     r.Values,
		Option1:    r.Option1,
		Option2:    r.Option2,
		Culture:    r.Culture,
		UserName:   userName,
		Machine:    machine,
	}
}

// JSON serializes the arguments for the audit log.
func (a AirArgs) JSON() string {
	b, err := json.Marshal(a)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
