package redactor

import "encoding/json"

const redacted = "[redacted]"

// String holds a secret. It is redacted when marshaled to JSON, printed, or logged.
// Use Reveal to read the real value when it must be sent to its owner.
type String string

// Reveal returns the secret value
func (s String) Reveal() string {
	return string(s)
}

// String implements fmt.Stringer
func (s String) String() string {
	if s == "" {
		return ""
	}
	return redacted
}

// GoString implements fmt.GoStringer, covering %#v
func (s String) GoString() string {
	return s.String()
}

// MarshalJSON implements json.Marshaler
func (s String) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (s *String) UnmarshalJSON(b []byte) error {
	var value *string
	if err := json.Unmarshal(b, &value); err != nil {
		return err
	}
	if value != nil {
		*s = String(*value)
	}
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler for config files
func (s *String) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var value string
	if err := unmarshal(&value); err != nil {
		return err
	}
	*s = String(value)
	return nil
}
