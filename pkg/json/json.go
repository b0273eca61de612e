// Package json is the module-wide JSON codec. Model output and gateway
// payloads are decoded through it so every package agrees on number handling.
package json

import jsoniter "github.com/json-iterator/go"

var (
	// JSON is the jsoniter configuration shared by the module
	JSON = jsoniter.ConfigCompatibleWithStandardLibrary

	Marshal       = JSON.Marshal
	MarshalIndent = JSON.MarshalIndent
	Unmarshal     = JSON.Unmarshal
	NewDecoder    = JSON.NewDecoder
	NewEncoder    = JSON.NewEncoder
	Valid         = JSON.Valid
)

// Normalize round-trips v through JSON so the result only holds generic
// values (map[string]any, []any, float64, string, bool, nil).
func Normalize(v any) (any, error) {
	b, err := Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
