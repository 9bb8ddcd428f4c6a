package util

import (
	"encoding/json"
)

// UnmarshalWithKind unmarshals JSON data into target after checking that the
// document's apiVersion is known and its kind matches expectedKind. The target
// parameter should be a pointer to a type that does not itself implement
// json.Unmarshaler, otherwise this recurses.
func UnmarshalWithKind(data []byte, target any, expectedKind string) error {
	meta := TypeMeta{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return err
	}

	if err := meta.Validate(expectedKind); err != nil {
		return err
	}

	return json.Unmarshal(data, target)
}
