// Package configbinder decodes loosely typed property maps into configuration structs.
package configbinder

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// BindProperties binds a map of properties to a target struct using mapstructure.
// Fields are matched by their "yaml" tag and string values are converted to the
// field type where possible.
//
// Parameters:
//
//	properties: The map of properties to bind.
//	target: A pointer to the struct receiving the values.
//
// Returns:
//
//	An error if the decoder cannot be created or a value cannot be converted.
func BindProperties(properties map[string]interface{}, target interface{}) error {
	if len(properties) == 0 {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}
	if err := decoder.Decode(properties); err != nil {
		targetType := reflect.TypeOf(target)
		if targetType.Kind() == reflect.Ptr {
			targetType = targetType.Elem()
		}
		return fmt.Errorf("failed to bind properties to %s: %w", targetType.Name(), err)
	}
	return nil
}

// BindStringProperties is BindProperties for string-valued maps such as
// environment-derived settings.
func BindStringProperties(properties map[string]string, target interface{}) error {
	converted := make(map[string]interface{}, len(properties))
	for k, v := range properties {
		converted[k] = v
	}
	return BindProperties(converted, target)
}
