// Package serialization converts execution contexts, parameters and failure lists
// to and from the JSON columns used by the SQL job repository.
package serialization

import (
	"encoding/json"

	"github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

const module = "serialization"

// MaskValue replaces masked parameter values.
const MaskValue = "********"

// MaskParameters returns a copy of params with the values of keys replaced by MaskValue.
func MaskParameters(params map[string]interface{}, keys []string) map[string]interface{} {
	masked := make(map[string]interface{}, len(params))
	for k, v := range params {
		masked[k] = v
	}
	for _, key := range keys {
		if _, ok := masked[key]; ok {
			masked[key] = MaskValue
		}
	}
	return masked
}

// MarshalMap serializes a map into a JSON object. A nil map becomes "{}".
func MarshalMap(m map[string]interface{}) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		logger.Errorf("Failed to serialize map: %v", err)
		return nil, exception.NewBatchError(module, "Failed to serialize map", err, false, false)
	}
	return data, nil
}

// UnmarshalMap deserializes a JSON object. Empty input and "null" yield an empty map.
// Numbers are decoded as float64, as encoding/json does.
func UnmarshalMap(data []byte) (map[string]interface{}, error) {
	out := make(map[string]interface{})
	if len(data) == 0 || string(data) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		logger.Errorf("Failed to deserialize map: %v", err)
		return nil, exception.NewBatchError(module, "Failed to deserialize map", err, false, false)
	}
	return out, nil
}

// MarshalFailures serializes failure messages into a JSON array. Nil becomes "[]".
func MarshalFailures(failures []string) ([]byte, error) {
	if failures == nil {
		return []byte("[]"), nil
	}
	data, err := json.Marshal(failures)
	if err != nil {
		return nil, exception.NewBatchError(module, "Failed to serialize failures", err, false, false)
	}
	return data, nil
}

// UnmarshalFailures deserializes a JSON array of failure messages.
func UnmarshalFailures(data []byte) ([]string, error) {
	if len(data) == 0 || string(data) == "null" {
		return []string{}, nil
	}
	var msgs []string
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, exception.NewBatchError(module, "Failed to deserialize failures", err, false, false)
	}
	return msgs, nil
}
