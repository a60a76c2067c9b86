package model

import (
	"bytes"
	"crypto/sha256"
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/tigerroll/tidebatch/pkg/batch/core/config"
	"github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/tidebatch/pkg/batch/support/util/serialization"
)

// ParameterType is the declared type of a JobParameter.
type ParameterType string

const (
	ParameterTypeString ParameterType = "STRING"
	ParameterTypeLong   ParameterType = "LONG"
	ParameterTypeDouble ParameterType = "DOUBLE"
	ParameterTypeDate   ParameterType = "DATE"
	ParameterTypeBool   ParameterType = "BOOL"
)

// JobParameter is a single typed job parameter. Identifying parameters take
// part in the JobInstance identity; non-identifying ones are carried along only.
type JobParameter struct {
	Type        ParameterType `json:"type"`
	Value       interface{}   `json:"value"`
	Identifying bool          `json:"identifying"`
}

// JobParameters is an immutable, ordered set of named parameters. Use
// JobParametersBuilder to create one.
type JobParameters struct {
	params map[string]JobParameter
}

// NewJobParameters returns an empty JobParameters.
func NewJobParameters() JobParameters {
	return JobParameters{params: map[string]JobParameter{}}
}

// Get returns the parameter stored under key.
func (jp JobParameters) Get(key string) (JobParameter, bool) {
	p, ok := jp.params[key]
	return p, ok
}

// GetString returns the parameter under key formatted as a string, or "".
func (jp JobParameters) GetString(key string) string {
	p, ok := jp.params[key]
	if !ok {
		return ""
	}
	switch v := p.Value.(type) {
	case string:
		return v
	case time.Time:
		return v.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}

// GetLong returns the LONG parameter under key, or def.
func (jp JobParameters) GetLong(key string, def int64) int64 {
	if p, ok := jp.params[key]; ok {
		if v, ok := p.Value.(int64); ok {
			return v
		}
	}
	return def
}

// GetDouble returns the DOUBLE parameter under key, or def.
func (jp JobParameters) GetDouble(key string, def float64) float64 {
	if p, ok := jp.params[key]; ok {
		if v, ok := p.Value.(float64); ok {
			return v
		}
	}
	return def
}

// GetDate returns the DATE parameter under key, or the zero time.
func (jp JobParameters) GetDate(key string) time.Time {
	if p, ok := jp.params[key]; ok {
		if v, ok := p.Value.(time.Time); ok {
			return v
		}
	}
	return time.Time{}
}

// GetBool returns the BOOL parameter under key, or def.
func (jp JobParameters) GetBool(key string, def bool) bool {
	if p, ok := jp.params[key]; ok {
		if v, ok := p.Value.(bool); ok {
			return v
		}
	}
	return def
}

// Keys returns the parameter names in sorted order.
func (jp JobParameters) Keys() []string {
	keys := make([]string, 0, len(jp.params))
	for k := range jp.params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of parameters.
func (jp JobParameters) Len() int {
	return len(jp.params)
}

// IsEmpty reports whether there are no parameters.
func (jp JobParameters) IsEmpty() bool {
	return len(jp.params) == 0
}

// ToMap returns the parameter values keyed by name.
func (jp JobParameters) ToMap() map[string]interface{} {
	out := make(map[string]interface{}, len(jp.params))
	for k, p := range jp.params {
		out[k] = p.Value
	}
	return out
}

// Identifying returns the subset of identifying parameters.
func (jp JobParameters) Identifying() JobParameters {
	out := NewJobParameters()
	for k, p := range jp.params {
		if p.Identifying {
			out.params[k] = p
		}
	}
	return out
}

// Equal reports whether both sets hold the same parameters.
func (jp JobParameters) Equal(other JobParameters) bool {
	a, errA := jp.MarshalJSON()
	b, errB := other.MarshalJSON()
	return errA == nil && errB == nil && bytes.Equal(a, b)
}

// Hash returns the hex sha256 of the canonical JSON of the identifying parameters.
// Together with the job name it identifies a JobInstance.
func (jp JobParameters) Hash() (string, error) {
	canonical, err := jp.Identifying().MarshalJSON()
	if err != nil {
		return "", exception.NewBatchError("job_parameters", "Failed to marshal JobParameters to canonical JSON for hash calculation", err, false, false)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// MarshalJSON implements json.Marshaler. Keys are emitted in sorted order.
func (jp JobParameters) MarshalJSON() ([]byte, error) {
	if jp.params == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(jp.params)
}

// UnmarshalJSON implements json.Unmarshaler, restoring each value to its declared type.
func (jp *JobParameters) UnmarshalJSON(data []byte) error {
	jp.params = map[string]JobParameter{}
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	raw := map[string]JobParameter{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	for k, p := range raw {
		v, err := coerceParameterValue(p.Type, p.Value)
		if err != nil {
			return fmt.Errorf("job parameter %q: %w", k, err)
		}
		p.Value = v
		jp.params[k] = p
	}
	return nil
}

func coerceParameterValue(t ParameterType, v interface{}) (interface{}, error) {
	switch t {
	case ParameterTypeLong:
		switch n := v.(type) {
		case json.Number:
			return n.Int64()
		case float64:
			return int64(n), nil
		}
	case ParameterTypeDouble:
		switch n := v.(type) {
		case json.Number:
			return n.Float64()
		case float64:
			return n, nil
		}
	case ParameterTypeDate:
		if s, ok := v.(string); ok {
			return time.Parse(time.RFC3339Nano, s)
		}
	case ParameterTypeBool:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			return strconv.ParseBool(b)
		}
	case ParameterTypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	}
	return nil, fmt.Errorf("value %v does not match type %s", v, t)
}

// Value implements driver.Valuer.
func (jp JobParameters) Value() (driver.Value, error) {
	data, err := jp.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (jp *JobParameters) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		return jp.UnmarshalJSON(nil)
	case []byte:
		return jp.UnmarshalJSON(v)
	case string:
		return jp.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("unsupported Scan type for JobParameters: %T", value)
	}
}

// String returns the parameters as JSON with configured sensitive keys masked.
func (jp JobParameters) String() string {
	data, err := json.Marshal(serialization.MaskParameters(jp.ToMap(), config.GetMaskedParameterKeys()))
	if err != nil {
		return fmt.Sprintf("{[ERROR: Failed to marshal masked parameters: %v]}", err)
	}
	return string(data)
}

// JobParametersBuilder accumulates parameters for an immutable JobParameters.
type JobParametersBuilder struct {
	params map[string]JobParameter
}

// NewJobParametersBuilder creates an empty builder.
func NewJobParametersBuilder() *JobParametersBuilder {
	return &JobParametersBuilder{params: map[string]JobParameter{}}
}

// NewJobParametersBuilderFrom creates a builder seeded with existing parameters.
func NewJobParametersBuilderFrom(jp JobParameters) *JobParametersBuilder {
	b := NewJobParametersBuilder()
	return b.AddJobParameters(jp)
}

// AddString adds an identifying STRING parameter.
func (b *JobParametersBuilder) AddString(key, value string) *JobParametersBuilder {
	return b.AddParameter(key, JobParameter{Type: ParameterTypeString, Value: value, Identifying: true})
}

// AddLong adds an identifying LONG parameter.
func (b *JobParametersBuilder) AddLong(key string, value int64) *JobParametersBuilder {
	return b.AddParameter(key, JobParameter{Type: ParameterTypeLong, Value: value, Identifying: true})
}

// AddDouble adds an identifying DOUBLE parameter.
func (b *JobParametersBuilder) AddDouble(key string, value float64) *JobParametersBuilder {
	return b.AddParameter(key, JobParameter{Type: ParameterTypeDouble, Value: value, Identifying: true})
}

// AddDate adds an identifying DATE parameter, normalized to UTC.
func (b *JobParametersBuilder) AddDate(key string, value time.Time) *JobParametersBuilder {
	return b.AddParameter(key, JobParameter{Type: ParameterTypeDate, Value: value.UTC(), Identifying: true})
}

// AddBool adds an identifying BOOL parameter.
func (b *JobParametersBuilder) AddBool(key string, value bool) *JobParametersBuilder {
	return b.AddParameter(key, JobParameter{Type: ParameterTypeBool, Value: value, Identifying: true})
}

// AddParameter adds p under key, replacing any previous value.
func (b *JobParametersBuilder) AddParameter(key string, p JobParameter) *JobParametersBuilder {
	b.params[key] = p
	return b
}

// AddJobParameters copies every parameter of jp into the builder.
func (b *JobParametersBuilder) AddJobParameters(jp JobParameters) *JobParametersBuilder {
	for k, p := range jp.params {
		b.params[k] = p
	}
	return b
}

// Remove deletes key from the builder.
func (b *JobParametersBuilder) Remove(key string) *JobParametersBuilder {
	delete(b.params, key)
	return b
}

// ToJobParameters returns the immutable parameters built so far.
func (b *JobParametersBuilder) ToJobParameters() JobParameters {
	out := NewJobParameters()
	for k, p := range b.params {
		out.params[k] = p
	}
	return out
}
