package serialization_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/tidebatch/pkg/batch/support/util/serialization"
)

func TestMaskParameters(t *testing.T) {
	params := map[string]interface{}{"user": "alice", "password": "hunter2"}
	masked := serialization.MaskParameters(params, []string{"password", "absent"})

	assert.Equal(t, "alice", masked["user"])
	assert.Equal(t, serialization.MaskValue, masked["password"])
	assert.NotContains(t, masked, "absent")
	assert.Equal(t, "hunter2", params["password"], "input must not be modified")
}

func TestMapRoundTrip(t *testing.T) {
	data, err := serialization.MarshalMap(map[string]interface{}{"count": 3, "name": "x"})
	require.NoError(t, err)

	out, err := serialization.UnmarshalMap(data)
	require.NoError(t, err)
	assert.Equal(t, float64(3), out["count"])
	assert.Equal(t, "x", out["name"])

	nilData, err := serialization.MarshalMap(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(nilData))

	empty, err := serialization.UnmarshalMap([]byte("null"))
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = serialization.UnmarshalMap([]byte("{not json"))
	assert.Error(t, err)
}

func TestFailuresRoundTrip(t *testing.T) {
	data, err := serialization.MarshalFailures([]string{"a", "b"})
	require.NoError(t, err)
	out, err := serialization.UnmarshalFailures(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, out)

	nilData, err := serialization.MarshalFailures(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(nilData))

	empty, err := serialization.UnmarshalFailures(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
