package incrementer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
)

func TestRunIDIncrementer(t *testing.T) {
	inc := NewRunIDIncrementer("")
	base := model.NewJobParametersBuilder().AddString("input", "a.csv").ToJobParameters()

	first := inc.GetNext(base)
	assert.Equal(t, int64(1), first.GetLong(DefaultRunIDKey, 0))
	assert.Equal(t, "a.csv", first.GetString("input"))
	assert.Equal(t, int64(0), base.GetLong(DefaultRunIDKey, 0), "input parameters must not change")

	second := inc.GetNext(first)
	assert.Equal(t, int64(2), second.GetLong(DefaultRunIDKey, 0))
	assert.False(t, first.Equal(second))
	assert.Equal(t, "RunIDIncrementer[name=run.id]", inc.String())
}

func TestTimestampIncrementer_MovesForward(t *testing.T) {
	fixed := time.UnixMilli(1_700_000_000_000)
	inc := NewTimestampIncrementer("ts")
	inc.now = func() time.Time { return fixed }

	first := inc.GetNext(model.NewJobParameters())
	assert.Equal(t, fixed.UnixMilli(), first.GetLong("ts", 0))

	second := inc.GetNext(first)
	assert.Equal(t, fixed.UnixMilli()+1, second.GetLong("ts", 0))
}
