package status

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestThrottle_Count(t *testing.T) {
	now := time.Unix(0, 0)
	th := &Throttle{Every: 3, Interval: time.Hour, Now: func() time.Time { return now }}
	th.Start()

	var due []int
	for i := 1; i <= 7; i++ {
		if th.Due(i) {
			due = append(due, i)
		}
	}
	assert.Equal(t, []int{3, 6}, due)
}

func TestThrottle_Interval(t *testing.T) {
	now := time.Unix(0, 0)
	th := &Throttle{Every: 1000, Interval: 3 * time.Second, Now: func() time.Time { return now }}
	th.Start()

	assert.False(t, th.Due(1))
	now = now.Add(3 * time.Second)
	assert.True(t, th.Due(2))
	assert.False(t, th.Due(3))
	now = now.Add(time.Second)
	assert.False(t, th.Due(4))
}

func TestLoggerSink(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	Logger(zap.New(core)).Status(KindStatus, "Started")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "Started", entries[0].Message)
		assert.Equal(t, KindStatus, entries[0].ContextMap()["kind"])
	}
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() { Nop().Status(KindStatus, "ignored") })
}
