package window

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimesCapacityBound(t *testing.T) {
	w := NewTimes(5)
	base := time.Now()
	for i := 0; i < 20; i++ {
		w.Append(base.Add(time.Duration(i) * time.Second))
	}
	assert.Equal(t, 5, w.Len())

	// The survivors are the newest five.
	assert.Equal(t, 5, w.CountAfter(base.Add(14*time.Second)))
	assert.Equal(t, 0, w.CountAfter(base.Add(20*time.Second)))
}

func TestTimesCountAfterIsStrict(t *testing.T) {
	w := NewTimes(10)
	base := time.Now()
	w.Append(base)
	w.Append(base.Add(time.Second))

	assert.Equal(t, 1, w.CountAfter(base))
	assert.Equal(t, 2, w.CountAfter(base.Add(-time.Second)))
}

func TestPortsDistinctAfter(t *testing.T) {
	w := NewPorts(100)
	base := time.Now()

	w.Append(22, base)
	w.Append(22, base.Add(time.Second))
	w.Append(80, base.Add(2*time.Second))
	w.Append(443, base.Add(40*time.Second))

	assert.Equal(t, 3, w.DistinctAfter(base.Add(-time.Second), nil))
	assert.Equal(t, 1, w.DistinctAfter(base.Add(30*time.Second), nil))
	assert.Equal(t, 3, w.DistinctAfter(base.Add(-time.Second), func(p uint16) bool { return p < 1024 }))
}

func TestPortsCapacityBound(t *testing.T) {
	w := NewPorts(3)
	base := time.Now()
	for i := 0; i < 10; i++ {
		w.Append(uint16(i), base.Add(time.Duration(i)*time.Millisecond))
	}
	assert.Equal(t, 3, w.Len())
	assert.Equal(t, 3, w.DistinctAfter(base.Add(-time.Second), nil))
}

func TestHostsDistinctAfter(t *testing.T) {
	w := NewHosts(100)
	base := time.Now()

	w.Append("10.0.0.1", base)
	w.Append("10.0.0.1", base.Add(time.Second))
	w.Append("10.0.0.2", base.Add(2*time.Second))

	assert.Equal(t, 2, w.DistinctAfter(base.Add(-time.Second)))
	assert.Equal(t, 1, w.DistinctAfter(base.Add(time.Second)))
}

func TestSourceMapEvictsOldestWriter(t *testing.T) {
	m := NewSourceMap[int](3)
	for i := 0; i < 3; i++ {
		m.Put(fmt.Sprintf("10.0.0.%d", i), i)
	}

	// Touch the first source so it is no longer the eviction candidate.
	m.GetOrCreate("10.0.0.0", func() int { return -1 })

	m.Put("10.0.0.3", 3)
	assert.Equal(t, 3, m.Len())

	_, ok := m.Get("10.0.0.1")
	assert.False(t, ok, "least-recently-written source should be evicted")
	v, ok := m.Get("10.0.0.0")
	assert.True(t, ok)
	assert.Equal(t, 0, v)
}

func TestSourceMapUnbounded(t *testing.T) {
	m := NewSourceMap[int](0)
	for i := 0; i < 500; i++ {
		m.Put(fmt.Sprintf("src-%d", i), i)
	}
	assert.Equal(t, 500, m.Len())
}

func TestSourceMapGetOrCreate(t *testing.T) {
	m := NewSourceMap[*Times](10)
	created := 0
	w := m.GetOrCreate("1.2.3.4", func() *Times {
		created++
		return NewTimes(5)
	})
	again := m.GetOrCreate("1.2.3.4", func() *Times {
		created++
		return NewTimes(5)
	})
	assert.Same(t, w, again)
	assert.Equal(t, 1, created)
}
