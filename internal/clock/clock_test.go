package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFake(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c := NewFake(start)

	assert.Equal(t, start, c.Now())

	got := c.Advance(90 * time.Minute)
	assert.Equal(t, start.Add(90*time.Minute), got)
	assert.Equal(t, got, c.Now())

	c.Set(start)
	assert.Equal(t, start, c.Now())
}

func TestMonotonic(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	src := NewFake(start)
	m := NewMonotonic(src)

	assert.Equal(t, start, m.Now())

	src.Advance(time.Hour)
	assert.Equal(t, start.Add(time.Hour), m.Now())

	t.Run("source moving backwards is ignored", func(t *testing.T) {
		src.Set(start)
		assert.Equal(t, start.Add(time.Hour), m.Now())
	})

	t.Run("source catching up is followed again", func(t *testing.T) {
		src.Set(start.Add(2 * time.Hour))
		assert.Equal(t, start.Add(2*time.Hour), m.Now())
	})
}

func TestRealIsUTC(t *testing.T) {
	assert.Equal(t, time.UTC, Real{}.Now().Location())
}
