package notify

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_DrainOrderAndReset(t *testing.T) {
	q := NewQueue(10, zerolog.Nop())
	q.Notify(LevelSuccess, "added")
	q.Notify(LevelError, "failed")

	got := q.Drain()
	require.Len(t, got, 2)
	assert.Equal(t, LevelSuccess, got[0].Level)
	assert.Equal(t, "failed", got[1].Message)

	assert.Empty(t, q.Drain())
	assert.NotNil(t, q.Drain())
}

func TestQueue_Limit(t *testing.T) {
	q := NewQueue(2, zerolog.Nop())
	q.Notify(LevelInfo, "1")
	q.Notify(LevelInfo, "2")
	q.Notify(LevelInfo, "3")

	got := q.Drain()
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[0].Message)
	assert.Equal(t, "3", got[1].Message)
}
