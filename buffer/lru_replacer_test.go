package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zhukovaskychina/godb-storage/basic"
)

func TestLRUReplacer_VictimOrder(t *testing.T) {
	replacer := NewLRUReplacer(7)

	replacer.Unpin(1)
	replacer.Unpin(2)
	replacer.Unpin(3)
	replacer.Unpin(4)
	replacer.Unpin(5)
	replacer.Unpin(6)
	// re-unpin of a tracked frame is a no-op
	replacer.Unpin(1)
	assert.Equal(t, 6, replacer.Size())

	victim, ok := replacer.Victim()
	assert.True(t, ok)
	assert.Equal(t, basic.FrameID(1), victim)
	victim, ok = replacer.Victim()
	assert.True(t, ok)
	assert.Equal(t, basic.FrameID(2), victim)
	victim, ok = replacer.Victim()
	assert.True(t, ok)
	assert.Equal(t, basic.FrameID(3), victim)

	// pin removes from the eligible set, pinning an untracked frame is fine
	replacer.Pin(3)
	replacer.Pin(4)
	assert.Equal(t, 2, replacer.Size())

	replacer.Unpin(4)

	victim, ok = replacer.Victim()
	assert.True(t, ok)
	assert.Equal(t, basic.FrameID(5), victim)
	victim, ok = replacer.Victim()
	assert.True(t, ok)
	assert.Equal(t, basic.FrameID(6), victim)
	victim, ok = replacer.Victim()
	assert.True(t, ok)
	assert.Equal(t, basic.FrameID(4), victim)

	_, ok = replacer.Victim()
	assert.False(t, ok)
	assert.Equal(t, 0, replacer.Size())
}

func TestLRUReplacer_RejectsBeyondCapacity(t *testing.T) {
	replacer := NewLRUReplacer(3)

	replacer.Unpin(0)
	replacer.Unpin(1)
	replacer.Unpin(2)
	// at capacity: a new frame is rejected, nothing is evicted to make room
	replacer.Unpin(3)
	assert.Equal(t, 3, replacer.Size())

	victim, ok := replacer.Victim()
	assert.True(t, ok)
	assert.Equal(t, basic.FrameID(0), victim)

	// room again
	replacer.Unpin(3)
	assert.Equal(t, 3, replacer.Size())
}
