package buffer

import "github.com/zhukovaskychina/godb-storage/basic"

// Replacer tracks frames that are eligible for eviction and picks victims.
type Replacer interface {
	// Victim removes and returns the next frame to evict. The second return
	// is false when no frame is eligible.
	Victim() (basic.FrameID, bool)

	// Pin removes a frame from the eligible set; called when the frame goes
	// back into use.
	Pin(frameID basic.FrameID)

	// Unpin makes a frame eligible for eviction once its pin count reaches
	// zero.
	Unpin(frameID basic.FrameID)

	// Size returns the number of eligible frames.
	Size() int
}
