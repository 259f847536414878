package collab

import "context"

// RoomPublisher is the out-of-scope room-publishing boundary: the seam the
// Cached Synthesis Adapter's output emitter writes PCM into. Room/session
// lifecycle itself is not this module's concern; only this narrow
// publish-a-frame contract is.
type RoomPublisher interface {
	PublishPCM(ctx context.Context, pcm []byte) error
}
