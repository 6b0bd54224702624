package mqtt

import (
	"log"

	"github.com/sweeney/lm393-sensor/internal/ring"
)

// bufferedMsg is a serialized message waiting to be sent by RealPublisher.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer holds messages that could not be sent, dropping the oldest
// when full. RealPublisher guards it with its mutex.
type ringBuffer struct {
	msgs     *ring.Buffer[bufferedMsg]
	overflow bool // a message was dropped since the last drain
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{msgs: ring.New[bufferedMsg](capacity)}
}

func (r *ringBuffer) push(msg bufferedMsg) {
	if _, dropped := r.msgs.Push(msg); dropped && !r.overflow {
		log.Printf("mqtt: offline buffer full (%d messages), dropping oldest", r.msgs.Cap())
		r.overflow = true
	}
}

// drainAll empties the buffer and returns its messages oldest first, or nil.
func (r *ringBuffer) drainAll() []bufferedMsg {
	if r.msgs.Len() == 0 {
		return nil
	}
	pending := r.msgs.Values()
	r.msgs.Reset()
	r.overflow = false
	return pending
}

func (r *ringBuffer) len() int {
	return r.msgs.Len()
}
