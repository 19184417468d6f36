package control

// Channel is the multi-producer, single-consumer queue of Control Messages
// between message producers (the HTTP API, the daemon's own signal
// handler) and the Supervisor Loop. It is a thin wrapper over a buffered
// Go channel so producers never block on a slow consumer for more than the
// buffer depth.
type Channel struct {
	c chan Message
}

// NewChannel creates a Channel with the given buffer depth.
func NewChannel(depth int) *Channel {
	return &Channel{c: make(chan Message, depth)}
}

// Post enqueues a message. It blocks if the buffer is full, applying
// backpressure to producers rather than dropping a control request.
func (ch *Channel) Post(m Message) {
	ch.c <- m
}

// Messages returns the receive-only side consumed by the Supervisor Loop.
func (ch *Channel) Messages() <-chan Message {
	return ch.c
}

// Close closes the underlying channel. Only the owner that created the
// Channel (cmd/getupd's main) should call this, after the Supervisor Loop
// has stopped consuming.
func (ch *Channel) Close() {
	close(ch.c)
}
