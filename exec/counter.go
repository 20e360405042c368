package exec

// Counter hands out row counters and call-frame ids for one run. A single
// Counter is threaded through every step of the run, nested executions
// included, so its values are globally ordered. It is not safe for
// concurrent use; frames never run in parallel.
type Counter struct {
	next      uint64
	nextFrame uint32
}

// FirstCounter is the counter of the first row of a run.
const FirstCounter = 1

func NewCounter() *Counter {
	return &Counter{next: FirstCounter, nextFrame: 1}
}

// Next returns the next unused row counter and advances. Callers must put the
// value into a row straight away; Step's Push helpers do both in one motion.
func (c *Counter) Next() uint64 {
	v := c.next
	c.next++
	return v
}

// Peek returns the counter the next row will get.
func (c *Counter) Peek() uint64 {
	return c.next
}

// Rewind discards every counter handed out at or after to. A session uses
// it to drop the rows of a step that failed.
func (c *Counter) Rewind(to uint64) {
	if to < c.next {
		c.next = to
	}
}

// NextFrame allocates a call-frame id for a nested execution. Frame 0 is the
// root; ids only grow, so a child always has a larger id than its parent.
func (c *Counter) NextFrame() uint32 {
	v := c.nextFrame
	c.nextFrame++
	return v
}
