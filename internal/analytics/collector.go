package analytics

import "time"

// CollectContext provides shared state during the single pass over messages.
type CollectContext struct {
	Participants Participants

	// Now anchors date arithmetic such as days since the first talk.
	Now time.Time

	// MessageCount tracks the number of messages processed.
	MessageCount int
}

// Collector processes messages and accumulates metrics.
// Each report section implements this interface.
type Collector interface {
	// Collect is called for each message during the single pass.
	Collect(msg *Message, ctx *CollectContext)

	// Finalize is called after all messages have been processed.
	// Use this for post-processing like computing averages.
	Finalize(ctx *CollectContext)
}

// RunCollectors performs a single pass through messages, invoking all
// collectors for each one in log order.
func RunCollectors(messages []Message, p Participants, now time.Time, collectors ...Collector) *CollectContext {
	ctx := &CollectContext{Participants: p, Now: now}

	for i := range messages {
		ctx.MessageCount++
		for _, c := range collectors {
			c.Collect(&messages[i], ctx)
		}
	}

	for _, c := range collectors {
		c.Finalize(ctx)
	}
	return ctx
}
