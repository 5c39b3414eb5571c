package kafkaconsumer

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/IBM/sarama"
)

type messageProcessor func(context.Context, *sarama.ConsumerMessage) error

type groupHandler struct {
	process messageProcessor
	topic   string

	mu       sync.Mutex
	assigned []int32
	active   bool
}

func (h *groupHandler) Setup(s sarama.ConsumerGroupSession) error {
	parts := slices.Clone(s.Claims()[h.topic])
	slices.Sort(parts)
	h.mu.Lock()
	h.assigned = parts
	h.active = true
	h.mu.Unlock()
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	h.mu.Lock()
	h.assigned = nil
	h.active = false
	h.mu.Unlock()
	return nil
}

// readiness reports whether a session is live and which partitions it owns.
func (h *groupHandler) readiness() (bool, []int32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active, slices.Clone(h.assigned)
}

// ConsumeClaim processes messages in partition order and marks each one
// only after its invalidation succeeded.
func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := sess.Context()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("claim context done: %w", ctx.Err())
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.process(ctx, msg); err != nil {
				return fmt.Errorf("process failed (topic=%s, part=%d, off=%d): %w",
					msg.Topic, msg.Partition, msg.Offset, err)
			}
			sess.MarkMessage(msg, "")
		}
	}
}
