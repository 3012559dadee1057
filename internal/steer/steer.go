// Package steer implements the two in-memory per-chat intervention queues:
// steer (consumed mid tool-loop) and follow-up (consumed one-per-round at
// end of turn). Neither queue is persisted.
package steer

import (
	"sync"

	"github.com/google/uuid"
)

// QueuedMessage is one entry in a steer or follow-up queue.
type QueuedMessage struct {
	ID   string
	Text string
}

// Queues is the lock-protected map of per-chat steer/follow-up FIFOs.
type Queues struct {
	mu       sync.Mutex
	steer    map[string][]QueuedMessage
	followUp map[string][]QueuedMessage
}

func New() *Queues {
	return &Queues{steer: map[string][]QueuedMessage{}, followUp: map[string][]QueuedMessage{}}
}

// PushSteer appends a steer message and returns its id.
func (q *Queues) PushSteer(chatID, text string) string {
	msg := QueuedMessage{ID: uuid.NewString(), Text: text}
	q.mu.Lock()
	q.steer[chatID] = append(q.steer[chatID], msg)
	q.mu.Unlock()
	return msg.ID
}

// DrainSteer returns and clears all queued steer messages for chatID.
func (q *Queues) DrainSteer(chatID string) []QueuedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.steer[chatID]
	delete(q.steer, chatID)
	return out
}

// HasSteer reports whether any steer message is queued for chatID.
func (q *Queues) HasSteer(chatID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.steer[chatID]) > 0
}

// PushFollowUp appends a follow-up message and returns its id.
func (q *Queues) PushFollowUp(chatID, text string) string {
	msg := QueuedMessage{ID: uuid.NewString(), Text: text}
	q.mu.Lock()
	q.followUp[chatID] = append(q.followUp[chatID], msg)
	q.mu.Unlock()
	return msg.ID
}

// DrainFollowUp returns and clears all queued follow-up messages for chatID.
func (q *Queues) DrainFollowUp(chatID string) []QueuedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.followUp[chatID]
	delete(q.followUp, chatID)
	return out
}

// ConsumeOneFollowUp shifts and returns only the head follow-up message, or
// ok=false if the queue is empty.
func (q *Queues) ConsumeOneFollowUp(chatID string) (msg QueuedMessage, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	queue := q.followUp[chatID]
	if len(queue) == 0 {
		return QueuedMessage{}, false
	}
	head := queue[0]
	rest := append([]QueuedMessage{}, queue[1:]...)
	if len(rest) == 0 {
		delete(q.followUp, chatID)
	} else {
		q.followUp[chatID] = rest
	}
	return head, true
}

// HasFollowUp reports whether any follow-up message is queued for chatID.
func (q *Queues) HasFollowUp(chatID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.followUp[chatID]) > 0
}
