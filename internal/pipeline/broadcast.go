// -----------------------------------------------------------------------
// Status Broadcaster - per-job fan-out of status transitions to live
// subscribers
// -----------------------------------------------------------------------

package pipeline

import (
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/audiforge/audiforge/internal/common"
	"github.com/audiforge/audiforge/internal/models"
)

// subscriberBuffer sizes each subscriber channel. A job makes a small,
// bounded number of transitions, so this comfortably absorbs a slow
// reader without blocking the publisher.
const subscriberBuffer = 16

type subscriber struct {
	ch   chan models.StatusRecord
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.ch) })
}

// Broadcaster fans out status transitions to every live subscriber of
// a job. Publishing never blocks: a subscriber whose buffer is full
// misses that record. After a terminal record is published, all
// subscriptions for the job are severed once a short grace delay has
// given slow readers a final window to receive it.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]*subscriber
	nextID uint64
	tap    func(models.StatusRecord)
	grace  time.Duration
	logger arbor.ILogger
}

// NewBroadcaster creates a new Broadcaster
func NewBroadcaster(grace time.Duration, logger arbor.ILogger) *Broadcaster {
	return &Broadcaster{
		subs:   make(map[string]map[uint64]*subscriber),
		grace:  grace,
		logger: logger,
	}
}

// SetTap installs a callback invoked for every published record across
// all jobs. Used for hub-style observers that watch everything; per-job
// delivery still goes through Subscribe.
func (b *Broadcaster) SetTap(fn func(models.StatusRecord)) {
	b.mu.Lock()
	b.tap = fn
	b.mu.Unlock()
}

// Subscribe registers a new subscriber for the job and returns its
// receive channel plus an unsubscribe function. The channel is closed
// when the subscription ends, whether by the unsubscribe function or
// by terminal severance. Unsubscribing is idempotent and safe to call
// concurrently with a publish in progress.
func (b *Broadcaster) Subscribe(jobID string) (<-chan models.StatusRecord, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID

	sub := &subscriber{ch: make(chan models.StatusRecord, subscriberBuffer)}
	if b.subs[jobID] == nil {
		b.subs[jobID] = make(map[uint64]*subscriber)
	}
	b.subs[jobID][id] = sub

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if jobSubs, ok := b.subs[jobID]; ok {
			if _, ok := jobSubs[id]; ok {
				delete(jobSubs, id)
				if len(jobSubs) == 0 {
					delete(b.subs, jobID)
				}
			}
		}
		sub.close()
	}

	return sub.ch, unsubscribe
}

// Publish delivers the record to every subscriber currently registered
// for its job. Delivery order across subscribers is unspecified; the
// per-subscriber order matches publication order. When the record is
// terminal, severance of all the job's subscriptions is scheduled
// after the grace delay.
func (b *Broadcaster) Publish(record models.StatusRecord) {
	b.mu.RLock()
	for _, sub := range b.subs[record.JobID] {
		select {
		case sub.ch <- record:
		default:
			// Subscriber buffer full; it misses this record.
		}
	}
	count := len(b.subs[record.JobID])
	tap := b.tap
	b.mu.RUnlock()

	if tap != nil {
		tap(record)
	}

	b.logger.Debug().
		Str("job_id", record.JobID).
		Str("status", string(record.Status)).
		Int("subscribers", count).
		Msg("Published status transition")

	if record.Status.IsTerminal() {
		common.SafeGo(b.logger, "broadcast-severance-"+record.JobID, func() {
			time.Sleep(b.grace)
			b.CloseJob(record.JobID)
		})
	}
}

// CloseJob severs every subscription for the job and closes their
// channels.
func (b *Broadcaster) CloseJob(jobID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs[jobID] {
		sub.close()
	}
	delete(b.subs, jobID)
}

// SubscriberCount returns how many subscribers a job currently has.
func (b *Broadcaster) SubscriberCount(jobID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[jobID])
}
