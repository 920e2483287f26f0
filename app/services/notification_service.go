package services

import (
	"context"
	"log"
	"time"

	"github.com/linktum-io/linktum/config"
)

// Notifier queues outbound account notifications. Delivery is best effort:
// queueing never blocks the caller and failures are logged, not returned.
type Notifier interface {
	Queue(phone, message string)
}

// BatchNotifier drains queued notifications in batches with a pause between
// them, keeping bulk sends (billing warnings, deletion notices) under the
// WhatsApp API rate ceiling.
type BatchNotifier struct {
	sender     WhatsAppSender
	queue      chan notification
	batchSize  int
	batchPause time.Duration
	logger     *log.Logger
	done       chan struct{}
}

type notification struct {
	phone   string
	message string
}

// NewBatchNotifier creates a notifier and starts its delivery worker.
func NewBatchNotifier(sender WhatsAppSender, cfg config.NotifyConfig, logger *log.Logger) *BatchNotifier {
	if logger == nil {
		logger = log.Default()
	}
	n := &BatchNotifier{
		sender:     sender,
		queue:      make(chan notification, cfg.QueueSize),
		batchSize:  cfg.BatchSize,
		batchPause: cfg.BatchPause,
		logger:     logger,
		done:       make(chan struct{}),
	}
	go n.deliverLoop()
	return n
}

// Queue enqueues a notification. When the queue is full the notification is
// dropped and logged rather than blocking the caller.
func (n *BatchNotifier) Queue(phone, message string) {
	select {
	case n.queue <- notification{phone: phone, message: message}:
	default:
		n.logger.Printf("WARN notification queue full, dropping message for %s", phone)
	}
}

// Stop shuts down the delivery worker. Queued notifications not yet sent
// are discarded.
func (n *BatchNotifier) Stop() {
	close(n.done)
}

func (n *BatchNotifier) deliverLoop() {
	for {
		batch := n.nextBatch()
		if batch == nil {
			return
		}
		for _, item := range batch {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			if err := n.sender.SendText(ctx, item.phone, item.message); err != nil {
				n.logger.Printf("WARN failed to notify %s: %v", item.phone, err)
			}
			cancel()
		}
		select {
		case <-n.done:
			return
		case <-time.After(n.batchPause):
		}
	}
}

// nextBatch blocks for the first notification, then collects up to
// batchSize without waiting. Returns nil when the notifier is stopped.
func (n *BatchNotifier) nextBatch() []notification {
	var batch []notification
	select {
	case <-n.done:
		return nil
	case first := <-n.queue:
		batch = append(batch, first)
	}
	for len(batch) < n.batchSize {
		select {
		case item := <-n.queue:
			batch = append(batch, item)
		default:
			return batch
		}
	}
	return batch
}
