package storage

import (
	"context"
	"io"
	"sync"
	"time"

	"chatcore/apperrors"
	"chatcore/pkg/logger"
	"chatcore/pkg/metrics"
	"chatcore/services/directory"
	"chatcore/services/messages"
)

const (
	notifyBufferSize = 1000
	notifyTimeout    = 5 * time.Second
)

type mutationKind int

const (
	mutationChatCreated mutationKind = iota
	mutationMessageAppended
	mutationMessageSeen
	mutationChatRefreshed
)

func (k mutationKind) String() string {
	switch k {
	case mutationChatCreated:
		return "chat_created"
	case mutationMessageAppended:
		return "message_appended"
	case mutationMessageSeen:
		return "message_seen"
	case mutationChatRefreshed:
		return "chat_refreshed"
	}
	return "unknown"
}

type mutation struct {
	kind      mutationKind
	chat      directory.Chat
	msg       messages.Message
	chatID    string
	messageID string
	userID    string
}

// Notifier decouples the delivery path from persistence backends: mutations
// are enqueued without blocking and a single worker applies them to every
// provider in arrival order. A full queue drops the notification; the
// in-memory state stays authoritative either way.
type Notifier struct {
	providers []Provider
	queue     chan mutation
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewNotifier(providers ...Provider) *Notifier {
	n := &Notifier{
		providers: providers,
		queue:     make(chan mutation, notifyBufferSize),
		done:      make(chan struct{}),
	}

	n.wg.Add(1)
	go n.worker()

	return n
}

func (n *Notifier) ChatCreated(chat directory.Chat) {
	n.enqueue(mutation{kind: mutationChatCreated, chat: chat})
}

func (n *Notifier) MessageAppended(msg messages.Message) {
	n.enqueue(mutation{kind: mutationMessageAppended, msg: msg})
}

func (n *Notifier) MessageSeen(chatID, messageID, userID string) {
	n.enqueue(mutation{kind: mutationMessageSeen, chatID: chatID, messageID: messageID, userID: userID})
}

func (n *Notifier) ChatRefreshed(chatID string) {
	n.enqueue(mutation{kind: mutationChatRefreshed, chatID: chatID})
}

func (n *Notifier) enqueue(m mutation) {
	if len(n.providers) == 0 {
		return
	}

	select {
	case n.queue <- m:
	default:
		logger.Warn("persistence queue full, dropping notification")
		for _, p := range n.providers {
			metrics.StorageNotifications.WithLabelValues(p.Name(), "dropped").Inc()
		}
	}
}

func (n *Notifier) worker() {
	defer n.wg.Done()

	for {
		select {
		case m := <-n.queue:
			n.dispatch(m)
		case <-n.done:
			// Final drain on shutdown
			for {
				select {
				case m := <-n.queue:
					n.dispatch(m)
				default:
					return
				}
			}
		}
	}
}

func (n *Notifier) dispatch(m mutation) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	for _, p := range n.providers {
		var err error
		switch m.kind {
		case mutationChatCreated:
			err = p.ChatCreated(ctx, m.chat)
		case mutationMessageAppended:
			err = p.MessageAppended(ctx, m.msg)
		case mutationMessageSeen:
			err = p.MessageSeen(ctx, m.chatID, m.messageID, m.userID)
		case mutationChatRefreshed:
			err = p.ChatRefreshed(ctx, m.chatID)
		}

		metrics.RecordStorageNotification(p.Name(), err)
		if err != nil {
			logger.WithField("backend", p.Name()).
				WithError(apperrors.NewStorageError(m.kind.String(), err)).
				Error("persistence notification failed")
		}
	}
}

// Close drains the queue and closes every provider that supports it
func (n *Notifier) Close() error {
	n.closeOnce.Do(func() {
		close(n.done)
		n.wg.Wait()

		for _, p := range n.providers {
			if closer, ok := p.(io.Closer); ok {
				if err := closer.Close(); err != nil {
					logger.WithField("backend", p.Name()).WithError(err).Error("provider close failed")
				}
			}
		}
	})

	return nil
}
