// Package service relays direct messages: every message is persisted first,
// then pushed to the receiver's live connection when there is one.
package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"collegovibe/internal/chat/repository"
	"collegovibe/internal/common"
	"collegovibe/internal/dbmongo"
	"collegovibe/internal/dbmysql"
	"collegovibe/internal/metrics"
	"collegovibe/internal/worker"
)

// Push outcomes recorded on the pushes counter.
const (
	PushSent    = "sent"
	PushOffline = "offline"
	PushDropped = "dropped"
)

// Pusher delivers a message frame to one live connection. Unknown or closed
// connections are ignored and reported as not delivered.
type Pusher interface {
	PushTo(conn uuid.UUID, msg *dbmysql.Message) bool
}

// Receivers resolves handles to identities.
type Receivers interface {
	GetUserByHandle(ctx context.Context, handle string) (*dbmongo.User, error)
}

// Presence finds the live connection of a user id.
type Presence interface {
	Lookup(identity string) (uuid.UUID, bool)
}

// Dispatcher runs pushes off the caller's goroutine.
type Dispatcher interface {
	Submit(name string, t worker.Task) bool
}

// ChatService is what the transports depend on.
type ChatService interface {
	Send(ctx context.Context, sender, receiver, text string) (*dbmysql.Message, error)
	GetHistory(ctx context.Context, a, b string) ([]*dbmysql.Message, error)
}

// Relay persists direct messages and pushes them to a connected receiver.
type Relay struct {
	repo     repository.ChatRepository
	users    Receivers
	presence Presence
	pusher   Pusher
	tasks    Dispatcher
	clock    clockwork.Clock
	metrics  *metrics.Collector
	log      zerolog.Logger
}

func NewRelay(
	repo repository.ChatRepository,
	users Receivers,
	presence Presence,
	pusher Pusher,
	tasks Dispatcher,
	clock clockwork.Clock,
	m *metrics.Collector,
	log zerolog.Logger,
) *Relay {
	if m == nil {
		m = metrics.NewCollector(nil)
	}
	return &Relay{
		repo:     repo,
		users:    users,
		presence: presence,
		pusher:   pusher,
		tasks:    tasks,
		clock:    clock,
		metrics:  m,
		log:      log,
	}
}

// Send persists the message whether or not the receiver is online, then hands
// at most one push to the dispatcher. The push never blocks Send.
func (r *Relay) Send(ctx context.Context, sender, receiver, text string) (*dbmysql.Message, error) {
	if sender == "" || receiver == "" {
		return nil, common.Validationf("sender and receiver are required")
	}
	if err := common.ValidateText("message", text, common.MaxMessageLength); err != nil {
		return nil, err
	}
	rcpt, err := r.users.GetUserByHandle(ctx, receiver)
	if err != nil {
		return nil, err
	}

	msg := &dbmysql.Message{
		Sender:    sender,
		Receiver:  receiver,
		Text:      text,
		CreatedAt: r.clock.Now().UTC(),
	}
	if err := r.repo.Save(ctx, msg); err != nil {
		if !errors.Is(err, common.ErrTransient) {
			err = common.Transient("persist message", err)
		}
		return nil, err
	}
	r.metrics.MessagesPersisted.Inc()

	conn, online := r.presence.Lookup(rcpt.ID.Hex())
	if !online {
		r.metrics.Pushes.WithLabelValues(PushOffline).Inc()
		return msg, nil
	}

	pushed := *msg
	accepted := r.tasks.Submit("push message", func(context.Context) {
		if r.pusher.PushTo(conn, &pushed) {
			r.metrics.Pushes.WithLabelValues(PushSent).Inc()
			return
		}
		r.metrics.Pushes.WithLabelValues(PushDropped).Inc()
	})
	if !accepted {
		r.metrics.Pushes.WithLabelValues(PushDropped).Inc()
		r.log.Warn().Str("receiver", receiver).Uint("message", msg.ID).Msg("push not queued")
	}
	return msg, nil
}

func (r *Relay) GetHistory(ctx context.Context, a, b string) ([]*dbmysql.Message, error) {
	if a == "" || b == "" {
		return nil, common.Validationf("both handles are required")
	}
	return r.repo.FetchConversation(ctx, a, b)
}
