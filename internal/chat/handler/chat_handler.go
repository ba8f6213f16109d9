// Package handler exposes the relay over a bidirectional gRPC stream and a
// small HTTP surface for history.
package handler

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"collegovibe/internal/chat/service"
	"collegovibe/internal/common"
	"collegovibe/internal/dbmongo"
	"collegovibe/internal/dbmysql"
)

// Frame events.
const (
	EventJoinUser        = "joinUser"
	EventJoined          = "joined"
	EventMessageByUser   = "messageByUser"
	EventMessageSent     = "messageSent"
	EventMessageByServer = "messageByServer"
	EventError           = "error"
)

// Users resolves the caller's current handle from the id in the token.
type Users interface {
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*dbmongo.User, error)
}

// Presence binds user ids to live connections.
type Presence interface {
	Announce(identity string, conn uuid.UUID) (uuid.UUID, bool)
	Remove(identity string, conn uuid.UUID) bool
}

// --------- STREAM HUB ---------

type liveStream struct {
	mu     sync.Mutex
	stream ChatRelay_ConnectServer
}

// StreamHub owns every open relay stream, keyed by a per-connection handle.
// Sends on one stream are serialized.
type StreamHub struct {
	mu      sync.RWMutex
	streams map[uuid.UUID]*liveStream
	log     zerolog.Logger
}

func NewStreamHub(log zerolog.Logger) *StreamHub {
	return &StreamHub{
		streams: make(map[uuid.UUID]*liveStream),
		log:     log,
	}
}

func (h *StreamHub) attach(stream ChatRelay_ConnectServer) uuid.UUID {
	id := uuid.New()
	h.mu.Lock()
	h.streams[id] = &liveStream{stream: stream}
	h.mu.Unlock()
	return id
}

func (h *StreamHub) detach(id uuid.UUID) {
	h.mu.Lock()
	delete(h.streams, id)
	h.mu.Unlock()
}

func (h *StreamHub) send(id uuid.UUID, frame *structpb.Struct) error {
	h.mu.RLock()
	ls, ok := h.streams[id]
	h.mu.RUnlock()
	if !ok {
		return io.ErrClosedPipe
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.stream.Send(frame)
}

// PushTo sends msg as a messageByServer frame. It reports false for unknown
// connections and failed sends.
func (h *StreamHub) PushTo(conn uuid.UUID, msg *dbmysql.Message) bool {
	frame, err := messageFrame(EventMessageByServer, msg)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to encode message frame")
		return false
	}
	if err := h.send(conn, frame); err != nil {
		h.log.Debug().Err(err).Str("conn", conn.String()).Msg("push skipped")
		return false
	}
	return true
}

// Len reports the number of open streams.
func (h *StreamHub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.streams)
}

// --------- HANDLER ---------

type ChatHandler struct {
	relay    service.ChatService
	presence Presence
	hub      *StreamHub
	users    Users
	log      zerolog.Logger
}

func NewChatHandler(relay service.ChatService, presence Presence, hub *StreamHub, users Users, log zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		relay:    relay,
		presence: presence,
		hub:      hub,
		users:    users,
		log:      log,
	}
}

// Connect serves one client stream until the client closes it or the stream
// context ends. A joinUser frame binds the caller's user id to this stream;
// the binding is removed when the stream ends unless a newer stream took over.
// The caller's handle is looked up again for every frame so a rename made
// while the stream is open takes effect immediately.
func (h *ChatHandler) Connect(stream ChatRelay_ConnectServer) error {
	ctx := stream.Context()
	me, err := caller(ctx, h.users)
	if err != nil {
		return status.Error(common.GRPCCode(err), err.Error())
	}
	identity := me.ID.Hex()

	conn := h.hub.attach(stream)
	joined := false
	defer func() {
		h.hub.detach(conn)
		if joined && h.presence.Remove(identity, conn) {
			h.log.Info().Str("user", identity).Str("conn", conn.String()).Msg("user left")
		}
	}()

	for {
		frame, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if status.Code(err) == codes.Canceled {
				return nil
			}
			return err
		}

		me, err = caller(ctx, h.users)
		if err != nil {
			h.reply(conn, errorFrame(err))
			continue
		}

		switch ev := stringField(frame, "event"); ev {
		case EventJoinUser:
			if prev, replaced := h.presence.Announce(identity, conn); replaced && prev != conn {
				h.log.Info().Str("user", identity).Str("replaced", prev.String()).Msg("presence moved to new connection")
			}
			joined = true
			h.reply(conn, ackFrame(me.Username))

		case EventMessageByUser:
			msg, err := h.relay.Send(ctx, me.Username, stringField(frame, "receiver"), stringField(frame, "text"))
			if err != nil {
				h.reply(conn, errorFrame(err))
				continue
			}
			out, err := messageFrame(EventMessageSent, msg)
			if err != nil {
				h.reply(conn, errorFrame(err))
				continue
			}
			h.reply(conn, out)

		default:
			h.reply(conn, errorFrame(common.Validationf("unknown event %q", ev)))
		}
	}
}

func (h *ChatHandler) reply(conn uuid.UUID, frame *structpb.Struct) {
	if err := h.hub.send(conn, frame); err != nil {
		h.log.Warn().Err(err).Str("conn", conn.String()).Msg("failed to reply on stream")
	}
}

// caller loads the authenticated user. Tokens carry the id, and handles can
// change after login.
func caller(ctx context.Context, users Users) (*dbmongo.User, error) {
	id, ok := common.IdentityFrom(ctx)
	if !ok {
		return nil, common.Unauthorizedf("not authenticated")
	}
	oid, err := primitive.ObjectIDFromHex(id.UserID)
	if err != nil {
		return nil, common.Unauthorizedf("not authenticated")
	}
	return users.GetUserByID(ctx, oid)
}

// callerHandle resolves the authenticated caller's current handle.
func callerHandle(ctx context.Context, users Users) (string, error) {
	u, err := caller(ctx, users)
	if err != nil {
		return "", err
	}
	return u.Username, nil
}

// --------- FRAMES ---------

func stringField(frame *structpb.Struct, key string) string {
	if frame == nil {
		return ""
	}
	return frame.GetFields()[key].GetStringValue()
}

func messageFrame(event string, msg *dbmysql.Message) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		"event":      event,
		"id":         float64(msg.ID),
		"sender":     msg.Sender,
		"receiver":   msg.Receiver,
		"text":       msg.Text,
		"created_at": msg.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
}

func ackFrame(handle string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"event":  structpb.NewStringValue(EventJoined),
		"handle": structpb.NewStringValue(handle),
	}}
}

func errorFrame(err error) *structpb.Struct {
	code := common.GRPCCode(err)
	message := err.Error()
	if code == codes.Internal || code == codes.Unavailable {
		message = "temporarily unavailable, try again"
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"event":   structpb.NewStringValue(EventError),
		"code":    structpb.NewStringValue(code.String()),
		"message": structpb.NewStringValue(message),
	}}
}
