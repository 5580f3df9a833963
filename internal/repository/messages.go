package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/jobboard/internal/dedup"
	"github.com/matheus3301/jobboard/internal/gate"
	"github.com/matheus3301/jobboard/internal/identity"
	"github.com/matheus3301/jobboard/internal/model"
	"github.com/matheus3301/jobboard/internal/remote"
	"github.com/matheus3301/jobboard/internal/store"
	"go.uber.org/zap"
)

const (
	// SendWindow suppresses a send that repeats a message stored this recently.
	SendWindow = 3 * time.Second
	// PullWindow matches a pulled remote message against its local copy.
	PullWindow = 5 * time.Second
)

// NameResolver supplies the sender name carried by notifications.
type NameResolver interface {
	DisplayName(ctx context.Context, userID int64) (string, error)
}

// Messages reconciles conversations between the local and remote stores.
// Messages are append-only: there is no update or delete.
type Messages struct {
	base
	names    NameResolver
	resolver *dedup.Resolver[model.Message]

	mu    sync.Mutex
	locks map[model.Conversation]*sync.Mutex
}

// MessageKeys groups messages with the same sender, receiver, text and
// timestamp: copies of one send. Messages that only fall inside a time
// window of each other are distinct and are never collapsed on read.
func MessageKeys() dedup.Keys[model.Message] {
	return dedup.Keys[model.Message]{
		Identity: func(m model.Message) string {
			return m.ContentKey() + "@" + strconv.FormatInt(m.Timestamp, 10)
		},
		Storage: func(m model.Message) int64 { return m.ID },
		Prefer:  func(m model.Message) bool { return !offlineKeyed(m) },
	}
}

// offlineKeyed reports whether m is stored under its content key, which
// only happens for sends the remote store never accepted.
func offlineKeyed(m model.Message) bool {
	return m.ID == identity.MessageKey(m)
}

// NewMessages creates the messages repository. names may be nil, in which
// case notifications carry an empty sender name.
func NewMessages(db *store.DB, rs remote.Store, g gate.Gate, names NameResolver, logger *zap.Logger, opts ...Option) *Messages {
	b := newBase(db, rs, g, logger, opts)
	return &Messages{
		base:     b,
		names:    names,
		resolver: dedup.NewResolver("message", MessageKeys(), db.DeleteMessage, b.logger),
		locks:    make(map[model.Conversation]*sync.Mutex),
	}
}

// lock returns the send mutex of a conversation.
func (r *Messages) lock(c model.Conversation) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[c]
	if !ok {
		l = &sync.Mutex{}
		r.locks[c] = l
	}
	return l
}

// Send stores m and queues a notification for its receiver. A message with
// the same text between the same users stored less than SendWindow ago is
// not written again: its key is returned with Existing set. Sends within a
// conversation are serialized.
func (r *Messages) Send(ctx context.Context, m model.Message) (WriteResult, error) {
	if err := m.Validate(); err != nil {
		return WriteResult{}, err
	}
	if m.Timestamp == 0 {
		m.Timestamp = r.nowMillis()
	}

	l := r.lock(m.Conversation())
	l.Lock()
	defer l.Unlock()

	existing, err := r.db.MessagesInWindow(ctx, m, SendWindow.Milliseconds())
	if err != nil {
		return WriteResult{}, fmt.Errorf("check duplicate message: %w", err)
	}
	if len(existing) > 0 {
		r.logger.Debug("duplicate send suppressed", zap.Int64("key", existing[0].ID))
		return WriteResult{Key: existing[0].ID, Existing: true}, nil
	}

	m.ID = 0
	if r.online(ctx) {
		id, err := r.remote.Add(ctx, remote.Messages, messageDocument(m))
		if err != nil {
			r.remoteFailed("message write", err, zap.String("conversation", m.Conversation().String()))
		} else {
			m.ID = identity.RemoteKey(id)
		}
	}
	mirrored := m.ID != 0
	if !mirrored {
		m.ID = identity.MessageKey(m)
	}

	if err := r.db.UpsertMessage(ctx, m); err != nil {
		return WriteResult{}, fmt.Errorf("save message: %w", err)
	}
	r.notify(ctx, m)
	return WriteResult{Key: m.ID, Mirrored: mirrored}, nil
}

// notify queues the push notification for a stored message. Failures are
// logged only; the send already succeeded.
func (r *Messages) notify(ctx context.Context, m model.Message) {
	var name string
	if r.names != nil {
		n, err := r.names.DisplayName(ctx, m.SenderID)
		if err != nil {
			r.logger.Warn("sender name lookup failed", zap.Int64("sender", m.SenderID), zap.Error(err))
		}
		name = n
	}
	err := r.db.QueueNotification(ctx, store.Notification{
		ClientID:   uuid.NewString(),
		ReceiverID: m.ReceiverID,
		SenderID:   m.SenderID,
		SenderName: name,
		Text:       m.Text,
	})
	if err != nil {
		r.logger.Warn("notification queue failed", zap.Int64("key", m.ID), zap.Error(err))
	}
}

// Mirror stores a message fetched from the remote store and reports
// whether it was new to the local store. When the message is not stored
// yet, the closest offline copy of it within PullWindow is replaced, so a
// send that reached the remote store later is not listed twice. Other
// local messages are never removed.
func (r *Messages) Mirror(ctx context.Context, m model.Message) (bool, error) {
	prev, err := r.db.GetMessage(ctx, m.ID)
	if err != nil {
		return false, fmt.Errorf("get message: %w", err)
	}
	fresh := prev == nil
	if fresh {
		twin, err := r.offlineTwin(ctx, m)
		if err != nil {
			return false, err
		}
		if twin != nil {
			fresh = false
			if err := r.db.DeleteMessage(ctx, twin.ID); err != nil {
				r.logger.Warn("offline message replace failed", zap.Int64("key", twin.ID), zap.Error(err))
			}
		}
	}
	if err := r.db.UpsertMessage(ctx, m); err != nil {
		return false, fmt.Errorf("save message: %w", err)
	}
	return fresh, nil
}

// offlineTwin returns the offline-keyed local message closest in time to m
// within PullWindow, or nil.
func (r *Messages) offlineTwin(ctx context.Context, m model.Message) (*model.Message, error) {
	near, err := r.db.MessagesInWindow(ctx, m, PullWindow.Milliseconds())
	if err != nil {
		return nil, fmt.Errorf("check duplicate message: %w", err)
	}
	var best *model.Message
	for i := range near {
		d := &near[i]
		if d.ID == m.ID || !offlineKeyed(*d) || !d.Near(m, PullWindow) {
			continue
		}
		if best == nil || gap(*d, m) < gap(*best, m) {
			best = d
		}
	}
	return best, nil
}

func gap(a, b model.Message) int64 {
	if a.Timestamp > b.Timestamp {
		return a.Timestamp - b.Timestamp
	}
	return b.Timestamp - a.Timestamp
}

// SyncConversation pulls both directions of the conversation between a and
// b from the remote store into the local store. It reports SourceLocal when
// the gate is closed and SourceLocalFallback when the pull failed.
func (r *Messages) SyncConversation(ctx context.Context, a, b int64) (Source, error) {
	if !r.online(ctx) {
		return SourceLocal, nil
	}
	queries := []remote.Query{
		remote.Where("senderId", remote.Eq, ref(a)).Where("receiverId", remote.Eq, ref(b)),
		remote.Where("senderId", remote.Eq, ref(b)).Where("receiverId", remote.Eq, ref(a)),
	}
	if _, err := r.pull(ctx, queries...); err != nil {
		if isLocalErr(err) {
			return 0, err
		}
		r.remoteFailed("conversation pull", err, zap.String("conversation", model.ConversationOf(a, b).String()))
		return SourceLocalFallback, nil
	}
	return SourceRemote, nil
}

// Incoming pulls messages addressed to receiver with a timestamp after
// since and returns the ones that were new to the local store, oldest
// first. Source is SourceRemote only when the pull succeeded.
func (r *Messages) Incoming(ctx context.Context, receiver, since int64) (ListResult[model.Message], error) {
	if !r.online(ctx) {
		return ListResult[model.Message]{Source: SourceLocal}, nil
	}
	fresh, err := r.pull(ctx, remote.
		Where("receiverId", remote.Eq, ref(receiver)).
		Where("timestamp", remote.Gt, since).
		OrderBy("timestamp", false))
	if err != nil {
		if isLocalErr(err) {
			return ListResult[model.Message]{}, err
		}
		r.remoteFailed("incoming pull", err, zap.Int64("receiver", receiver))
		return ListResult[model.Message]{Source: SourceLocalFallback}, nil
	}
	return ListResult[model.Message]{Items: fresh, Source: SourceRemote}, nil
}

// localErr marks a pull failure that came from the local store.
type localErr struct{ err error }

func (e localErr) Error() string { return e.err.Error() }
func (e localErr) Unwrap() error { return e.err }

func isLocalErr(err error) bool {
	var le localErr
	return errors.As(err, &le)
}

// pull runs queries against the remote messages collection and stores
// every decoded message, returning the ones that were new.
func (r *Messages) pull(ctx context.Context, queries ...remote.Query) ([]model.Message, error) {
	var docs []remote.Document
	for _, q := range queries {
		found, err := r.remote.Query(ctx, remote.Messages, q)
		if err != nil {
			return nil, err
		}
		docs = append(docs, found...)
	}

	var msgs []model.Message
	for _, doc := range docs {
		m, err := decodeMessage(doc)
		if err != nil {
			r.skipDocument(remote.Messages, err)
			continue
		}
		msgs = append(msgs, m)
	}
	msgs, _ = dedup.Collapse(msgs, r.resolver.Keys())

	var fresh []model.Message
	for _, m := range msgs {
		isNew, err := r.Mirror(ctx, m)
		if err != nil {
			return nil, localErr{err}
		}
		if isNew {
			fresh = append(fresh, m)
		}
	}
	r.logger.Debug("messages mirrored", zap.Int("count", len(msgs)), zap.Int("new", len(fresh)))
	return fresh, nil
}

// Conversation returns the messages between a and b, oldest first. With the
// remote reachable the conversation is pulled before the local read.
func (r *Messages) Conversation(ctx context.Context, a, b int64) (ListResult[model.Message], error) {
	src, err := r.SyncConversation(ctx, a, b)
	if err != nil {
		return ListResult[model.Message]{}, err
	}
	msgs, err := r.conversationLocal(ctx, a, b)
	return ListResult[model.Message]{Items: msgs, Source: src}, err
}

func (r *Messages) conversationLocal(ctx context.Context, a, b int64) ([]model.Message, error) {
	msgs, err := r.db.ListConversation(ctx, a, b)
	if err != nil {
		return nil, fmt.Errorf("list conversation: %w", err)
	}
	return r.resolver.Resolve(ctx, msgs), nil
}

// ForUser returns every message sent or received by userID, newest first.
func (r *Messages) ForUser(ctx context.Context, userID int64) (ListResult[model.Message], error) {
	src := SourceLocal
	if r.online(ctx) {
		_, err := r.pull(ctx,
			remote.Where("senderId", remote.Eq, ref(userID)),
			remote.Where("receiverId", remote.Eq, ref(userID)))
		switch {
		case err == nil:
			src = SourceRemote
		case isLocalErr(err):
			return ListResult[model.Message]{}, err
		default:
			r.remoteFailed("user messages pull", err, zap.Int64("user", userID))
			src = SourceLocalFallback
		}
	}
	msgs, err := r.db.ListMessagesForUser(ctx, userID)
	if err != nil {
		return ListResult[model.Message]{}, fmt.Errorf("list messages: %w", err)
	}
	return ListResult[model.Message]{Items: r.resolver.Resolve(ctx, msgs), Source: src}, nil
}

// Get returns the message stored under key, scanning the remote store when
// it is missing locally.
func (r *Messages) Get(ctx context.Context, key int64) (Result[model.Message], error) {
	local, err := r.db.GetMessage(ctx, key)
	if err != nil {
		return Result[model.Message]{}, fmt.Errorf("get message: %w", err)
	}
	if local != nil {
		return Result[model.Message]{Value: *local, Found: true, Source: SourceLocal}, nil
	}
	if !r.online(ctx) {
		return Result[model.Message]{Source: SourceLocal}, nil
	}

	docs, err := r.remote.Query(ctx, remote.Messages, remote.Query{})
	if err != nil {
		r.remoteFailed("message scan", err, zap.Int64("key", key))
		return Result[model.Message]{Source: SourceLocalFallback}, nil
	}
	for _, doc := range docs {
		if !matchesKey(doc.ID, key) {
			continue
		}
		m, err := decodeMessage(doc)
		if err != nil {
			r.skipDocument(remote.Messages, err)
			continue
		}
		m.ID = key
		if _, err := r.Mirror(ctx, m); err != nil {
			return Result[model.Message]{}, err
		}
		return Result[model.Message]{Value: m, Found: true, Source: SourceRemote}, nil
	}
	return Result[model.Message]{Source: SourceRemote}, nil
}

// WatchConversation emits the conversation between a and b now and after
// every local change to messages.
func (r *Messages) WatchConversation(ctx context.Context, a, b int64) *Subscription[model.Message] {
	return watch(ctx, r.bus, "messages", r.logger,
		func(ctx context.Context) ([]model.Message, error) {
			res, err := r.Conversation(ctx, a, b)
			return res.Items, err
		},
		func(ctx context.Context) ([]model.Message, error) {
			return r.conversationLocal(ctx, a, b)
		},
	)
}

// ConversationWatcher follows the one conversation a user has open. Opening
// another conversation cancels the previous subscription.
type ConversationWatcher struct {
	msgs *Messages

	mu   sync.Mutex
	conv model.Conversation
	sub  *Subscription[model.Message]
}

// NewConversationWatcher creates a watcher over msgs.
func NewConversationWatcher(msgs *Messages) *ConversationWatcher {
	return &ConversationWatcher{msgs: msgs}
}

// Open starts watching the conversation between a and b. Reopening the
// conversation already open returns its subscription.
func (w *ConversationWatcher) Open(ctx context.Context, a, b int64) *Subscription[model.Message] {
	c := model.ConversationOf(a, b)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sub != nil {
		select {
		case <-w.sub.Done():
		default:
			if w.conv == c {
				return w.sub
			}
		}
		w.sub.Cancel()
	}
	w.conv = c
	w.sub = w.msgs.WatchConversation(ctx, a, b)
	return w.sub
}

// Close cancels the open subscription, if any.
func (w *ConversationWatcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sub != nil {
		w.sub.Cancel()
		w.sub = nil
	}
}
