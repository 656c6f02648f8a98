package hub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/filmnt/chat/chat-service/internal/config"
	"github.com/filmnt/chat/chat-service/internal/domain"
	"github.com/filmnt/chat/chat-service/internal/history"
	"github.com/filmnt/chat/chat-service/internal/kafka"
	"github.com/filmnt/chat/chat-service/internal/metrics"
	"github.com/filmnt/chat/chat-service/internal/moderation"
	"github.com/filmnt/chat/chat-service/internal/persist"
	"github.com/filmnt/chat/chat-service/internal/ratelimit"
	"github.com/filmnt/chat/pkg/log"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Peer is the hub's view of one connection.
type Peer interface {
	ID() string
	// Enqueue queues an outbound frame without blocking. It reports false
	// when the peer cannot keep up.
	Enqueue(data []byte) bool
	// Close stops the peer's writer. It may be called more than once.
	Close()
}

// Options configure a Hub. Store, Saver and Producer are optional.
type Options struct {
	Room        config.RoomConfig
	Rate        ratelimit.Config
	AdminSecret string
	Store       persist.StateStore
	Saver       persist.Saver
	Producer    kafka.EventProducer
	Clock       func() time.Time
	NewID       func() string
}

// Stats is a point-in-time view of the room.
type Stats struct {
	Connections int
	Users       int
	Messages    int
	Frozen      bool
	AdminOnly   bool
}

type eventKind int

const (
	evJoin eventKind = iota
	evLeave
	evFrame
	evAnnounce
	evStats
)

type event struct {
	kind   eventKind
	peer   Peer
	connID string
	data   []byte
	text   string
	reply  chan Stats
}

// Hub is the coordinator of the room. Every piece of room state is owned
// by the Run goroutine; other goroutines talk to it through events, which
// are handled strictly in arrival order.
type Hub struct {
	opts Options

	peers   map[string]Peer
	roster  *moderation.Roster
	mod     *moderation.State
	history *history.Store
	limiter *ratelimit.Limiter

	events chan event
	ctx    context.Context
	done   chan struct{}
}

func NewHub(opts Options) *Hub {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Producer == nil {
		opts.Producer = kafka.NoopProducer{}
	}
	if opts.Room.Name == "" {
		opts.Room.Name = "main"
	}
	return &Hub{
		opts:    opts,
		peers:   make(map[string]Peer),
		roster:  moderation.NewRoster(),
		mod:     moderation.NewState(opts.AdminSecret),
		history: history.New(),
		limiter: ratelimit.New(opts.Rate),
		events:  make(chan event, 1024),
		ctx:     roomContext(context.Background(), opts.Room.Name),
		done:    make(chan struct{}),
	}
}

func roomContext(ctx context.Context, room string) context.Context {
	l := log.Ctx(ctx)
	return log.WithLogger(ctx, l.With().Str(log.FieldRoom, room).Logger())
}

// Run loads persisted state and processes events until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	h.ctx = roomContext(ctx, h.opts.Room.Name)
	h.load(ctx)

	var sweep <-chan time.Time
	if h.opts.Room.SweepInterval > 0 {
		ticker := time.NewTicker(h.opts.Room.SweepInterval)
		defer ticker.Stop()
		sweep = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			for id, p := range h.peers {
				p.Close()
				delete(h.peers, id)
			}
			metrics.ConnectionsActive.Set(0)
			return

		case ev := <-h.events:
			h.handle(ev)

		case <-sweep:
			h.sweep()
		}
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Join registers a new connection.
func (h *Hub) Join(p Peer) {
	h.post(event{kind: evJoin, peer: p, connID: p.ID()})
}

// Leave removes a connection. Leaving twice is harmless.
func (h *Hub) Leave(connID string) {
	h.post(event{kind: evLeave, connID: connID})
}

// Deliver hands an inbound frame from a connection to the hub.
func (h *Hub) Deliver(connID string, data []byte) {
	h.post(event{kind: evFrame, connID: connID, data: data})
}

// Announce broadcasts a system message. It bypasses every gate and is not
// stored.
func (h *Hub) Announce(content string) {
	h.post(event{kind: evAnnounce, text: content})
}

// Stats queries the room state through the hub goroutine.
func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	reply := make(chan Stats, 1)
	if !h.postCtx(ctx, event{kind: evStats, reply: reply}) {
		return Stats{}, ctx.Err()
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	case <-h.done:
		return Stats{}, context.Canceled
	}
}

func (h *Hub) post(ev event) {
	select {
	case h.events <- ev:
	case <-h.done:
	}
}

func (h *Hub) postCtx(ctx context.Context, ev event) bool {
	select {
	case h.events <- ev:
		return true
	case <-h.done:
		return false
	case <-ctx.Done():
		return false
	}
}

func (h *Hub) handle(ev event) {
	switch ev.kind {
	case evJoin:
		h.join(ev.peer)
	case evLeave:
		h.leave(ev.connID)
	case evFrame:
		h.handleFrame(ev.connID, ev.data)
	case evAnnounce:
		h.announce(ev.text)
	case evStats:
		flags := h.mod.Flags()
		ev.reply <- Stats{
			Connections: len(h.peers),
			Users:       len(h.roster.Names()),
			Messages:    h.history.Len(),
			Frozen:      flags.Frozen,
			AdminOnly:   flags.AdminOnly,
		}
	}
}

func (h *Hub) load(ctx context.Context) {
	if h.opts.Store == nil {
		return
	}
	l := h.logger()
	snap, err := h.opts.Store.Load(ctx, h.opts.Room.Name)
	if err != nil {
		l.Error().Err(err).Msg("Failed to load room state, starting empty")
		return
	}
	now := h.now()
	h.history.Restore(snap.Messages, now, h.opts.Room.Window())
	h.history.Trim(h.opts.Room.MaxMessages)
	h.mod.Restore(snap.Bans, snap.Flags, snap.Admins, now)
	metrics.MessagesStored.Set(float64(h.history.Len()))
	l.Info().
		Int("messages", h.history.Len()).
		Int("bans", len(h.mod.ActiveBans(now))).
		Bool("frozen", snap.Flags.Frozen).
		Msg("Room state loaded")
}

func (h *Hub) join(p Peer) {
	id := p.ID()
	if _, exists := h.peers[id]; exists {
		return
	}
	h.peers[id] = p
	h.roster.Connect(id, h.now())
	metrics.ConnectionsActive.Inc()
	l := h.logger()
	l.Debug().Str(log.FieldConnID, id).Msg("client registered")
}

func (h *Hub) leave(connID string) {
	p, ok := h.peers[connID]
	if !ok {
		return
	}
	delete(h.peers, connID)
	p.Close()
	sess, _ := h.roster.Unbind(connID)
	metrics.ConnectionsActive.Dec()

	l := h.logger()
	ev := l.Debug().Str(log.FieldConnID, connID)
	if sess != nil && sess.UserID != "" {
		ev = ev.Str(log.FieldUserID, sess.UserID)
	}
	ev.Msg("client unregistered")

	h.broadcastUsers()
}

func (h *Hub) sweep() {
	now := h.now()
	if n := h.history.EvictExpired(now, h.opts.Room.Window()); n > 0 {
		h.saveMessages()
	}
	if n := h.mod.PurgeExpired(now); n > 0 {
		h.saveBans()
		h.broadcastBans()
	}
	h.limiter.Sweep(now)
	metrics.MessagesStored.Set(float64(h.history.Len()))
}

// send queues data for one connection and drops it if its buffer is full.
func (h *Hub) send(connID string, data []byte) {
	p, ok := h.peers[connID]
	if !ok {
		return
	}
	if !p.Enqueue(data) {
		h.drop(connID)
	}
}

func (h *Hub) sendJSON(connID string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		l := h.logger()
		l.Error().Err(err).Msg("failed to encode frame")
		return
	}
	h.send(connID, data)
}

// broadcast queues v for every connection in one pass, so every peer sees
// broadcasts in the same order.
func (h *Hub) broadcast(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		l := h.logger()
		l.Error().Err(err).Msg("failed to encode broadcast")
		return
	}
	var slow []string
	for id, p := range h.peers {
		if !p.Enqueue(data) {
			slow = append(slow, id)
		}
	}
	for _, id := range slow {
		h.drop(id)
	}
}

func (h *Hub) drop(connID string) {
	if _, ok := h.peers[connID]; !ok {
		return
	}
	metrics.ConnectionsDropped.Inc()
	l := h.logger()
	l.Warn().Str(log.FieldConnID, connID).Msg("Dropping slow client")
	h.leave(connID)
}

func (h *Hub) broadcastUsers() {
	h.broadcast(&domain.UsersMessage{Type: domain.MsgTypeUsers, Users: h.roster.Names()})
}

func (h *Hub) broadcastBans() {
	h.broadcast(&domain.BannedUsersMessage{Type: domain.MsgTypeBannedUsers, BannedUsers: h.mod.ActiveBans(h.now())})
}

func (h *Hub) saveMessages() {
	metrics.MessagesStored.Set(float64(h.history.Len()))
	if h.opts.Saver == nil {
		return
	}
	h.opts.Saver.SaveMessages(h.history.Persistable(h.now(), h.opts.Room.Window(), h.opts.Room.MaxMessages))
}

func (h *Hub) saveBans() {
	if h.opts.Saver != nil {
		h.opts.Saver.SaveBans(h.mod.ActiveBans(h.now()))
	}
}

func (h *Hub) saveFlags() {
	if h.opts.Saver != nil {
		h.opts.Saver.SaveFlags(h.mod.Flags())
	}
}

func (h *Hub) saveAdmins() {
	if h.opts.Saver != nil {
		h.opts.Saver.SaveAdmins(h.mod.Admins())
	}
}

// export hands an accepted event to the producer. Failures are logged only.
func (h *Hub) export(eventType, actorID string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	ev := &kafka.RoomEvent{
		Room:      h.opts.Room.Name,
		Type:      eventType,
		ActorID:   actorID,
		Payload:   data,
		Timestamp: h.now().UnixMilli(),
	}
	if err := h.opts.Producer.ProduceEvent(h.ctx, ev); err != nil {
		l := h.logger()
		l.Warn().Err(err).Str("event_type", eventType).Msg("Failed to export room event")
	}
}

func (h *Hub) now() time.Time {
	return h.opts.Clock()
}

func (h *Hub) logger() zerolog.Logger {
	return log.Ctx(h.ctx)
}
