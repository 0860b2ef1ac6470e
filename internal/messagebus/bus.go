package messagebus

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	acrerrors "acr/internal/errors"
	"acr/internal/shared/asyncutil"
	"acr/internal/shared/clock"
	"acr/internal/shared/ids"
	"acr/internal/shared/logging"
)

// Config tunes bus behavior. Zero values fall back to built-in defaults.
type Config struct {
	ProcessingTick        time.Duration // default 100ms
	DefaultRequestTimeout time.Duration // default 30s
	MessageExpiry         time.Duration // default 1h, applied when a send omits an explicit TTL
	HistorySize           int           // default 1000
	Clock                 clock.Clock
	Logger                logging.Logger
	Events                Events

	// IsTerminal reports whether a recipient is offline/crashed and should
	// be skipped by the delivery loop. Unknown recipients default to
	// non-terminal so the bus works standalone in tests without a wired
	// registry.
	IsTerminal func(agentID string) bool
	// LiveRecipients returns the ids eligible for broadcastToAll fan-out.
	LiveRecipients func() []string
}

func (c *Config) applyDefaults() {
	if c.ProcessingTick <= 0 {
		c.ProcessingTick = 100 * time.Millisecond
	}
	if c.DefaultRequestTimeout <= 0 {
		c.DefaultRequestTimeout = 30 * time.Second
	}
	if c.MessageExpiry <= 0 {
		c.MessageExpiry = time.Hour
	}
	if c.HistorySize <= 0 {
		c.HistorySize = 1000
	}
	if c.Clock == nil {
		c.Clock = clock.Default
	}
	c.Logger = logging.OrNop(c.Logger)
	if c.Events == nil {
		c.Events = NopEvents()
	}
	if c.IsTerminal == nil {
		c.IsTerminal = func(string) bool { return false }
	}
	if c.LiveRecipients == nil {
		c.LiveRecipients = func() []string { return nil }
	}
}

type subscription struct {
	subscriberID string
	filter       func(Message) bool
}

// Bus is the priority message bus: per-recipient queues, topic and
// broadcast fan-out, request/response, and a bounded history log.
type Bus struct {
	cfg Config

	mu              sync.Mutex
	queues          map[string]*recipientQueue
	handlers        map[string][]Handler
	requestHandlers map[string]RequestHandler
	subscriptions   map[string][]subscription
	pendingRequests map[string]*pendingRequest
	history         *lru.Cache[string, Message]
	stats           Stats

	stopTimer clock.Timer
	stopped   bool
}

// New constructs a Bus. A zero Config is valid and uses built-in defaults.
func New(cfg Config) *Bus {
	cfg.applyDefaults()
	history, err := lru.New[string, Message](cfg.HistorySize)
	if err != nil {
		// Only invalid (non-positive) size reaches here, and applyDefaults
		// already guarantees a positive HistorySize.
		panic(err)
	}
	b := &Bus{
		cfg:             cfg,
		queues:          make(map[string]*recipientQueue),
		handlers:        make(map[string][]Handler),
		requestHandlers: make(map[string]RequestHandler),
		subscriptions:   make(map[string][]subscription),
		pendingRequests: make(map[string]*pendingRequest),
		history:         history,
	}
	b.scheduleTick()
	return b
}

func (b *Bus) scheduleTick() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopTimer = b.cfg.Clock.AfterFunc(b.cfg.ProcessingTick, b.runTick)
	b.mu.Unlock()
}

// runTick executes one delivery-loop pass synchronously. It is invoked from
// the clock's timer callback, which already runs on its own goroutine in
// production (time.AfterFunc); keeping it synchronous here keeps fake-clock
// driven tests deterministic.
func (b *Bus) runTick() {
	defer asyncutil.Recover(b.cfg.Logger, "messagebus-tick")

	b.mu.Lock()
	recipientIDs := make([]string, 0, len(b.queues))
	for id := range b.queues {
		recipientIDs = append(recipientIDs, id)
	}
	b.mu.Unlock()

	for _, id := range recipientIDs {
		b.processRecipient(id)
	}
	b.scheduleTick()
}

// Stop halts the processing loop. Safe to call more than once.
func (b *Bus) Stop() {
	b.mu.Lock()
	b.stopped = true
	if b.stopTimer != nil {
		b.stopTimer.Stop()
	}
	b.mu.Unlock()
}

func (b *Bus) enqueue(msg Message) {
	b.mu.Lock()
	q, ok := b.queues[msg.RecipientID]
	if !ok {
		q = &recipientQueue{}
		b.queues[msg.RecipientID] = q
	}
	q.insert(msg)
	b.history.Add(msg.ID, msg)
	b.stats.TotalSent++
	b.mu.Unlock()

	b.cfg.Events.MessageQueued(msg)
}

func (b *Bus) newMessage(msgType Type, sender, recipient, topic, requestID, subject string, body any, priority Priority, requiresAck bool, ttl time.Duration) Message {
	now := b.cfg.Clock.Now()
	if ttl <= 0 {
		ttl = b.cfg.MessageExpiry
	}
	return Message{
		ID:          ids.New("msg"),
		Type:        msgType,
		Priority:    priority,
		SenderID:    sender,
		RecipientID: recipient,
		Topic:       topic,
		RequestID:   requestID,
		Subject:     subject,
		Body:        body,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
		Status:      StatusQueued,
		RequiresAck: requiresAck,
	}
}

// SendToAgent queues a direct message for recipient.
func (b *Bus) SendToAgent(sender, recipient, subject string, body any, priority Priority, requiresAck bool, ttl time.Duration) (Message, error) {
	if recipient == "" {
		return Message{}, acrerrors.New(acrerrors.KindInvalid, "direct message requires a recipientId")
	}
	msg := b.newMessage(TypeDirect, sender, recipient, "", "", subject, body, priority, requiresAck, ttl)
	b.enqueue(msg)
	return msg, nil
}

// BroadcastToAll fans a message out to every live, non-sender recipient
// known via Config.LiveRecipients. The logical send counts once in stats
// regardless of fan-out size; zero recipients is a valid, successful no-op.
func (b *Bus) BroadcastToAll(sender, subject string, body any, priority Priority, ttl time.Duration) Message {
	logical := b.newMessage(TypeBroadcast, sender, "", "", "", subject, body, priority, false, ttl)

	b.mu.Lock()
	b.stats.BroadcastCount++
	b.history.Add(logical.ID, logical)
	b.mu.Unlock()
	b.cfg.Events.MessageQueued(logical)

	for _, recipient := range b.cfg.LiveRecipients() {
		if recipient == sender {
			continue
		}
		clone := logical.Clone()
		clone.ID = ids.New("msg")
		clone.RecipientID = recipient
		b.mu.Lock()
		q, ok := b.queues[recipient]
		if !ok {
			q = &recipientQueue{}
			b.queues[recipient] = q
		}
		q.insert(clone)
		b.history.Add(clone.ID, clone)
		b.mu.Unlock()
		b.cfg.Events.MessageQueued(clone)
	}
	return logical
}

// PublishToTopic fans a message out to every subscriber of topic whose
// filter (if any) accepts it, excluding the sender.
func (b *Bus) PublishToTopic(sender, topic, subject string, body any, priority Priority, ttl time.Duration) Message {
	logical := b.newMessage(TypeTopic, sender, "", topic, "", subject, body, priority, false, ttl)

	b.mu.Lock()
	subs := append([]subscription(nil), b.subscriptions[topic]...)
	b.history.Add(logical.ID, logical)
	b.mu.Unlock()
	b.cfg.Events.MessageQueued(logical)

	for _, sub := range subs {
		if sub.subscriberID == sender {
			continue
		}
		if sub.filter != nil && !sub.filter(logical) {
			continue
		}
		clone := logical.Clone()
		clone.ID = ids.New("msg")
		clone.RecipientID = sub.subscriberID
		b.mu.Lock()
		q, ok := b.queues[sub.subscriberID]
		if !ok {
			q = &recipientQueue{}
			b.queues[sub.subscriberID] = q
		}
		q.insert(clone)
		b.history.Add(clone.ID, clone)
		b.mu.Unlock()
		b.cfg.Events.MessageQueued(clone)
	}
	return logical
}

// Subscribe registers subscriberID for topic, optionally filtered.
func (b *Bus) Subscribe(subscriberID, topic string, filter func(Message) bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscriptions[topic] = append(b.subscriptions[topic], subscription{subscriberID: subscriberID, filter: filter})
}

// Unsubscribe removes every subscription of subscriberID on topic.
func (b *Bus) Unsubscribe(subscriberID, topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscriptions[topic]
	out := subs[:0]
	for _, s := range subs {
		if s.subscriberID != subscriberID {
			out = append(out, s)
		}
	}
	b.subscriptions[topic] = out
}

// RegisterHandler appends a push-delivery handler for recipientID, invoked
// in registration order by the processing loop.
func (b *Bus) RegisterHandler(recipientID string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[recipientID] = append(b.handlers[recipientID], handler)
}

// RegisterRequestHandler installs the single request handler for
// recipientID, replacing any previous one.
func (b *Bus) RegisterRequestHandler(recipientID string, handler RequestHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requestHandlers[recipientID] = handler
}

// GetMessages pulls the current queued snapshot for recipientID without
// removing anything (a pull-style read for recipients with no handler
// registered).
func (b *Bus) GetMessages(recipientID string) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[recipientID]
	if !ok {
		return nil
	}
	return q.snapshot()
}

// Acknowledge marks a sent message acknowledged and, if it is a response,
// resolves the originating pending request.
func (b *Bus) Acknowledge(messageID string) bool {
	b.mu.Lock()
	msg, ok := b.history.Peek(messageID)
	if !ok {
		b.mu.Unlock()
		return false
	}
	msg.Acknowledged = true
	msg.AcknowledgedAt = b.cfg.Clock.Now()
	if msg.Status == StatusSent {
		msg.Status = StatusDelivered
	}
	b.history.Add(messageID, msg)
	b.mu.Unlock()

	if msg.Type == TypeResponse && msg.RequestID != "" {
		b.resolvePending(msg.RequestID, requestResult{body: msg.Body})
	}
	return true
}

// MarkAsRead marks a delivered message read.
func (b *Bus) MarkAsRead(messageID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	msg, ok := b.history.Peek(messageID)
	if !ok {
		return false
	}
	msg.Status = StatusRead
	b.history.Add(messageID, msg)
	return true
}

// GetHistory returns history entries matching filter, newest first.
func (b *Bus) GetHistory(filter HistoryFilter) []Message {
	b.mu.Lock()
	keys := b.history.Keys()
	entries := make([]Message, 0, len(keys))
	for _, k := range keys {
		if msg, ok := b.history.Peek(k); ok {
			entries = append(entries, msg)
		}
	}
	b.mu.Unlock()

	out := make([]Message, 0, len(entries))
	for _, m := range entries {
		if filter.SenderID != "" && m.SenderID != filter.SenderID {
			continue
		}
		if filter.RecipientID != "" && m.RecipientID != filter.RecipientID {
			continue
		}
		if filter.Type != "" && m.Type != filter.Type {
			continue
		}
		if filter.Topic != "" && m.Topic != filter.Topic {
			continue
		}
		if !filter.Since.IsZero() && m.CreatedAt.Before(filter.Since) {
			continue
		}
		out = append(out, m)
	}
	sortByCreatedAtDesc(out)
	return out
}

func sortByCreatedAtDesc(msgs []Message) {
	for i := 1; i < len(msgs); i++ {
		for j := i; j > 0 && msgs[j].CreatedAt.After(msgs[j-1].CreatedAt); j-- {
			msgs[j], msgs[j-1] = msgs[j-1], msgs[j]
		}
	}
}

// GetStats returns a snapshot of bus counters.
func (b *Bus) GetStats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	stats := b.stats
	stats.RequestsPending = len(b.pendingRequests)
	return stats
}

// SendRequest sends a request-typed message and blocks until a response is
// acknowledged, the timeout elapses, or ctx is done.
func (b *Bus) SendRequest(ctx context.Context, sender, recipient, subject string, body any, priority Priority, timeout time.Duration) (any, error) {
	if recipient == "" {
		return nil, acrerrors.New(acrerrors.KindInvalid, "request requires a recipientId")
	}
	if timeout <= 0 {
		timeout = b.cfg.DefaultRequestTimeout
	}
	msg := b.newMessage(TypeRequest, sender, recipient, "", "", subject, body, priority, true, b.cfg.MessageExpiry)

	pending := &pendingRequest{resultCh: make(chan requestResult, 1)}
	b.mu.Lock()
	b.pendingRequests[msg.ID] = pending
	pending.timer = b.cfg.Clock.AfterFunc(timeout, func() { b.timeoutPending(msg.ID) })
	b.mu.Unlock()

	b.enqueue(msg)

	select {
	case result := <-pending.resultCh:
		return result.body, result.err
	case <-ctx.Done():
		b.mu.Lock()
		if p, ok := b.pendingRequests[msg.ID]; ok && !p.done {
			p.done = true
			p.timer.Stop()
			delete(b.pendingRequests, msg.ID)
		}
		b.mu.Unlock()
		return nil, ctx.Err()
	}
}

// SendResponse answers an outstanding request message. The response
// inherits the request's priority and is never queued: it is recorded in
// history as already delivered and acknowledged, counted as sent and
// delivered, and resolves the pending request directly.
func (b *Bus) SendResponse(sender string, request Message, body any, handlerErr error) Message {
	respBody := body
	if handlerErr != nil {
		respBody = nil
	}
	msg := b.newMessage(TypeResponse, sender, request.SenderID, "", request.ID, request.Subject, respBody, request.Priority, false, b.cfg.MessageExpiry)
	if handlerErr != nil {
		msg.DeliveryError = handlerErr.Error()
	}

	now := b.cfg.Clock.Now()
	msg.Status = StatusDelivered
	msg.Acknowledged = true
	msg.AcknowledgedAt = now

	b.mu.Lock()
	b.history.Add(msg.ID, msg)
	b.stats.TotalSent++
	b.stats.TotalDelivered++
	b.mu.Unlock()

	b.cfg.Events.MessageQueued(msg)
	b.cfg.Events.MessageDelivered(msg)
	b.resolvePending(msg.RequestID, requestResult{body: msg.Body})
	return msg
}
