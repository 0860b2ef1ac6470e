package messagebus

// processRecipient runs one delivery-loop pass over a single recipient's
// queue: expire what's due, hand the rest to registered handlers (if any),
// and leave handler-less messages queued for pull-based GetMessages.
func (b *Bus) processRecipient(id string) {
	b.mu.Lock()
	if b.cfg.IsTerminal(id) {
		b.mu.Unlock()
		return
	}
	q, ok := b.queues[id]
	if !ok {
		b.mu.Unlock()
		return
	}
	snapshot := q.snapshot()
	b.mu.Unlock()

	now := b.cfg.Clock.Now()
	for _, msg := range snapshot {
		if !msg.ExpiresAt.IsZero() && now.After(msg.ExpiresAt) {
			b.expireMessage(id, msg.ID)
			continue
		}

		b.mu.Lock()
		handlers := append([]Handler(nil), b.handlers[id]...)
		reqHandler := b.requestHandlers[id]
		b.mu.Unlock()
		if len(handlers) == 0 && reqHandler == nil {
			continue
		}

		b.mu.Lock()
		q2, ok := b.queues[id]
		if !ok {
			b.mu.Unlock()
			continue
		}
		idx := q2.findByID(msg.ID)
		if idx == -1 {
			b.mu.Unlock()
			continue
		}
		live := q2.messages[idx]
		q2.removeAt(idx)
		live.Status = StatusSent
		live.DeliveryAttempts++
		live.LastAttemptAt = now
		b.history.Add(live.ID, live)
		b.mu.Unlock()

		b.deliver(id, live, handlers, reqHandler)
	}
}

func (b *Bus) expireMessage(recipientID, messageID string) {
	b.mu.Lock()
	q, ok := b.queues[recipientID]
	if !ok {
		b.mu.Unlock()
		return
	}
	idx := q.findByID(messageID)
	if idx == -1 {
		b.mu.Unlock()
		return
	}
	msg := q.messages[idx]
	q.removeAt(idx)
	msg.Status = StatusExpired
	b.history.Add(msg.ID, msg)
	b.stats.TotalExpired++
	b.mu.Unlock()

	b.cfg.Events.MessageExpired(msg)
}

// deliver invokes the recipient's handlers for a single message that has
// already been dequeued, then finalizes its terminal state.
func (b *Bus) deliver(recipientID string, msg Message, handlers []Handler, reqHandler RequestHandler) {
	if msg.Type == TypeRequest && reqHandler != nil {
		body, err := reqHandler(msg)
		if err != nil {
			b.finalizeFailed(recipientID, msg, err)
			b.cfg.Events.HandlerError(msg, err)
			return
		}

		now := b.cfg.Clock.Now()
		msg.Status = StatusDelivered
		msg.Acknowledged = true
		msg.AcknowledgedAt = now
		b.mu.Lock()
		b.history.Add(msg.ID, msg)
		b.stats.TotalDelivered++
		b.mu.Unlock()
		b.cfg.Events.MessageDelivered(msg)

		b.SendResponse(recipientID, msg, body, nil)
		return
	}

	for _, h := range handlers {
		if err := h(msg); err != nil {
			b.finalizeFailed(recipientID, msg, err)
			b.cfg.Events.HandlerError(msg, err)
			return
		}
	}
	b.finalizeDelivered(msg)
}

func (b *Bus) finalizeDelivered(msg Message) {
	now := b.cfg.Clock.Now()
	if !msg.RequiresAck {
		msg.Status = StatusDelivered
		msg.Acknowledged = true
		msg.AcknowledgedAt = now
	} else {
		msg.Status = StatusSent
	}

	b.mu.Lock()
	b.history.Add(msg.ID, msg)
	b.stats.TotalDelivered++
	b.mu.Unlock()

	b.cfg.Events.MessageDelivered(msg)
	if msg.Acknowledged && msg.Type == TypeResponse && msg.RequestID != "" {
		b.resolvePending(msg.RequestID, requestResult{body: msg.Body})
	}
}

// finalizeFailed marks msg failed and, honoring the "preserve in queue, no
// auto-retry beyond loop re-processing" contract, re-enqueues it so the
// next tick gives it another pass.
func (b *Bus) finalizeFailed(recipientID string, msg Message, err error) {
	msg.Status = StatusFailed
	msg.DeliveryError = err.Error()

	b.mu.Lock()
	b.history.Add(msg.ID, msg)
	b.stats.TotalFailed++
	q, ok := b.queues[recipientID]
	if !ok {
		q = &recipientQueue{}
		b.queues[recipientID] = q
	}
	q.insert(msg)
	b.mu.Unlock()

	b.cfg.Events.DeliveryFailed(msg, err)
}
