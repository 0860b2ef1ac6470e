package messagebus

// Events is the pluggable sink for bus lifecycle notifications.
type Events interface {
	MessageQueued(msg Message)
	MessageDelivered(msg Message)
	MessageExpired(msg Message)
	DeliveryFailed(msg Message, err error)
	HandlerError(msg Message, err error)
}

type nopEvents struct{}

func (nopEvents) MessageQueued(Message)              {}
func (nopEvents) MessageDelivered(Message)            {}
func (nopEvents) MessageExpired(Message)              {}
func (nopEvents) DeliveryFailed(Message, error)       {}
func (nopEvents) HandlerError(Message, error)         {}

// NopEvents discards every event.
func NopEvents() Events { return nopEvents{} }

type multiEvents struct{ sinks []Events }

// MultiEvents composes several sinks into one, invoked in order.
func MultiEvents(sinks ...Events) Events { return multiEvents{sinks: sinks} }

func (m multiEvents) MessageQueued(msg Message) {
	for _, s := range m.sinks {
		s.MessageQueued(msg)
	}
}
func (m multiEvents) MessageDelivered(msg Message) {
	for _, s := range m.sinks {
		s.MessageDelivered(msg)
	}
}
func (m multiEvents) MessageExpired(msg Message) {
	for _, s := range m.sinks {
		s.MessageExpired(msg)
	}
}
func (m multiEvents) DeliveryFailed(msg Message, err error) {
	for _, s := range m.sinks {
		s.DeliveryFailed(msg, err)
	}
}
func (m multiEvents) HandlerError(msg Message, err error) {
	for _, s := range m.sinks {
		s.HandlerError(msg, err)
	}
}
