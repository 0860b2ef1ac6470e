package registry

// Events is the pluggable sink for registry lifecycle notifications. The
// registry invokes every method after releasing its internal lock, so
// implementations may call back into the registry.
type Events interface {
	AgentRegistered(agent Agent)
	AgentUnregistered(id string)
	AgentStatusChanged(id string, old, new Status)
	AgentCrashed(id string)
	HeartbeatMissed(id string, count int)
}

type nopEvents struct{}

func (nopEvents) AgentRegistered(Agent)                {}
func (nopEvents) AgentUnregistered(string)              {}
func (nopEvents) AgentStatusChanged(string, Status, Status) {}
func (nopEvents) AgentCrashed(string)                   {}
func (nopEvents) HeartbeatMissed(string, int)           {}

// NopEvents discards every event.
func NopEvents() Events { return nopEvents{} }

// multiEvents fans a single call out to several sinks in order.
type multiEvents struct{ sinks []Events }

// MultiEvents composes several sinks into one, invoked in order.
func MultiEvents(sinks ...Events) Events { return multiEvents{sinks: sinks} }

func (m multiEvents) AgentRegistered(a Agent) {
	for _, s := range m.sinks {
		s.AgentRegistered(a)
	}
}
func (m multiEvents) AgentUnregistered(id string) {
	for _, s := range m.sinks {
		s.AgentUnregistered(id)
	}
}
func (m multiEvents) AgentStatusChanged(id string, old, new Status) {
	for _, s := range m.sinks {
		s.AgentStatusChanged(id, old, new)
	}
}
func (m multiEvents) AgentCrashed(id string) {
	for _, s := range m.sinks {
		s.AgentCrashed(id)
	}
}
func (m multiEvents) HeartbeatMissed(id string, count int) {
	for _, s := range m.sinks {
		s.HeartbeatMissed(id, count)
	}
}
