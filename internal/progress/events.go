package progress

// Events is the pluggable sink for progress and milestone notifications.
type Events interface {
	ProgressReported(entry Entry)
	MilestoneCreated(m Milestone)
	MilestoneStatusChanged(id string, old, new MilestoneStatus)
	RemoteProgressReceived(entry Entry)
}

type nopEvents struct{}

func (nopEvents) ProgressReported(Entry)                                 {}
func (nopEvents) MilestoneCreated(Milestone)                             {}
func (nopEvents) MilestoneStatusChanged(string, MilestoneStatus, MilestoneStatus) {}
func (nopEvents) RemoteProgressReceived(Entry)                           {}

// NopEvents discards every event.
func NopEvents() Events { return nopEvents{} }

type multiEvents struct{ sinks []Events }

// MultiEvents composes several sinks into one, invoked in order.
func MultiEvents(sinks ...Events) Events { return multiEvents{sinks: sinks} }

func (m multiEvents) ProgressReported(e Entry) {
	for _, s := range m.sinks {
		s.ProgressReported(e)
	}
}
func (m multiEvents) MilestoneCreated(ms Milestone) {
	for _, s := range m.sinks {
		s.MilestoneCreated(ms)
	}
}
func (m multiEvents) MilestoneStatusChanged(id string, old, new MilestoneStatus) {
	for _, s := range m.sinks {
		s.MilestoneStatusChanged(id, old, new)
	}
}
func (m multiEvents) RemoteProgressReceived(e Entry) {
	for _, s := range m.sinks {
		s.RemoteProgressReceived(e)
	}
}
