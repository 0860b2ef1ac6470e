package workdistributor

// Events is the pluggable sink for task lifecycle notifications.
type Events interface {
	TaskCreated(task Task)
	TaskClaimed(task Task)
	TaskStarted(task Task)
	TaskCompleted(task Task)
	TaskFailed(task Task)
	TaskRetrying(task Task)
	TaskReleased(task Task)
	TaskCancelled(task Task)
	TaskUnblocked(task Task)
	ClaimTimeout(task Task)
	ProgressTimeout(task Task)
}

type nopEvents struct{}

func (nopEvents) TaskCreated(Task)      {}
func (nopEvents) TaskClaimed(Task)      {}
func (nopEvents) TaskStarted(Task)      {}
func (nopEvents) TaskCompleted(Task)    {}
func (nopEvents) TaskFailed(Task)       {}
func (nopEvents) TaskRetrying(Task)     {}
func (nopEvents) TaskReleased(Task)     {}
func (nopEvents) TaskCancelled(Task)    {}
func (nopEvents) TaskUnblocked(Task)    {}
func (nopEvents) ClaimTimeout(Task)     {}
func (nopEvents) ProgressTimeout(Task)  {}

// NopEvents discards every event.
func NopEvents() Events { return nopEvents{} }

type multiEvents struct{ sinks []Events }

// MultiEvents composes several sinks into one, invoked in order.
func MultiEvents(sinks ...Events) Events { return multiEvents{sinks: sinks} }

func (m multiEvents) TaskCreated(t Task) {
	for _, s := range m.sinks {
		s.TaskCreated(t)
	}
}
func (m multiEvents) TaskClaimed(t Task) {
	for _, s := range m.sinks {
		s.TaskClaimed(t)
	}
}
func (m multiEvents) TaskStarted(t Task) {
	for _, s := range m.sinks {
		s.TaskStarted(t)
	}
}
func (m multiEvents) TaskCompleted(t Task) {
	for _, s := range m.sinks {
		s.TaskCompleted(t)
	}
}
func (m multiEvents) TaskFailed(t Task) {
	for _, s := range m.sinks {
		s.TaskFailed(t)
	}
}
func (m multiEvents) TaskRetrying(t Task) {
	for _, s := range m.sinks {
		s.TaskRetrying(t)
	}
}
func (m multiEvents) TaskReleased(t Task) {
	for _, s := range m.sinks {
		s.TaskReleased(t)
	}
}
func (m multiEvents) TaskCancelled(t Task) {
	for _, s := range m.sinks {
		s.TaskCancelled(t)
	}
}
func (m multiEvents) TaskUnblocked(t Task) {
	for _, s := range m.sinks {
		s.TaskUnblocked(t)
	}
}
func (m multiEvents) ClaimTimeout(t Task) {
	for _, s := range m.sinks {
		s.ClaimTimeout(t)
	}
}
func (m multiEvents) ProgressTimeout(t Task) {
	for _, s := range m.sinks {
		s.ProgressTimeout(t)
	}
}
