package plansync

// Events is the pluggable sink for plan-synchronizer notifications.
type Events interface {
	PlanCreated(p Plan)
	PlanUpdated(p Plan)
	ItemAdded(planID string, item PlanItem)
	ItemUpdated(planID string, item PlanItem)
	ItemDeleted(planID, itemID string)
	ItemAssigned(planID, itemID, agentID string)
	StatusUpdated(planID, itemID, status string)
	ConflictDetected(planID string)
	OperationRecorded(op Operation)
	OperationApplied(op Operation)
	PlanRestored(planID string)
}

type nopEvents struct{}

func (nopEvents) PlanCreated(Plan)                     {}
func (nopEvents) PlanUpdated(Plan)                     {}
func (nopEvents) ItemAdded(string, PlanItem)           {}
func (nopEvents) ItemUpdated(string, PlanItem)         {}
func (nopEvents) ItemDeleted(string, string)           {}
func (nopEvents) ItemAssigned(string, string, string)  {}
func (nopEvents) StatusUpdated(string, string, string) {}
func (nopEvents) ConflictDetected(string)              {}
func (nopEvents) OperationRecorded(Operation)          {}
func (nopEvents) OperationApplied(Operation)           {}
func (nopEvents) PlanRestored(string)                  {}

// NopEvents discards every event.
func NopEvents() Events { return nopEvents{} }

type multiEvents struct{ sinks []Events }

// MultiEvents composes several sinks into one, invoked in order.
func MultiEvents(sinks ...Events) Events { return multiEvents{sinks: sinks} }

func (m multiEvents) PlanCreated(p Plan) {
	for _, s := range m.sinks {
		s.PlanCreated(p)
	}
}
func (m multiEvents) PlanUpdated(p Plan) {
	for _, s := range m.sinks {
		s.PlanUpdated(p)
	}
}
func (m multiEvents) ItemAdded(planID string, item PlanItem) {
	for _, s := range m.sinks {
		s.ItemAdded(planID, item)
	}
}
func (m multiEvents) ItemUpdated(planID string, item PlanItem) {
	for _, s := range m.sinks {
		s.ItemUpdated(planID, item)
	}
}
func (m multiEvents) ItemDeleted(planID, itemID string) {
	for _, s := range m.sinks {
		s.ItemDeleted(planID, itemID)
	}
}
func (m multiEvents) ItemAssigned(planID, itemID, agentID string) {
	for _, s := range m.sinks {
		s.ItemAssigned(planID, itemID, agentID)
	}
}
func (m multiEvents) StatusUpdated(planID, itemID, status string) {
	for _, s := range m.sinks {
		s.StatusUpdated(planID, itemID, status)
	}
}
func (m multiEvents) ConflictDetected(planID string) {
	for _, s := range m.sinks {
		s.ConflictDetected(planID)
	}
}
func (m multiEvents) OperationRecorded(op Operation) {
	for _, s := range m.sinks {
		s.OperationRecorded(op)
	}
}
func (m multiEvents) OperationApplied(op Operation) {
	for _, s := range m.sinks {
		s.OperationApplied(op)
	}
}
func (m multiEvents) PlanRestored(planID string) {
	for _, s := range m.sinks {
		s.PlanRestored(planID)
	}
}
