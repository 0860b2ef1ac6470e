package telemetry

import (
	"context"

	"acr/internal/messagebus"
	"acr/internal/plansync"
	"acr/internal/progress"
	"acr/internal/registry"
	"acr/internal/workdistributor"
)

// RegistryEvents adapts Metrics into a registry.Events sink.
type RegistryEvents struct{ M *Metrics }

func (e RegistryEvents) AgentRegistered(registry.Agent) {
	e.M.agentsRegistered.Add(context.Background(), 1)
}
func (e RegistryEvents) AgentUnregistered(string) {}
func (e RegistryEvents) AgentStatusChanged(string, registry.Status, registry.Status) {}
func (e RegistryEvents) AgentCrashed(string) {
	e.M.agentsCrashed.Add(context.Background(), 1)
}
func (e RegistryEvents) HeartbeatMissed(string, int) {
	e.M.heartbeatsMissed.Add(context.Background(), 1)
}

// BusEvents adapts Metrics into a messagebus.Events sink.
type BusEvents struct{ M *Metrics }

func (e BusEvents) MessageQueued(messagebus.Message) {
	e.M.messagesQueued.Add(context.Background(), 1)
}
func (e BusEvents) MessageDelivered(messagebus.Message) {}
func (e BusEvents) MessageExpired(messagebus.Message)   {}
func (e BusEvents) DeliveryFailed(messagebus.Message, error) {
	e.M.messagesFailed.Add(context.Background(), 1)
}
func (e BusEvents) HandlerError(messagebus.Message, error) {
	e.M.messagesFailed.Add(context.Background(), 1)
}

// DistributorEvents adapts Metrics into a workdistributor.Events sink.
type DistributorEvents struct{ M *Metrics }

func (e DistributorEvents) TaskCreated(workdistributor.Task) {}
func (e DistributorEvents) TaskClaimed(workdistributor.Task) {
	e.M.tasksClaimed.Add(context.Background(), 1)
}
func (e DistributorEvents) TaskStarted(workdistributor.Task) {}
func (e DistributorEvents) TaskCompleted(workdistributor.Task) {
	e.M.tasksCompleted.Add(context.Background(), 1)
}
func (e DistributorEvents) TaskFailed(workdistributor.Task) {
	e.M.tasksFailed.Add(context.Background(), 1)
}
func (e DistributorEvents) TaskRetrying(workdistributor.Task)    {}
func (e DistributorEvents) TaskReleased(workdistributor.Task)    {}
func (e DistributorEvents) TaskCancelled(workdistributor.Task)   {}
func (e DistributorEvents) TaskUnblocked(workdistributor.Task)   {}
func (e DistributorEvents) ClaimTimeout(workdistributor.Task)    {}
func (e DistributorEvents) ProgressTimeout(workdistributor.Task) {}

// TrackerEvents adapts Metrics into a progress.Events sink.
type TrackerEvents struct{ M *Metrics }

func (e TrackerEvents) ProgressReported(progress.Entry) {
	e.M.progressReported.Add(context.Background(), 1)
}
func (e TrackerEvents) MilestoneCreated(progress.Milestone) {}
func (e TrackerEvents) MilestoneStatusChanged(id string, old, new progress.MilestoneStatus) {
	if new == progress.MilestoneAchieved {
		e.M.milestonesAchieved.Add(context.Background(), 1)
	}
}
func (e TrackerEvents) RemoteProgressReceived(progress.Entry) {}

// PlanSyncEvents adapts Metrics into a plansync.Events sink.
type PlanSyncEvents struct{ M *Metrics }

func (e PlanSyncEvents) PlanCreated(plansync.Plan)                 {}
func (e PlanSyncEvents) PlanUpdated(plansync.Plan)                 {}
func (e PlanSyncEvents) ItemAdded(string, plansync.PlanItem)       {}
func (e PlanSyncEvents) ItemUpdated(string, plansync.PlanItem)     {}
func (e PlanSyncEvents) ItemDeleted(string, string)                {}
func (e PlanSyncEvents) ItemAssigned(string, string, string)       {}
func (e PlanSyncEvents) StatusUpdated(string, string, string)      {}
func (e PlanSyncEvents) ConflictDetected(string) {
	e.M.planConflicts.Add(context.Background(), 1)
}
func (e PlanSyncEvents) OperationRecorded(plansync.Operation) {}
func (e PlanSyncEvents) OperationApplied(plansync.Operation)  {}
func (e PlanSyncEvents) PlanRestored(string)                  {}
