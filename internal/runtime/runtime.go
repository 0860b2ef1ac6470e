// Package runtime wires the five coordination components — registry,
// message bus, work distributor, progress tracker, and plan synchronizer —
// into a single composed unit, matching the wiring each component's Config
// already exposes (registry lookups, publish hooks) to real instances
// instead of the no-op defaults each uses standalone.
package runtime

import (
	"golang.org/x/sync/errgroup"

	"acr/internal/messagebus"
	"acr/internal/plansync"
	"acr/internal/progress"
	"acr/internal/registry"
	"acr/internal/shared/clock"
	"acr/internal/shared/logging"
	"acr/internal/telemetry"
	"acr/internal/workdistributor"
)

// Config tunes the composed runtime. Every field is optional; omitted
// component configs fall back to that component's own defaults, with
// NodeID, Clock, and Logger propagated to every component that accepts
// them.
type Config struct {
	NodeID string
	Clock  clock.Clock
	Logger logging.Logger

	Registry    registry.Config
	MessageBus  messagebus.Config
	Distributor workdistributor.Config
	Tracker     progress.Config
	PlanSync    plansync.Config

	// PublishSender is the sender id attached to cross-component topic
	// notifications (task-status, progress, plan-sync). Defaults to
	// "runtime".
	PublishSender string

	// Metrics, if set, is fanned into every component's event sink
	// alongside whatever sink that component's own Config already names,
	// so telemetry never displaces application-level event handling.
	Metrics *telemetry.Metrics
}

// Runtime composes the five components and wires their cross-cutting
// hooks: the bus learns liveness from the registry, the distributor and
// tracker and plan synchronizer publish their topic notifications onto the
// bus.
type Runtime struct {
	Registry    *registry.Registry
	Bus         *messagebus.Bus
	Distributor *workdistributor.Distributor
	Tracker     *progress.Tracker
	PlanSync    *plansync.Service
}

// New constructs a fully wired Runtime. A zero Config is valid.
func New(cfg Config) *Runtime {
	if cfg.Clock == nil {
		cfg.Clock = clock.Default
	}
	cfg.Logger = logging.OrNop(cfg.Logger)
	if cfg.PublishSender == "" {
		cfg.PublishSender = "runtime"
	}

	cfg.Registry.Clock = cfg.Clock
	cfg.Registry.Logger = cfg.Logger
	if cfg.Metrics != nil {
		cfg.Registry.Events = registry.MultiEvents(orRegistryNop(cfg.Registry.Events), telemetry.RegistryEvents{M: cfg.Metrics})
	}
	reg := registry.New(cfg.Registry)

	if cfg.Metrics != nil {
		cfg.MessageBus.Events = messagebus.MultiEvents(orBusNop(cfg.MessageBus.Events), telemetry.BusEvents{M: cfg.Metrics})
	}
	cfg.MessageBus.Clock = cfg.Clock
	cfg.MessageBus.Logger = cfg.Logger
	cfg.MessageBus.IsTerminal = func(agentID string) bool {
		agent, ok := reg.Get(agentID)
		return ok && agent.Status.IsTerminal()
	}
	cfg.MessageBus.LiveRecipients = func() []string {
		live := reg.DiscoverPeers(registry.Filter{LiveOnly: true})
		ids := make([]string, len(live))
		for i, a := range live {
			ids[i] = a.ID
		}
		return ids
	}
	bus := messagebus.New(cfg.MessageBus)

	publish := func(topic, subject string, body any) {
		bus.PublishToTopic(cfg.PublishSender, topic, subject, body, messagebus.PriorityNormal, 0)
	}

	if cfg.Metrics != nil {
		cfg.Distributor.Events = workdistributor.MultiEvents(orDistributorNop(cfg.Distributor.Events), telemetry.DistributorEvents{M: cfg.Metrics})
	}
	cfg.Distributor.Clock = cfg.Clock
	cfg.Distributor.Logger = cfg.Logger
	cfg.Distributor.Registry = reg
	cfg.Distributor.Publish = publish
	dist := workdistributor.New(cfg.Distributor)

	if cfg.Metrics != nil {
		cfg.Tracker.Events = progress.MultiEvents(orTrackerNop(cfg.Tracker.Events), telemetry.TrackerEvents{M: cfg.Metrics})
	}
	cfg.Tracker.Clock = cfg.Clock
	cfg.Tracker.Logger = cfg.Logger
	cfg.Tracker.Publish = publish
	tracker := progress.New(cfg.Tracker)

	if cfg.Metrics != nil {
		cfg.PlanSync.Events = plansync.MultiEvents(orPlanSyncNop(cfg.PlanSync.Events), telemetry.PlanSyncEvents{M: cfg.Metrics})
	}
	cfg.PlanSync.Clock = cfg.Clock
	cfg.PlanSync.Logger = cfg.Logger
	if cfg.PlanSync.NodeID == "" {
		cfg.PlanSync.NodeID = cfg.NodeID
	}
	cfg.PlanSync.Publish = publish
	plan := plansync.New(cfg.PlanSync)

	return &Runtime{
		Registry:    reg,
		Bus:         bus,
		Distributor: dist,
		Tracker:     tracker,
		PlanSync:    plan,
	}
}

// Shutdown stops every background loop and timer across the composed
// components. The three timer-owning components tear down concurrently
// since their shutdown paths are independent of one another.
func (rt *Runtime) Shutdown() {
	var g errgroup.Group
	g.Go(func() error {
		rt.Registry.Shutdown()
		return nil
	})
	g.Go(func() error {
		rt.Distributor.Shutdown()
		return nil
	})
	g.Go(func() error {
		rt.Bus.Stop()
		return nil
	})
	_ = g.Wait()
}

func orRegistryNop(e registry.Events) registry.Events {
	if e == nil {
		return registry.NopEvents()
	}
	return e
}

func orBusNop(e messagebus.Events) messagebus.Events {
	if e == nil {
		return messagebus.NopEvents()
	}
	return e
}

func orDistributorNop(e workdistributor.Events) workdistributor.Events {
	if e == nil {
		return workdistributor.NopEvents()
	}
	return e
}

func orTrackerNop(e progress.Events) progress.Events {
	if e == nil {
		return progress.NopEvents()
	}
	return e
}

func orPlanSyncNop(e plansync.Events) plansync.Events {
	if e == nil {
		return plansync.NopEvents()
	}
	return e
}
