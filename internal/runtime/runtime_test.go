package runtime

import (
	"testing"

	"acr/internal/messagebus"
	"acr/internal/registry"
	"acr/internal/workdistributor"
)

func TestDistributorPublishesOntoWiredBus(t *testing.T) {
	rt := New(Config{NodeID: "N1"})
	defer rt.Shutdown()

	rt.Bus.Subscribe("watcher", "task.status", nil)

	task, err := rt.Distributor.CreateTask("Write docs", "", workdistributor.CreateOptions{})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if _, err := rt.Registry.Register("agent-1", registry.RoleImplementer, nil, "", "cli", "s1", nil); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := rt.Registry.UpdateStatus("agent-1", registry.StatusActive); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if res := rt.Distributor.ClaimTask(task.ID, "agent-1", nil); !res.Success {
		t.Fatalf("ClaimTask failed: %s", res.Reason)
	}

	msgs := rt.Bus.GetMessages("watcher")
	if len(msgs) == 0 {
		t.Fatalf("expected the distributor's claim to publish a task.status notification onto the bus")
	}
}

func TestBusBroadcastReflectsRegistryLiveness(t *testing.T) {
	rt := New(Config{NodeID: "N1"})
	defer rt.Shutdown()

	if _, err := rt.Registry.Register("agent-1", registry.RoleImplementer, nil, "", "cli", "s1", nil); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := rt.Registry.UpdateStatus("agent-1", registry.StatusActive); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	msg := rt.Bus.BroadcastToAll("system", "hello", nil, messagebus.PriorityNormal, 0)
	if msg.Type != messagebus.TypeBroadcast {
		t.Fatalf("expected a broadcast message")
	}
	if got := rt.Bus.GetMessages("agent-1"); len(got) == 0 {
		t.Fatalf("expected live agent to receive the broadcast")
	}

	if err := rt.Registry.UpdateStatus("agent-1", registry.StatusCrashed); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	before := len(rt.Bus.GetMessages("agent-1"))
	rt.Bus.BroadcastToAll("system", "second", nil, messagebus.PriorityNormal, 0)
	after := len(rt.Bus.GetMessages("agent-1"))
	if after != before {
		t.Fatalf("expected crashed agent to be excluded from broadcast fan-out, queue grew from %d to %d", before, after)
	}
}

func TestResetGlobalTearsDownAndReconstructs(t *testing.T) {
	Configure(Config{NodeID: "N1"})
	defer ResetGlobal()

	first := Global()
	if first != Global() {
		t.Fatalf("expected Global() to return the same instance before a reset")
	}

	ResetGlobal()
	second := Global()
	if second == first {
		t.Fatalf("expected ResetGlobal to force construction of a fresh instance")
	}
}
