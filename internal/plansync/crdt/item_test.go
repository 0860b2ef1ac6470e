package crdt

import (
	"testing"
	"time"
)

func TestItemMergeConcurrentTitleEdit(t *testing.T) {
	now := time.Now()
	base := NewItem("I1", now)
	base.Title, _ = base.Title.Set("A", "seed", 0)

	n1 := base
	n1.Title, _ = n1.Title.Set("B", "N1", 10)

	n2 := base
	n2.Title, _ = n2.Title.Set("C", "N2", 10)

	mergedOnN1 := n1.Merge(n2)
	mergedOnN2 := n2.Merge(n1)

	plain1 := mergedOnN1.ToPlain()
	plain2 := mergedOnN2.ToPlain()

	if plain1.Title != plain2.Title {
		t.Fatalf("nodes diverged: %q vs %q", plain1.Title, plain2.Title)
	}
	if plain1.Title != "C" {
		t.Fatalf("expected N2 > N1 to win the ts=10 tie, got %q", plain1.Title)
	}
}

func TestItemToPlainDefaults(t *testing.T) {
	it := NewItem("I2", time.Now())
	plain := it.ToPlain()
	if plain.Status != DefaultStatus {
		t.Fatalf("expected default status %q, got %q", DefaultStatus, plain.Status)
	}
	if plain.Priority != DefaultPriority {
		t.Fatalf("expected default priority %q, got %q", DefaultPriority, plain.Priority)
	}
	if plain.Title != "" {
		t.Fatalf("expected empty title, got %q", plain.Title)
	}
	if plain.Progress != 0 {
		t.Fatalf("expected zero progress, got %v", plain.Progress)
	}
}

func TestItemMergeCreatedAtTakesEarlier(t *testing.T) {
	early := time.Now().Add(-time.Hour)
	late := time.Now()
	a := NewItem("I3", late)
	b := NewItem("I3", early)

	merged := a.Merge(b)
	if !merged.CreatedAt.Equal(early) {
		t.Fatalf("expected merged createdAt to be the earlier time")
	}
}
