package progress

import "testing"

func TestReportProgressClampsPercentage(t *testing.T) {
	tr := New(Config{})
	e1 := tr.ReportProgress("A", "T1", -10, "working", ReportOptions{})
	if e1.Percentage != 0 {
		t.Fatalf("expected negative percentage clamped to 0, got %v", e1.Percentage)
	}
	e2 := tr.ReportProgress("A", "T1", 150, "working", ReportOptions{})
	if e2.Percentage != 100 {
		t.Fatalf("expected overflow percentage clamped to 100, got %v", e2.Percentage)
	}
}

func TestMilestoneRollupScenario(t *testing.T) {
	tr := New(Config{})
	root := tr.CreateMilestone("root", MilestoneOptions{})
	leaf := tr.CreateMilestone("leaf", MilestoneOptions{RequiredTaskIDs: []string{"T1", "T2"}, ParentMilestoneID: root.ID})

	tr.ReportProgress("A", "T1", 50, "working", ReportOptions{})
	tr.ReportProgress("A", "T2", 100, "working", ReportOptions{})

	updatedLeaf, _ := tr.GetMilestone(leaf.ID)
	if updatedLeaf.Progress != 75 {
		t.Fatalf("expected leaf progress 75, got %v", updatedLeaf.Progress)
	}
	if updatedLeaf.Status != MilestoneInProgress {
		t.Fatalf("expected leaf inProgress, got %v", updatedLeaf.Status)
	}

	updatedRoot, _ := tr.GetMilestone(root.ID)
	if updatedRoot.Progress != 75 {
		t.Fatalf("expected root progress 75 via rollup, got %v", updatedRoot.Progress)
	}

	tr.ReportProgress("A", "T1", 100, "done", ReportOptions{Completed: true, TimeSpentMinutes: 5})

	finalLeaf, _ := tr.GetMilestone(leaf.ID)
	if finalLeaf.Progress != 100 || finalLeaf.Status != MilestoneAchieved {
		t.Fatalf("expected leaf achieved at 100, got %+v", finalLeaf)
	}
	if finalLeaf.CompletedDate.IsZero() {
		t.Fatalf("expected completedDate to be set on achievement")
	}

	finalRoot, _ := tr.GetMilestone(root.ID)
	if finalRoot.Progress != 100 || finalRoot.Status != MilestoneAchieved {
		t.Fatalf("expected root achieved at 100 via cascade, got %+v", finalRoot)
	}
}

func TestAgentStatisticsSuccessRateDefaultsToOne(t *testing.T) {
	tr := New(Config{})
	stats := tr.AgentStatistics("nobody")
	if stats.SuccessRate() != 1.0 {
		t.Fatalf("expected default success rate 1.0, got %v", stats.SuccessRate())
	}

	tr.ReportProgress("A", "T1", 100, "done", ReportOptions{Completed: true})
	tr.ReportProgress("A", "T2", 100, "failed", ReportOptions{Failed: true})
	stats = tr.AgentStatistics("A")
	if stats.SuccessRate() != 0.5 {
		t.Fatalf("expected success rate 0.5, got %v", stats.SuccessRate())
	}
}

func TestOverallStatusDerivation(t *testing.T) {
	cases := []struct {
		statuses []string
		want     OverallStatus
	}{
		{[]string{"completed", "completed"}, OverallCompleted},
		{[]string{"blocked", "available"}, OverallBlocked},
		{[]string{"inProgress", "available"}, OverallInProgress},
		{[]string{"available"}, OverallNotStarted},
		{nil, OverallNotStarted},
	}
	for _, c := range cases {
		if got := OverallStatus(c.statuses); got != c.want {
			t.Fatalf("statuses=%v: expected %v, got %v", c.statuses, c.want, got)
		}
	}
}

func TestHistoryBoundedToMax(t *testing.T) {
	tr := New(Config{MaxHistoryPerTask: 3})
	for i := 0; i < 10; i++ {
		tr.ReportProgress("A", "T1", float64(i*10), "working", ReportOptions{})
	}
	hist := tr.GetHistory("T1")
	if len(hist) != 3 {
		t.Fatalf("expected bounded history of 3, got %d", len(hist))
	}
	if hist[len(hist)-1].Percentage != 90 {
		t.Fatalf("expected most recent entry retained, got %v", hist[len(hist)-1].Percentage)
	}
}
