package prd

import (
	"strings"
	"testing"
)

func testDocument() *Document {
	return &Document{
		SchemaVersion:      SchemaVersion,
		Slug:               "user-auth",
		Title:              "User authentication",
		ValidationProfiles: []string{"go"},
		Requirements: []*Requirement{
			{ID: "REQ-01", Title: "Login endpoint", Status: StatusTodo,
				AcceptanceCriteria: []string{"returns 200 on valid creds"}},
			{ID: "REQ-02", Title: "Session cookie", Status: StatusTodo},
			{ID: "REQ-03", Title: "Logout", Status: StatusTodo},
		},
	}
}

func TestSelectNext(t *testing.T) {
	t.Run("first todo in document order", func(t *testing.T) {
		doc := testDocument()
		req := doc.SelectNext()
		if req == nil || req.ID != "REQ-01" {
			t.Fatalf("expected REQ-01, got %v", req)
		}
	})

	t.Run("in_progress wins over earlier todo", func(t *testing.T) {
		doc := testDocument()
		doc.Requirements[2].Status = StatusInProgress
		req := doc.SelectNext()
		if req == nil || req.ID != "REQ-03" {
			t.Fatalf("expected in_progress REQ-03, got %v", req)
		}
	})

	t.Run("skips done and blocked", func(t *testing.T) {
		doc := testDocument()
		doc.Requirements[0].Status = StatusDone
		doc.Requirements[1].Status = StatusBlocked
		req := doc.SelectNext()
		if req == nil || req.ID != "REQ-03" {
			t.Fatalf("expected REQ-03, got %v", req)
		}
	})

	t.Run("nil when only done and blocked remain", func(t *testing.T) {
		doc := testDocument()
		doc.Requirements[0].Status = StatusDone
		doc.Requirements[1].Status = StatusBlocked
		doc.Requirements[2].Status = StatusDone
		if req := doc.SelectNext(); req != nil {
			t.Fatalf("expected nil, got %s", req.ID)
		}
	})

	t.Run("does not mutate", func(t *testing.T) {
		doc := testDocument()
		doc.SelectNext()
		if doc.Requirements[0].Status != StatusTodo {
			t.Errorf("SelectNext mutated status to %s", doc.Requirements[0].Status)
		}
	})
}

func TestMarkInProgress(t *testing.T) {
	t.Run("todo transitions", func(t *testing.T) {
		doc := testDocument()
		if err := doc.MarkInProgress("REQ-01"); err != nil {
			t.Fatalf("MarkInProgress failed: %v", err)
		}
		if doc.Requirements[0].Status != StatusInProgress {
			t.Errorf("expected in_progress, got %s", doc.Requirements[0].Status)
		}
	})

	t.Run("already in_progress is a no-op", func(t *testing.T) {
		doc := testDocument()
		doc.Requirements[0].Status = StatusInProgress
		if err := doc.MarkInProgress("REQ-01"); err != nil {
			t.Fatalf("resume should succeed: %v", err)
		}
	})

	t.Run("second in_progress rejected", func(t *testing.T) {
		doc := testDocument()
		doc.Requirements[0].Status = StatusInProgress
		if err := doc.MarkInProgress("REQ-02"); err == nil {
			t.Fatal("expected error starting a second requirement")
		}
	})

	t.Run("done cannot be reopened", func(t *testing.T) {
		doc := testDocument()
		doc.Requirements[0].Status = StatusDone
		if err := doc.MarkInProgress("REQ-01"); err == nil {
			t.Fatal("expected error reopening a done requirement")
		}
	})

	t.Run("unknown requirement", func(t *testing.T) {
		doc := testDocument()
		if err := doc.MarkInProgress("REQ-99"); err == nil {
			t.Fatal("expected error for unknown requirement")
		}
	})
}

func TestMarkDone(t *testing.T) {
	t.Run("in_progress transitions and clears blocked reason", func(t *testing.T) {
		doc := testDocument()
		doc.Requirements[0].Status = StatusInProgress
		if err := doc.MarkDone("REQ-01"); err != nil {
			t.Fatalf("MarkDone failed: %v", err)
		}
		if doc.Requirements[0].Status != StatusDone {
			t.Errorf("expected done, got %s", doc.Requirements[0].Status)
		}
	})

	t.Run("done is terminal and idempotent", func(t *testing.T) {
		doc := testDocument()
		doc.Requirements[0].Status = StatusDone
		if err := doc.MarkDone("REQ-01"); err != nil {
			t.Fatalf("marking done again should be a no-op: %v", err)
		}
	})

	t.Run("todo cannot skip to done", func(t *testing.T) {
		doc := testDocument()
		if err := doc.MarkDone("REQ-01"); err == nil {
			t.Fatal("expected error marking a todo requirement done")
		}
	})
}

func TestMarkBlocked(t *testing.T) {
	t.Run("requires a reason", func(t *testing.T) {
		doc := testDocument()
		if err := doc.MarkBlocked("REQ-01", ""); err == nil {
			t.Fatal("expected error blocking without a reason")
		}
	})

	t.Run("records the reason", func(t *testing.T) {
		doc := testDocument()
		if err := doc.MarkBlocked("REQ-01", "needs API credentials"); err != nil {
			t.Fatalf("MarkBlocked failed: %v", err)
		}
		if doc.Requirements[0].Status != StatusBlocked {
			t.Errorf("expected blocked, got %s", doc.Requirements[0].Status)
		}
		if !strings.Contains(doc.Requirements[0].BlockedReason, "credentials") {
			t.Errorf("reason not recorded: %q", doc.Requirements[0].BlockedReason)
		}
	})

	t.Run("done never regresses", func(t *testing.T) {
		doc := testDocument()
		doc.Requirements[0].Status = StatusDone
		if err := doc.MarkBlocked("REQ-01", "reason"); err == nil {
			t.Fatal("expected error blocking a done requirement")
		}
	})
}

func TestCounts(t *testing.T) {
	doc := testDocument()
	doc.Requirements[0].Status = StatusDone
	done, total := doc.Counts()
	if done != 1 || total != 3 {
		t.Errorf("Counts() = %d/%d, want 1/3", done, total)
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusTodo, StatusInProgress, StatusDone, StatusBlocked} {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if Status("cancelled").Valid() {
		t.Error("cancelled should not be valid")
	}
}
