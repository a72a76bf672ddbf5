package index

import (
	"math"
	"testing"

	"github.com/taskmint/taskmint/internal/types"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical unit vectors", []float32{1, 0, 0}, []float32{1, 0, 0}, 1.0},
		{"orthogonal vectors", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"opposite vectors", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"scaled vectors keep similarity", []float32{2, 0}, []float32{5, 0}, 1.0},
		{"zero magnitude left", []float32{0, 0}, []float32{1, 1}, 0.0},
		{"zero magnitude right", []float32{1, 1}, []float32{0, 0}, 0.0},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0.0},
		{"empty vectors", []float32{}, []float32{}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cosine(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Cosine() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCosineKnownAngle(t *testing.T) {
	// 45 degrees between (1,0) and (1,1).
	got := Cosine([]float32{1, 0}, []float32{1, 1})
	want := 1 / math.Sqrt2
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Cosine() = %v, want %v", got, want)
	}
}

func TestUpsertValidation(t *testing.T) {
	ix := New(3)
	if err := ix.Upsert("", []float32{1, 0, 0}); err == nil {
		t.Error("empty id should be rejected")
	}
	if err := ix.Upsert("a", []float32{1, 0}); err == nil {
		t.Error("wrong dimension should be rejected")
	}
	if err := ix.Upsert("a", []float32{1, 0, 0}); err != nil {
		t.Errorf("valid upsert failed: %v", err)
	}
	if ix.Len() != 1 {
		t.Errorf("Len() = %d, want 1", ix.Len())
	}
}

func TestUpsertCopiesVector(t *testing.T) {
	ix := New(2)
	vec := []float32{1, 0}
	if err := ix.Upsert("a", vec); err != nil {
		t.Fatal(err)
	}
	vec[0] = 0
	vec[1] = 1

	got := ix.Query([]float32{1, 0}, 1)
	if len(got) != 1 || got[0].Score < 0.999 {
		t.Errorf("mutating the caller's slice must not change the index: %+v", got)
	}
}

func TestUpsertReplaces(t *testing.T) {
	ix := New(2)
	must(t, ix.Upsert("a", []float32{1, 0}))
	must(t, ix.Upsert("a", []float32{0, 1}))
	if ix.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 after replacing the same id", ix.Len())
	}
	got := ix.Query([]float32{0, 1}, 1)
	if got[0].Score < 0.999 {
		t.Errorf("query should see the replaced vector, got score %v", got[0].Score)
	}
}

func TestRemove(t *testing.T) {
	ix := New(2)
	must(t, ix.Upsert("a", []float32{1, 0}))
	ix.Remove("a")
	ix.Remove("never-existed")
	if ix.Len() != 0 {
		t.Errorf("Len() = %d, want 0", ix.Len())
	}
	if got := ix.Query([]float32{1, 0}, 1); len(got) != 0 {
		t.Errorf("query on empty index should yield nothing, got %+v", got)
	}
}

func TestQueryOrderingAndTieBreak(t *testing.T) {
	ix := New(2)
	// B and A score identically against the query; C scores lower.
	must(t, ix.Upsert("task-b", []float32{1, 0}))
	must(t, ix.Upsert("task-a", []float32{2, 0}))
	must(t, ix.Upsert("task-c", []float32{1, 1}))

	got := ix.Query([]float32{1, 0}, 3)
	if len(got) != 3 {
		t.Fatalf("got %d matches, want 3", len(got))
	}
	// Exact ties break by ascending id, so task-a precedes task-b.
	if got[0].ID != "task-a" || got[1].ID != "task-b" || got[2].ID != "task-c" {
		t.Errorf("order = [%s %s %s], want [task-a task-b task-c]", got[0].ID, got[1].ID, got[2].ID)
	}
	if got[0].Score != got[1].Score {
		t.Errorf("expected exact tie between task-a and task-b, got %v vs %v", got[0].Score, got[1].Score)
	}
}

func TestQueryDeterministic(t *testing.T) {
	ix := New(2)
	must(t, ix.Upsert("task-b", []float32{1, 0}))
	must(t, ix.Upsert("task-a", []float32{1, 0}))

	first := ix.Query([]float32{1, 0}, 1)
	for i := 0; i < 50; i++ {
		again := ix.Query([]float32{1, 0}, 1)
		if again[0].ID != first[0].ID {
			t.Fatalf("query is not deterministic: run %d returned %s, first run returned %s",
				i, again[0].ID, first[0].ID)
		}
	}
	if first[0].ID != "task-a" {
		t.Errorf("nearest among exact ties = %s, want the lower id task-a", first[0].ID)
	}
}

func TestQueryK(t *testing.T) {
	ix := New(2)
	must(t, ix.Upsert("a", []float32{1, 0}))
	must(t, ix.Upsert("b", []float32{0, 1}))

	if got := ix.Query([]float32{1, 0}, 0); got != nil {
		t.Errorf("k=0 should yield nil, got %+v", got)
	}
	if got := ix.Query([]float32{1, 0}, 1); len(got) != 1 {
		t.Errorf("k=1 should cap results, got %d", len(got))
	}
	if got := ix.Query([]float32{1, 0}, 10); len(got) != 2 {
		t.Errorf("k beyond index size should return everything, got %d", len(got))
	}
}

func TestRebuild(t *testing.T) {
	ix := New(2)
	must(t, ix.Upsert("stale", []float32{1, 0}))

	records := []*types.TaskRecord{
		{ID: "x", Embedding: []float32{1, 0}},
		{ID: "y", Embedding: []float32{0, 1}},
		{ID: "unembedded", Embedding: nil},
	}
	if err := ix.Rebuild(records); err != nil {
		t.Fatalf("Rebuild() error: %v", err)
	}
	if ix.Len() != 2 {
		t.Errorf("Len() = %d, want 2 (unembedded records are skipped, stale entries dropped)", ix.Len())
	}
	if got := ix.Query([]float32{1, 0}, 1); got[0].ID != "x" {
		t.Errorf("nearest = %s, want x", got[0].ID)
	}
}

func TestRebuildDimensionMismatch(t *testing.T) {
	ix := New(3)
	err := ix.Rebuild([]*types.TaskRecord{{ID: "bad", Embedding: []float32{1, 0}}})
	if err == nil {
		t.Fatal("expected a dimension error")
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}
