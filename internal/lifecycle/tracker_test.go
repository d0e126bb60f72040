package lifecycle

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestRegister_ReleaseIsIdempotent(t *testing.T) {
	tr := NewTracker(zerolog.Nop())

	calls := 0
	release := tr.Register("tex-1", func() error {
		calls++
		return nil
	})
	if tr.Count() != 1 {
		t.Fatalf("Count = %d, want 1", tr.Count())
	}

	release()
	release()
	if calls != 1 {
		t.Fatalf("release calls = %d, want 1", calls)
	}
	if tr.Count() != 0 {
		t.Fatalf("Count = %d after release, want 0", tr.Count())
	}
}

func TestReleaseAll_NewestFirstAndSurvivesFailures(t *testing.T) {
	tr := NewTracker(zerolog.Nop())

	var order []string
	tr.Register("first", func() error {
		order = append(order, "first")
		return nil
	})
	tr.Register("second", func() error {
		order = append(order, "second")
		return errors.New("gpu busy")
	})
	tr.Register("third", func() error {
		order = append(order, "third")
		return nil
	})

	tr.ReleaseAll()

	want := []string{"third", "second", "first"}
	if len(order) != len(want) {
		t.Fatalf("released %d resources, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
	if tr.Count() != 0 {
		t.Fatalf("Count = %d after ReleaseAll, want 0", tr.Count())
	}
}

func TestReleaseAll_AfterManualReleaseSkipsReleased(t *testing.T) {
	tr := NewTracker(zerolog.Nop())

	calls := map[string]int{}
	releaseA := tr.Register("a", func() error { calls["a"]++; return nil })
	tr.Register("b", func() error { calls["b"]++; return nil })

	releaseA()
	tr.ReleaseAll()

	if calls["a"] != 1 || calls["b"] != 1 {
		t.Fatalf("calls = %v, want each released exactly once", calls)
	}
}
