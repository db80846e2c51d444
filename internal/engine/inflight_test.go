package engine

import (
	"testing"
	"time"
)

func TestInFlightAcquireBlocksSecondCaller(t *testing.T) {
	t.Parallel()
	table := newInFlightTable(30 * time.Second)
	now := time.Now()

	first, ok := table.acquire("EURUSD", now)
	if !ok {
		t.Fatal("first acquire blocked")
	}
	if first.Status != lockPending {
		t.Errorf("status = %s, want pending", first.Status)
	}

	holder, ok := table.acquire("EURUSD", now.Add(5*time.Second))
	if ok {
		t.Fatal("second acquire succeeded while lock held")
	}
	if holder.CorrelationID != first.CorrelationID {
		t.Error("blocked caller did not see the holding record")
	}

	// A different symbol is unaffected.
	if _, ok := table.acquire("GBPUSD", now); !ok {
		t.Error("lock on one symbol blocked another")
	}
}

func TestInFlightStaleLockReplaced(t *testing.T) {
	t.Parallel()
	table := newInFlightTable(30 * time.Second)
	now := time.Now()

	first, _ := table.acquire("EURUSD", now)
	second, ok := table.acquire("EURUSD", now.Add(31*time.Second))
	if !ok {
		t.Fatal("stale lock not replaced")
	}
	if second.CorrelationID == first.CorrelationID {
		t.Error("replacement reused the stale correlation id")
	}
}

func TestInFlightReleaseFreesSymbol(t *testing.T) {
	t.Parallel()
	table := newInFlightTable(30 * time.Second)
	now := time.Now()

	table.acquire("EURUSD", now)
	table.release("EURUSD", lockConfirmed)

	if _, ok := table.acquire("EURUSD", now.Add(time.Second)); !ok {
		t.Error("symbol still locked after release")
	}
}

func TestInFlightSweep(t *testing.T) {
	t.Parallel()
	table := newInFlightTable(30 * time.Second)
	now := time.Now()

	table.acquire("EURUSD", now)
	table.acquire("GBPUSD", now.Add(20*time.Second))

	expired := table.sweep(now.Add(35 * time.Second))
	if len(expired) != 1 || expired[0].Symbol != "EURUSD" {
		t.Fatalf("expired = %+v, want just EURUSD", expired)
	}
	if expired[0].Status != lockTimeout {
		t.Errorf("status = %s, want timeout", expired[0].Status)
	}
	if got := table.snapshot(now.Add(35 * time.Second)); len(got) != 1 || got[0].Symbol != "GBPUSD" {
		t.Errorf("snapshot after sweep = %+v", got)
	}
}

func TestCorrelationIDShape(t *testing.T) {
	t.Parallel()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := newCorrelationID()
		if len(id) != 8 {
			t.Fatalf("id %q length = %d, want 8", id, len(id))
		}
		for _, c := range id {
			if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
				t.Fatalf("id %q contains non-hex %q", id, c)
			}
		}
		seen[id] = true
	}
	if len(seen) < 95 {
		t.Errorf("only %d unique ids out of 100", len(seen))
	}
}
