package broker

import (
	"errors"
	"testing"

	"smc-trader/internal/wire"
)

func TestPendingResolveDeliversEnvelope(t *testing.T) {
	t.Parallel()
	table := newPendingTable()
	ch := table.add("abc")

	env := &wire.Envelope{PayloadType: wire.PayloadAccountAuthRes, ClientMsgID: "abc"}
	if !table.resolve("abc", env) {
		t.Fatal("resolve() = false, want true")
	}

	res := <-ch
	if res.err != nil {
		t.Fatalf("unexpected error: %v", res.err)
	}
	if res.env.PayloadType != wire.PayloadAccountAuthRes {
		t.Errorf("payload type = %d, want %d", res.env.PayloadType, wire.PayloadAccountAuthRes)
	}
	if table.size() != 0 {
		t.Errorf("size after resolve = %d, want 0", table.size())
	}
}

func TestPendingResolveUnknownID(t *testing.T) {
	t.Parallel()
	table := newPendingTable()
	if table.resolve("ghost", &wire.Envelope{}) {
		t.Error("resolve() = true for unregistered id, want false")
	}
}

func TestPendingResolveAfterRemove(t *testing.T) {
	t.Parallel()
	table := newPendingTable()
	table.add("late")
	table.remove("late")

	// Late response after the caller timed out must be a no-op.
	if table.resolve("late", &wire.Envelope{}) {
		t.Error("resolve() = true after remove, want false")
	}
}

func TestPendingFailAllTerminatesEveryWaiter(t *testing.T) {
	t.Parallel()
	table := newPendingTable()
	a := table.add("a")
	b := table.add("b")

	table.failAll(ErrDisconnected)

	for _, ch := range []chan pendingResult{a, b} {
		res := <-ch
		if !errors.Is(res.err, ErrDisconnected) {
			t.Errorf("err = %v, want ErrDisconnected", res.err)
		}
	}
	if table.size() != 0 {
		t.Errorf("size after failAll = %d, want 0", table.size())
	}
}

func TestIsRateLimitMessage(t *testing.T) {
	t.Parallel()
	cases := []struct {
		msg  string
		want bool
	}{
		{"HTTP 429", true},
		{"Request frequency exceeded", true},
		{"rate limit reached", true},
		{"Too Many requests", true},
		{"INVALID_REQUEST", false},
		{"position not found", false},
	}
	for _, tc := range cases {
		if got := IsRateLimitMessage(tc.msg); got != tc.want {
			t.Errorf("IsRateLimitMessage(%q) = %v, want %v", tc.msg, got, tc.want)
		}
	}
}
