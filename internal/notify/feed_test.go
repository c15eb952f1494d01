package notify

import (
	"reflect"
	"testing"
)

func TestFeed_DeliversInSubscriptionOrder(t *testing.T) {
	var f Feed[int]
	var got []string

	f.Subscribe(func(v int) { got = append(got, "a") })
	f.Subscribe(func(v int) { got = append(got, "b") })
	f.Emit(1)

	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("got %v, want [a b]", got)
	}
}

func TestFeed_CancelIsIdempotent(t *testing.T) {
	var f Feed[string]
	calls := 0
	cancel := f.Subscribe(func(string) { calls++ })

	cancel()
	cancel()
	f.Emit("x")

	if calls != 0 {
		t.Fatalf("expected no calls after cancel, got %d", calls)
	}
	if f.Len() != 0 {
		t.Fatalf("expected no subscribers, got %d", f.Len())
	}
}

func TestFeed_CancelFromInsideCallback(t *testing.T) {
	var f Feed[int]
	calls := 0
	var cancel func()
	cancel = f.Subscribe(func(int) {
		calls++
		cancel()
	})

	f.Emit(1)
	f.Emit(2)

	if calls != 1 {
		t.Fatalf("expected one call, got %d", calls)
	}
}
