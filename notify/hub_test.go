package notify

import "testing"

func TestNotifyAppendedRoutesByAssetCode(t *testing.T) {
	h := NewHub(DefaultConfig())

	subA := h.subscribe("a")
	defer h.unsubscribe(subA.id)
	subB := h.subscribe("b")
	defer h.unsubscribe(subB.id)

	h.NotifyAppended("a")

	select {
	case evt := <-subA.ch:
		if evt.AssetCode != "a" {
			t.Fatalf("got asset_code %q, want a", evt.AssetCode)
		}
	default:
		t.Fatal("expected subscriber a to receive an event")
	}

	select {
	case <-subB.ch:
		t.Fatal("subscriber b should not have received an event for asset a")
	default:
	}
}

func TestNotifyAppendedDoesNotBlockOnFullBuffer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SubscriptionBuffer = 1
	h := NewHub(cfg)

	sub := h.subscribe("a")
	defer h.unsubscribe(sub.id)

	h.NotifyAppended("a")
	h.NotifyAppended("a") // buffer full; must not block or panic

	if h.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", h.Count())
	}
}
