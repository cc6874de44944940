package vault

import (
	"testing"
	"time"
)

func TestHubNotifyScopes(t *testing.T) {
	h := NewHub()

	global, cancelGlobal := h.SubscribeGlobal()
	defer cancelGlobal()
	img, cancelImg := h.SubscribeFolder("images")
	defer cancelImg()
	docs, cancelDocs := h.SubscribeFolder("docs")
	defer cancelDocs()

	h.Notify("images")

	select {
	case <-global:
	case <-time.After(time.Second):
		t.Fatal("global subscriber not woken")
	}
	select {
	case <-img:
	case <-time.After(time.Second):
		t.Fatal("folder subscriber not woken")
	}
	select {
	case <-docs:
		t.Fatal("unrelated folder subscriber woken")
	default:
	}
}

func TestHubNotifyNonBlocking(t *testing.T) {
	h := NewHub()
	ch, cancel := h.SubscribeFolder("images")
	defer cancel()

	// Repeated notifies with a full buffer must not block.
	for i := 0; i < 10; i++ {
		h.Notify("images")
	}
	select {
	case <-ch:
	default:
		t.Fatal("expected a pending wake-up")
	}
}

func TestHubCancelRemovesSubscriber(t *testing.T) {
	h := NewHub()
	ch, cancel := h.SubscribeFolder("images")
	cancel()
	h.Notify("images")
	select {
	case <-ch:
		t.Fatal("cancelled subscriber must not be notified")
	default:
	}
}
