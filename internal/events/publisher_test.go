package events

import (
	"testing"
	"time"
)

func TestConnectEmptyURLDisablesPublishing(t *testing.T) {
	p, err := Connect("", "docgen", nil)
	if err != nil {
		t.Fatalf("empty URL must not error: %v", err)
	}
	if p != nil {
		t.Fatalf("empty URL must yield a nil publisher, got %v", p)
	}
}

func TestNilPublisherIsSafe(t *testing.T) {
	var p *Publisher
	ev := ArtifactEvent{ArtifactID: "a1", OccurredAt: time.Now()}

	// Must not panic.
	p.ArtifactGenerated(ev)
	p.ArtifactEvicted(ev)
	p.Close()
}
