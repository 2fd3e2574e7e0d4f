package idgen

import (
	"testing"

	"github.com/oklog/ulid/v2"
)

func TestULIDGeneratorProducesOrderedIDs(t *testing.T) {
	g := NewULIDGenerator()

	prev := g.Generate()
	for i := 0; i < 1000; i++ {
		next := g.Generate()
		if next <= prev {
			t.Fatalf("expected %s > %s", next, prev)
		}
		if _, err := ulid.Parse(next); err != nil {
			t.Fatalf("invalid ULID %s: %v", next, err)
		}
		prev = next
	}
}
