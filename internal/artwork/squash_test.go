package artwork

import (
	"testing"

	"github.com/oakmoth/medialib/internal/playlistitem"
)

func trackQuery(uri string) *Query {
	return &Query{Track: playlistitem.New(uri, map[string]string{}), Type: SizeFull}
}

func TestSquasherGroupsEquivalentQueries(t *testing.T) {
	s := newSquasher()

	g1, created1 := s.submit(trackQuery("/music/a.flac"), func(*CoverInfo) {})
	if !created1 {
		t.Fatalf("first submit should create a new group")
	}
	g2, created2 := s.submit(trackQuery("/music/a.flac"), func(*CoverInfo) {})
	if created2 {
		t.Fatalf("equivalent submit should absorb into the existing group")
	}
	if g1 != g2 {
		t.Fatalf("expected the same group for equivalent queries")
	}
	if s.pendingGroups() != 1 {
		t.Fatalf("pendingGroups() = %d, want 1", s.pendingGroups())
	}
}

func TestSquasherDistinctQueriesGetDistinctGroups(t *testing.T) {
	s := newSquasher()
	s.submit(trackQuery("/music/a.flac"), func(*CoverInfo) {})
	s.submit(trackQuery("/music/b.flac"), func(*CoverInfo) {})
	if s.pendingGroups() != 2 {
		t.Fatalf("pendingGroups() = %d, want 2", s.pendingGroups())
	}
}

func TestSquasherCompleteBroadcastsInOrder(t *testing.T) {
	s := newSquasher()
	var order []int

	g, _ := s.submit(trackQuery("/music/a.flac"), func(ci *CoverInfo) { order = append(order, 1) })
	s.submit(trackQuery("/music/a.flac"), func(ci *CoverInfo) { order = append(order, 2) })
	s.submit(trackQuery("/music/a.flac"), func(ci *CoverInfo) { order = append(order, 3) })

	ci := NewCoverInfo("/music/a.flac", "Air", "Moon Safari", "La Femme d'Argent")
	s.complete(g, ci)

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("callbacks fired out of submission order: %v", order)
	}
	// the construction ref plus one Retain() per member (three) == 4
	// total.
	if got := ci.RefCount(); got != 4 {
		t.Fatalf("RefCount() = %d, want 4", got)
	}
	if s.pendingGroups() != 0 {
		t.Fatalf("pendingGroups() = %d after complete, want 0", s.pendingGroups())
	}
}

func TestSquasherCompleteWithNilBroadcastsNil(t *testing.T) {
	s := newSquasher()
	got := -1
	g, _ := s.submit(trackQuery("/music/missing.flac"), func(ci *CoverInfo) {
		if ci == nil {
			got = 0
		} else {
			got = 1
		}
	})
	s.complete(g, nil)
	if got != 0 {
		t.Fatalf("expected nil CoverInfo broadcast on failure")
	}
}

func TestSquasherGroupSquashLimit(t *testing.T) {
	s := newSquasher()
	q := trackQuery("/music/a.flac")
	var g *squashGroup
	for i := 0; i < squashLimit; i++ {
		var created bool
		g, created = s.submit(q, func(*CoverInfo) {})
		if i == 0 && !created {
			t.Fatalf("first submit should create a group")
		}
	}
	if len(g.members) != squashLimit {
		t.Fatalf("len(members) = %d, want %d", len(g.members), squashLimit)
	}

	// one more equivalent submit once the group is full starts a new group.
	_, created := s.submit(q, func(*CoverInfo) {})
	if !created {
		t.Fatalf("submit past squashLimit should start a new group")
	}
	if s.pendingGroups() != 2 {
		t.Fatalf("pendingGroups() = %d, want 2", s.pendingGroups())
	}
}
