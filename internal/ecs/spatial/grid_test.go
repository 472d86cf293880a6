package spatial

import (
	"testing"

	"showdown-arena/internal/ecs"
)

func TestQueryFindsInsertedEntitiesOnLayer(t *testing.T) {
	g := NewGrid(1000, 1000, 100)
	g.Insert(1, ecs.LayerEnemy, 50, 50)
	g.Insert(2, ecs.LayerEnemy, 900, 900)
	g.Insert(3, ecs.LayerPlayer, 55, 55)

	near := g.Query(50, 50, 40, ecs.LayerEnemy)
	foundEnemy := false
	for _, id := range near {
		switch id {
		case 1:
			foundEnemy = true
		case 2:
			t.Errorf("did not expect the far enemy in a near-origin query, got %v", near)
		case 3:
			t.Errorf("expected the player filtered out of an enemy-layer query, got %v", near)
		}
	}
	if !foundEnemy {
		t.Fatalf("expected enemy 1 in query results, got %v", near)
	}
}

func TestQueryAllIgnoresLayer(t *testing.T) {
	g := NewGrid(1000, 1000, 100)
	g.Insert(1, ecs.LayerEnemy, 50, 50)
	g.Insert(2, ecs.LayerPlayer, 55, 55)

	if got := len(g.QueryAll(50, 50, 40)); got != 2 {
		t.Fatalf("expected both entities regardless of layer, got %d", got)
	}
}

func TestResetEmptiesGrid(t *testing.T) {
	g := NewGrid(500, 500, 50)
	g.Insert(1, ecs.LayerPlayer, 10, 10)
	g.Reset()

	if g.Len() != 0 {
		t.Fatalf("expected empty grid after Reset, got %d entries", g.Len())
	}
	if got := g.QueryAll(10, 10, 20); len(got) != 0 {
		t.Fatalf("expected no candidates after Reset, got %v", got)
	}
}

func TestInsertClampsOutOfBoundsToBorderCells(t *testing.T) {
	g := NewGrid(200, 200, 50)
	g.Insert(7, ecs.LayerEnemy, -40, 500)

	if got := g.Query(0, 199, 60, ecs.LayerEnemy); len(got) != 1 || got[0] != 7 {
		t.Fatalf("expected the clamped entity near the border, got %v", got)
	}
}

func TestSweepReportsOverlappingPairsOnly(t *testing.T) {
	s := NewSweep(8)
	pairs := s.Overlaps([]Interval{
		{ID: 1, X: 100, Radius: 16},
		{ID: 2, X: 110, Radius: 16}, // overlaps 1
		{ID: 3, X: 400, Radius: 16}, // isolated
	})

	if len(pairs) != 1 {
		t.Fatalf("expected exactly one overlapping pair, got %v", pairs)
	}
	p := pairs[0]
	if !(p.A == 1 && p.B == 2) && !(p.A == 2 && p.B == 1) {
		t.Fatalf("expected the (1,2) pair, got %+v", p)
	}
}

func TestSweepHandlesNestedIntervals(t *testing.T) {
	s := NewSweep(8)
	pairs := s.Overlaps([]Interval{
		{ID: 1, X: 100, Radius: 50},
		{ID: 2, X: 100, Radius: 5},
		{ID: 3, X: 130, Radius: 5},
	})

	if len(pairs) != 2 {
		t.Fatalf("expected the wide interval to pair with both nested ones, got %v", pairs)
	}
	for _, p := range pairs {
		if p.A != 1 && p.B != 1 {
			t.Fatalf("expected every pair to involve the wide interval, got %+v", p)
		}
	}
}

func TestSweepBufferReuseAcrossCalls(t *testing.T) {
	s := NewSweep(4)
	s.Overlaps([]Interval{
		{ID: 1, X: 0, Radius: 10},
		{ID: 2, X: 5, Radius: 10},
	})
	second := s.Overlaps([]Interval{
		{ID: 5, X: 0, Radius: 1},
		{ID: 6, X: 100, Radius: 1},
	})
	if len(second) != 0 {
		t.Fatalf("expected no pairs on the second call, got %v", second)
	}
}
