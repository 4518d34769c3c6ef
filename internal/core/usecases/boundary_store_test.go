package usecases_test

import (
	"testing"
	"time"

	"github.com/samirrijal/siteboundary/internal/core/domain"
	"github.com/samirrijal/siteboundary/internal/core/usecases"
)

func TestBoundaryStore_SetReplaces(t *testing.T) {
	store := usecases.NewBoundaryStore("site-1")

	first := squareAt(0, 0, 0.002)
	second := squareAt(10, 10, 0.003)
	store.Set(first)
	store.Set(second)

	got, ok := store.Get()
	if !ok {
		t.Fatal("expected a polygon")
	}
	if got.Vertices[0] != second.Vertices[0] {
		t.Errorf("expected second polygon, got %+v", got.Vertices[0])
	}
	if store.Revision() != 2 {
		t.Errorf("expected revision 2, got %d", store.Revision())
	}
}

func TestBoundaryStore_GetReturnsCopy(t *testing.T) {
	store := usecases.NewBoundaryStore("site-1")
	p := squareAt(0, 0, 0.002)
	store.Set(p)

	p.Vertices[0].Lat = 42
	got, _ := store.Get()
	if got.Vertices[0].Lat != 0 {
		t.Error("store shares backing array with caller's input")
	}

	got.Vertices[1].Lat = 42
	again, _ := store.Get()
	if again.Vertices[1].Lat != 0 {
		t.Error("store shares backing array with snapshot")
	}
}

func TestBoundaryStore_ClearIdempotent(t *testing.T) {
	store := usecases.NewBoundaryStore("site-1")

	var changes []domain.BoundaryChange
	store.Subscribe(func(c domain.BoundaryChange) { changes = append(changes, c) })

	store.Clear()
	if _, ok := store.Get(); ok {
		t.Error("expected empty store")
	}

	store.Set(squareAt(0, 0, 0.002))
	store.Clear()
	store.Clear()

	if len(changes) != 4 {
		t.Fatalf("expected 4 notifications, got %d", len(changes))
	}
	if !changes[0].Cleared || changes[0].Polygon != nil {
		t.Errorf("expected first change to be a clear, got %+v", changes[0])
	}
	if changes[1].Cleared || changes[1].Polygon == nil || len(changes[1].Polygon.Vertices) != 4 {
		t.Errorf("expected set change carrying the polygon, got %+v", changes[1])
	}
	for i, c := range changes {
		if c.Revision != int64(i+1) {
			t.Errorf("change %d: expected revision %d, got %d", i, i+1, c.Revision)
		}
		if c.SessionID != "site-1" {
			t.Errorf("change %d: expected session site-1, got %s", i, c.SessionID)
		}
	}
}

func TestBoundaryStore_Unsubscribe(t *testing.T) {
	store := usecases.NewBoundaryStore("site-1")
	calls := 0
	unsubscribe := store.Subscribe(func(domain.BoundaryChange) { calls++ })

	store.Set(squareAt(0, 0, 0.002))
	unsubscribe()
	store.Clear()

	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestBoundaryStore_RestoreDoesNotNotify(t *testing.T) {
	store := usecases.NewBoundaryStore("site-1")
	calls := 0
	store.Subscribe(func(domain.BoundaryChange) { calls++ })

	at := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	store.Restore(domain.StoredBoundary{SessionID: "site-1", Revision: 7, Polygon: squareAt(0, 0, 0.002), UpdatedAt: at})

	if calls != 0 {
		t.Errorf("expected no notifications, got %d", calls)
	}
	info := store.Info()
	if !info.HasBoundary || info.Revision != 7 || !info.UpdatedAt.Equal(at) {
		t.Errorf("unexpected info %+v", info)
	}

	store.Set(squareAt(1, 1, 0.002))
	if store.Revision() != 8 {
		t.Errorf("expected revision to continue from 7, got %d", store.Revision())
	}
}

func TestBoundaryStore_RestoreTombstone(t *testing.T) {
	store := usecases.NewBoundaryStore("site-1")
	store.Restore(domain.StoredBoundary{SessionID: "site-1", Revision: 4, Cleared: true})

	if _, ok := store.Get(); ok {
		t.Error("expected no polygon after restoring a cleared row")
	}
	if last := store.LastChange(); !last.Cleared || last.Revision != 4 {
		t.Errorf("unexpected last change %+v", last)
	}

	store.Set(squareAt(0, 0, 0.002))
	if store.Revision() != 5 {
		t.Errorf("expected revision to continue from 4, got %d", store.Revision())
	}
}
