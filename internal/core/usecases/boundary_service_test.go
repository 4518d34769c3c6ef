package usecases_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/samirrijal/siteboundary/internal/core/domain"
	"github.com/samirrijal/siteboundary/internal/core/ports"
	"github.com/samirrijal/siteboundary/internal/core/usecases"
)

const validWKT = "POLYGON((0 0, 0.002 0, 0.002 0.002, 0 0.002, 0 0))"

// --- Mock BoundaryRepository ---

type mockBoundaryRepo struct {
	mu       sync.Mutex
	rows     map[string]domain.StoredBoundary
	upserts  int
	gets     int
	upsertFn func(ctx context.Context, b *domain.StoredBoundary) error
}

func newMockBoundaryRepo() *mockBoundaryRepo {
	return &mockBoundaryRepo{rows: make(map[string]domain.StoredBoundary)}
}

func (m *mockBoundaryRepo) Upsert(ctx context.Context, b *domain.StoredBoundary) error {
	if m.upsertFn != nil {
		if err := m.upsertFn(ctx, b); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.rows[b.SessionID]; ok && cur.Revision >= b.Revision {
		return fmt.Errorf("%w: stored %d, got %d", domain.ErrRevisionConflict, cur.Revision, b.Revision)
	}
	m.upserts++
	m.rows[b.SessionID] = *b
	return nil
}

func (m *mockBoundaryRepo) Get(ctx context.Context, sessionID string) (*domain.StoredBoundary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	b, ok := m.rows[sessionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &b, nil
}

func (m *mockBoundaryRepo) List(ctx context.Context, limit, offset int) ([]domain.SessionInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.SessionInfo
	for id, b := range m.rows {
		out = append(out, domain.SessionInfo{ID: id, HasBoundary: !b.Cleared, Revision: b.Revision, UpdatedAt: b.UpdatedAt})
	}
	return out, nil
}

func (m *mockBoundaryRepo) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows), nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu        sync.Mutex
	changes   []domain.BoundaryChange
	publishFn func(ctx context.Context, change *domain.BoundaryChange) error
}

func (m *mockPublisher) PublishBoundaryChange(ctx context.Context, change *domain.BoundaryChange) error {
	if m.publishFn != nil {
		if err := m.publishFn(ctx, change); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changes = append(m.changes, *change)
	return nil
}

// --- Mock CacheService ---

type mockCache struct {
	data map[string][]byte
	gets int
	hits int
}

func newMockCache() *mockCache { return &mockCache{data: make(map[string][]byte)} }

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.gets++
	if v, ok := m.data[key]; ok {
		m.hits++
		return v, nil
	}
	return nil, errors.New("miss")
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttl int) error {
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func newService(repo *mockBoundaryRepo, cache *mockCache, pub *mockPublisher, cfg usecases.BoundaryConfig) *usecases.BoundaryService {
	// Typed nils would defeat the service's nil checks.
	var (
		r ports.BoundaryRepository
		c ports.CacheService
		p ports.EventPublisher
	)
	if repo != nil {
		r = repo
	}
	if cache != nil {
		c = cache
	}
	if pub != nil {
		p = pub
	}
	return usecases.NewBoundaryService(nil, r, nil, c, p, cfg)
}

// --- Tests ---

func TestBoundaryService_ImportWKT(t *testing.T) {
	repo := newMockBoundaryRepo()
	pub := &mockPublisher{}
	svc := newService(repo, nil, pub, usecases.BoundaryConfig{})

	res, err := svc.ImportWKT(context.Background(), "site-1", validWKT)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Applied || res.Revision != 1 {
		t.Errorf("expected applied at revision 1, got %+v", res)
	}
	if !res.Report.Valid {
		t.Errorf("expected valid report, got %v", res.Report.Errors)
	}
	if len(res.Polygon.Vertices) != 4 {
		t.Errorf("expected 4 vertices, got %d", len(res.Polygon.Vertices))
	}
	if res.Polygon.Metadata["source_format"] != "wkt" {
		t.Errorf("expected source_format metadata, got %v", res.Polygon.Metadata)
	}
	if res.Summary.AreaHectares < 4.9 {
		t.Errorf("expected summary area, got %+v", res.Summary)
	}

	if repo.upserts != 1 || repo.rows["site-1"].Revision != 1 {
		t.Errorf("expected one upsert at revision 1, got %d / %+v", repo.upserts, repo.rows["site-1"])
	}
	if len(pub.changes) != 1 || pub.changes[0].Revision != 1 || pub.changes[0].Cleared {
		t.Errorf("expected one published set change, got %+v", pub.changes)
	}
}

func TestBoundaryService_ImportFailureLeavesStore(t *testing.T) {
	pub := &mockPublisher{}
	svc := newService(nil, nil, pub, usecases.BoundaryConfig{})
	ctx := context.Background()

	if _, err := svc.ImportWKT(ctx, "site-1", validWKT); err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err := svc.Import(ctx, usecases.ImportRequest{SessionID: "site-1", Format: domain.FormatGeoJSON, Data: []byte(`{"type":`)})
	if !errors.Is(err, domain.ErrParseFailure) {
		t.Fatalf("expected parse failure, got %v", err)
	}

	p, rev, err := svc.Current(ctx, "site-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rev != 1 || p.Metadata["source_format"] != "wkt" {
		t.Errorf("expected previous polygon at revision 1, got rev=%d meta=%v", rev, p.Metadata)
	}
	if len(pub.changes) != 1 {
		t.Errorf("expected no publish for failed import, got %d", len(pub.changes))
	}
}

func TestBoundaryService_ImportRouting(t *testing.T) {
	svc := newService(nil, nil, nil, usecases.BoundaryConfig{})
	ctx := context.Background()

	csv := "name,lat,lng\na,0,0\nb,0,0.002\nc,0.002,0.002\nd,0.002,0\n"
	res, err := svc.Import(ctx, usecases.ImportRequest{SessionID: "site-1", Filename: "corners.CSV", Data: []byte(csv)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Format != domain.FormatCSV || res.Polygon.Metadata["source"] != "corners.CSV" {
		t.Errorf("expected csv routed by extension, got %s %v", res.Format, res.Polygon.Metadata)
	}

	_, err = svc.Import(ctx, usecases.ImportRequest{SessionID: "site-1", Filename: "site.shp", Data: []byte("x")})
	if !errors.Is(err, domain.ErrUnknownFormat) {
		t.Errorf("expected unknown format, got %v", err)
	}
}

func TestBoundaryService_GPXFloor(t *testing.T) {
	svc := newService(nil, nil, nil, usecases.BoundaryConfig{})
	gpx := `<gpx><trk><trkseg><trkpt lat="0" lon="0"/><trkpt lat="0" lon="1"/></trkseg></trk></gpx>`

	_, err := svc.Import(context.Background(), usecases.ImportRequest{SessionID: "site-1", Format: domain.FormatGPX, Data: []byte(gpx)})
	if !errors.Is(err, domain.ErrInsufficientVertices) {
		t.Fatalf("expected insufficient vertices, got %v", err)
	}
	var fe *domain.FormatError
	if !errors.As(err, &fe) || fe.Format != domain.FormatGPX {
		t.Errorf("expected gpx FormatError, got %v", err)
	}
}

func TestBoundaryService_StrictImportRejects(t *testing.T) {
	pub := &mockPublisher{}
	svc := newService(nil, nil, pub, usecases.BoundaryConfig{RejectInvalid: true})
	ctx := context.Background()

	tiny := "POLYGON((0 0, 0.0001 0, 0.0001 0.0001, 0 0.0001, 0 0))"
	res, err := svc.ImportWKT(ctx, "site-1", tiny)
	if !errors.Is(err, domain.ErrValidationFailed) {
		t.Fatalf("expected validation failure, got %v", err)
	}
	if res == nil || res.Applied || res.Report.Valid {
		t.Fatalf("expected unapplied result with invalid report, got %+v", res)
	}
	if _, _, err := svc.Current(ctx, "site-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected store untouched, got %v", err)
	}
	if len(pub.changes) != 0 {
		t.Errorf("expected no publish, got %d", len(pub.changes))
	}

	lenient := false
	res, err = svc.Import(ctx, usecases.ImportRequest{SessionID: "site-1", Format: domain.FormatWKT, Data: []byte(tiny), RejectInvalid: &lenient})
	if err != nil {
		t.Fatalf("expected per-request override to apply, got %v", err)
	}
	if !res.Applied || res.Report.Valid {
		t.Errorf("expected applied invalid polygon, got %+v", res)
	}
}

func TestBoundaryService_Export(t *testing.T) {
	cache := newMockCache()
	svc := newService(nil, cache, nil, usecases.BoundaryConfig{})
	ctx := context.Background()

	if _, err := svc.Export(ctx, "site-1", domain.FormatWKT); !errors.Is(err, domain.ErrNoPolygon) {
		t.Fatalf("expected no polygon, got %v", err)
	}
	if _, err := svc.Export(ctx, "site-1", domain.FormatGPX); !errors.Is(err, domain.ErrExportUnsupported) {
		t.Fatalf("expected gpx export unsupported, got %v", err)
	}

	if _, err := svc.Draw(ctx, "site-1", []domain.Coordinate{
		{Lat: 61.49, Lon: 21.80}, {Lat: 61.49, Lon: 21.803}, {Lat: 61.492, Lon: 21.803}, {Lat: 61.492, Lon: 21.80},
	}, nil); err != nil {
		t.Fatalf("draw: %v", err)
	}

	out, err := svc.Export(ctx, "site-1", domain.FormatWKT)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(string(out), "POLYGON((21.8 61.49, ") {
		t.Errorf("unexpected WKT %s", out)
	}

	again, err := svc.Export(ctx, "site-1", domain.FormatWKT)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(again) != string(out) || cache.hits != 1 {
		t.Errorf("expected second export served from cache, hits=%d", cache.hits)
	}
	p, _, _ := svc.Current(ctx, "site-1")
	if _, ok := cache.data["boundary:export:site-1:1:wkt:"+p.Fingerprint()]; !ok {
		t.Errorf("expected cache key keyed by revision and fingerprint, got %v", cache.data)
	}
}

func TestBoundaryService_ExportCacheAcrossRestart(t *testing.T) {
	cache := newMockCache()
	ctx := context.Background()

	first := newService(nil, cache, nil, usecases.BoundaryConfig{})
	if _, err := first.ImportWKT(ctx, "site-1", validWKT); err != nil {
		t.Fatalf("import: %v", err)
	}
	if _, err := first.Export(ctx, "site-1", domain.FormatWKT); err != nil {
		t.Fatalf("export: %v", err)
	}
	if _, err := first.Clear(ctx, "site-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}

	// A fresh process starts the session at revision 1 again.
	second := newService(nil, cache, nil, usecases.BoundaryConfig{})
	if _, err := second.Draw(ctx, "site-1", squareAt(5, 5, 0.002).Vertices, nil); err != nil {
		t.Fatalf("draw: %v", err)
	}
	out, err := second.Export(ctx, "site-1", domain.FormatWKT)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.HasPrefix(string(out), "POLYGON((5 5, ") {
		t.Errorf("expected the new polygon, got %s", out)
	}
}

func TestBoundaryService_ClearKeepsRevisionAcrossInstances(t *testing.T) {
	repo := newMockBoundaryRepo()
	cache := newMockCache()
	ctx := context.Background()

	first := newService(repo, cache, nil, usecases.BoundaryConfig{})
	if _, err := first.ImportWKT(ctx, "site-1", validWKT); err != nil {
		t.Fatalf("import: %v", err)
	}
	if _, err := first.Export(ctx, "site-1", domain.FormatWKT); err != nil {
		t.Fatalf("export: %v", err)
	}
	if _, err := first.Clear(ctx, "site-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}

	second := newService(repo, cache, nil, usecases.BoundaryConfig{})
	if _, _, err := second.Current(ctx, "site-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected cleared session, got %v", err)
	}
	res, err := second.Draw(ctx, "site-1", squareAt(5, 5, 0.002).Vertices, nil)
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	if res.Revision != 3 {
		t.Errorf("expected revision 3 after import and clear, got %d", res.Revision)
	}

	out, err := second.Export(ctx, "site-1", domain.FormatWKT)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.HasPrefix(string(out), "POLYGON((5 5, ") {
		t.Errorf("expected the new polygon, got %s", out)
	}
}

func TestBoundaryService_RestoreFromRepository(t *testing.T) {
	repo := newMockBoundaryRepo()
	repo.rows["site-1"] = domain.StoredBoundary{SessionID: "site-1", Revision: 5, Polygon: squareAt(0, 0, 0.002)}
	svc := newService(repo, nil, nil, usecases.BoundaryConfig{})
	ctx := context.Background()

	p, rev, err := svc.Current(ctx, "site-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rev != 5 || len(p.Vertices) != 4 {
		t.Errorf("expected restored polygon at revision 5, got rev=%d", rev)
	}

	res, err := svc.ImportWKT(ctx, "site-1", validWKT)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Revision != 6 || repo.rows["site-1"].Revision != 6 {
		t.Errorf("expected revision 6, got %d / %d", res.Revision, repo.rows["site-1"].Revision)
	}
}

func TestBoundaryService_PersistFailureLeavesStore(t *testing.T) {
	repo := newMockBoundaryRepo()
	repo.upsertFn = func(ctx context.Context, b *domain.StoredBoundary) error { return errors.New("db down") }
	svc := newService(repo, nil, nil, usecases.BoundaryConfig{})
	ctx := context.Background()

	if _, err := svc.ImportWKT(ctx, "site-1", validWKT); err == nil {
		t.Fatal("expected error")
	}
	if _, _, err := svc.Current(ctx, "site-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected empty session, got %v", err)
	}
}

func TestBoundaryService_Clear(t *testing.T) {
	repo := newMockBoundaryRepo()
	pub := &mockPublisher{}
	svc := newService(repo, nil, pub, usecases.BoundaryConfig{})
	ctx := context.Background()

	change, err := svc.Clear(ctx, "site-1")
	if err != nil {
		t.Fatalf("clear on empty session: %v", err)
	}
	if !change.Cleared || change.Revision != 1 {
		t.Errorf("unexpected change %+v", change)
	}

	if _, err := svc.ImportWKT(ctx, "site-1", validWKT); err != nil {
		t.Fatalf("import: %v", err)
	}
	if _, err := svc.Clear(ctx, "site-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if row := repo.rows["site-1"]; !row.Cleared || row.Revision != 3 || len(row.Polygon.Vertices) != 0 {
		t.Errorf("expected cleared row at revision 3, got %+v", row)
	}
	if page, _ := svc.List(ctx, 10, 0); len(page) != 1 || page[0].HasBoundary {
		t.Errorf("expected cleared session listed without a boundary, got %+v", page)
	}
	if len(pub.changes) != 3 || !pub.changes[2].Cleared {
		t.Errorf("expected 3 published changes ending with a clear, got %+v", pub.changes)
	}
}

func TestBoundaryService_NotifyAndRestore(t *testing.T) {
	pub := &mockPublisher{}
	svc := newService(nil, nil, pub, usecases.BoundaryConfig{})
	ctx := context.Background()

	if err := svc.Notify(ctx, "site-1", 1); err == nil {
		t.Error("expected error when nothing changed")
	}

	change, err := svc.Apply(ctx, "site-1", squareAt(0, 0, 0.002), false)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(pub.changes) != 0 {
		t.Fatalf("expected deferred publish, got %d", len(pub.changes))
	}

	pub.publishFn = func(ctx context.Context, change *domain.BoundaryChange) error { return errors.New("nats down") }
	if err := svc.Notify(ctx, "site-1", change.Revision); err == nil {
		t.Fatal("expected publish error to surface")
	}

	pub.publishFn = nil
	if err := svc.Restore(ctx, "site-1", change.Revision, nil); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if _, _, err := svc.Current(ctx, "site-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected restore to nil to clear, got %v", err)
	}

	prev := squareAt(5, 5, 0.002)
	if err := svc.Restore(ctx, "site-1", change.Revision+1, &prev); err != nil {
		t.Fatalf("restore: %v", err)
	}
	p, _, _ := svc.Current(ctx, "site-1")
	if p.Vertices[0] != prev.Vertices[0] {
		t.Errorf("expected previous polygon restored, got %+v", p.Vertices[0])
	}
}

func TestBoundaryService_NotifyChecksRevision(t *testing.T) {
	pub := &mockPublisher{}
	svc := newService(nil, nil, pub, usecases.BoundaryConfig{})
	ctx := context.Background()

	applied, err := svc.Apply(ctx, "site-1", squareAt(0, 0, 0.002), false)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, err := svc.Draw(ctx, "site-1", squareAt(5, 5, 0.002).Vertices, nil); err != nil {
		t.Fatalf("draw: %v", err)
	}
	published := len(pub.changes)

	if err := svc.Notify(ctx, "site-1", applied.Revision); !errors.Is(err, domain.ErrRevisionConflict) {
		t.Fatalf("expected revision conflict, got %v", err)
	}
	if len(pub.changes) != published {
		t.Errorf("expected nothing published for a superseded revision, got %+v", pub.changes)
	}

	prev := squareAt(1, 1, 0.002)
	if err := svc.Restore(ctx, "site-1", applied.Revision, &prev); !errors.Is(err, domain.ErrRevisionConflict) {
		t.Fatalf("expected restore to refuse a superseded revision, got %v", err)
	}
	p, rev, _ := svc.Current(ctx, "site-1")
	if rev != 2 || p.Vertices[0] != (domain.Coordinate{Lat: 5, Lon: 5}) {
		t.Errorf("expected drawn polygon kept at revision 2, got %+v at %d", p.Vertices[0], rev)
	}
}

func TestBoundaryService_RevisionConflict(t *testing.T) {
	repo := newMockBoundaryRepo()
	svc := newService(repo, nil, nil, usecases.BoundaryConfig{})
	ctx := context.Background()

	if _, err := svc.ImportWKT(ctx, "site-1", validWKT); err != nil {
		t.Fatalf("import: %v", err)
	}

	// Another replica writes revision 2 behind this one's back.
	repo.mu.Lock()
	repo.rows["site-1"] = domain.StoredBoundary{SessionID: "site-1", Revision: 2, Polygon: squareAt(5, 5, 0.002)}
	repo.mu.Unlock()

	_, err := svc.Draw(ctx, "site-1", squareAt(1, 1, 0.002).Vertices, nil)
	if !errors.Is(err, domain.ErrRevisionConflict) {
		t.Fatalf("expected revision conflict, got %v", err)
	}

	p, rev, err := svc.Current(ctx, "site-1")
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if rev != 2 || p.Vertices[0] != (domain.Coordinate{Lat: 5, Lon: 5}) {
		t.Errorf("expected the other replica's polygon at revision 2, got %+v at %d", p.Vertices[0], rev)
	}

	res, err := svc.Draw(ctx, "site-1", squareAt(1, 1, 0.002).Vertices, nil)
	if err != nil {
		t.Fatalf("draw after reload: %v", err)
	}
	if res.Revision != 3 {
		t.Errorf("expected revision 3, got %d", res.Revision)
	}
}

func TestBoundaryService_ReadsDoNotCreateSessions(t *testing.T) {
	svc := newService(nil, nil, nil, usecases.BoundaryConfig{})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("ghost-%d", i)
		if _, _, err := svc.Current(ctx, id); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("%s: expected not found, got %v", id, err)
		}
		if _, err := svc.Export(ctx, id, domain.FormatWKT); !errors.Is(err, domain.ErrNoPolygon) {
			t.Errorf("%s: expected no polygon, got %v", id, err)
		}
		if _, err := svc.Summary(ctx, id); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("%s: expected not found, got %v", id, err)
		}
		if _, err := svc.ValidateCurrent(ctx, id); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("%s: expected not found, got %v", id, err)
		}
	}
	if _, err := svc.Import(ctx, usecases.ImportRequest{SessionID: "ghost-9", Format: domain.FormatWKT, Data: []byte("POINT(1 2)")}); err == nil {
		t.Fatal("expected decode error")
	}

	if n, _ := svc.CountSessions(ctx); n != 0 {
		t.Errorf("expected no sessions after reads, got %d", n)
	}
	if page, _ := svc.List(ctx, 10, 0); len(page) != 0 {
		t.Errorf("expected empty listing, got %+v", page)
	}
}

func TestBoundaryService_ReadLoadsFromRepository(t *testing.T) {
	repo := newMockBoundaryRepo()
	repo.rows["site-1"] = domain.StoredBoundary{SessionID: "site-1", Revision: 3, Polygon: squareAt(0, 0, 0.002)}
	svc := newService(repo, nil, nil, usecases.BoundaryConfig{})
	ctx := context.Background()

	if _, _, err := svc.Current(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, rev, err := svc.Current(ctx, "site-1"); err != nil || rev != 3 {
			t.Fatalf("expected revision 3, got %d / %v", rev, err)
		}
	}
	// One lookup per session; the second read is served from memory.
	if repo.gets != 2 {
		t.Errorf("expected 2 repository reads, got %d", repo.gets)
	}
}

func TestBoundaryService_ListPaginates(t *testing.T) {
	svc := newService(nil, nil, nil, usecases.BoundaryConfig{})
	ctx := context.Background()
	for _, id := range []string{"c", "a", "b"} {
		if _, err := svc.ImportWKT(ctx, id, validWKT); err != nil {
			t.Fatalf("import %s: %v", id, err)
		}
	}

	page, err := svc.List(ctx, 2, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page) != 2 || page[0].ID != "b" || page[1].ID != "c" {
		t.Errorf("unexpected page %+v", page)
	}

	empty, _ := svc.List(ctx, 2, 10)
	if len(empty) != 0 {
		t.Errorf("expected empty page, got %+v", empty)
	}

	if n, _ := svc.CountSessions(ctx); n != 3 {
		t.Errorf("expected 3 sessions, got %d", n)
	}
}

func TestBoundaryService_InvalidSession(t *testing.T) {
	svc := newService(nil, nil, nil, usecases.BoundaryConfig{})
	if _, err := svc.ImportWKT(context.Background(), "bad id", validWKT); !errors.Is(err, domain.ErrInvalidSession) {
		t.Errorf("expected invalid session, got %v", err)
	}
}
