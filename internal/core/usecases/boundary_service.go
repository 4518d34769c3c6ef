package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/siteboundary/internal/core/codec"
	"github.com/samirrijal/siteboundary/internal/core/domain"
	"github.com/samirrijal/siteboundary/internal/core/ports"
	"github.com/samirrijal/siteboundary/internal/pkg/metrics"
)

const (
	defaultExportTTL = 300
	publishTimeout   = 5 * time.Second
)

// BoundaryConfig tunes BoundaryService behaviour.
type BoundaryConfig struct {
	Validator ValidatorConfig
	// RejectInvalid leaves the store untouched when an imported polygon
	// fails validation. Requests may override it.
	RejectInvalid bool
	// ExportCacheTTL is in seconds.
	ExportCacheTTL int
}

// ImportRequest carries a raw payload from the file transport.
type ImportRequest struct {
	SessionID string
	// Format may be empty when Filename has a routable extension.
	Format   domain.Format
	Filename string
	Data     []byte
	// RejectInvalid overrides BoundaryConfig.RejectInvalid when set.
	RejectInvalid *bool
}

// ImportResult reports what an import or draw did to the session.
type ImportResult struct {
	SessionID string                  `json:"session_id"`
	Format    domain.Format           `json:"format,omitempty"`
	Revision  int64                   `json:"revision"`
	Applied   bool                    `json:"applied"`
	Polygon   domain.BoundaryPolygon  `json:"polygon"`
	Report    domain.ValidationReport `json:"validation"`
	Summary   domain.BoundarySummary  `json:"summary"`
}

// BoundaryService coordinates codecs, validation and the per-session stores.
// Repository, cache and publisher are optional.
type BoundaryService struct {
	codecs    *codec.Registry
	validator *Validator
	sessions  *SessionRegistry
	repo      ports.BoundaryRepository
	history   ports.BoundaryHistoryRepository
	cache     ports.CacheService
	publisher ports.EventPublisher
	cfg       BoundaryConfig
	tracer    trace.Tracer
	now       func() time.Time
}

// NewBoundaryService creates a new BoundaryService.
func NewBoundaryService(
	codecs *codec.Registry,
	repo ports.BoundaryRepository,
	history ports.BoundaryHistoryRepository,
	cache ports.CacheService,
	publisher ports.EventPublisher,
	cfg BoundaryConfig,
) *BoundaryService {
	if codecs == nil {
		codecs = codec.NewRegistry()
	}
	if cfg.ExportCacheTTL <= 0 {
		cfg.ExportCacheTTL = defaultExportTTL
	}
	s := &BoundaryService{
		codecs:    codecs,
		validator: NewValidator(cfg.Validator),
		repo:      repo,
		history:   history,
		cache:     cache,
		publisher: publisher,
		cfg:       cfg,
		tracer:    otel.Tracer("github.com/samirrijal/siteboundary/usecases"),
		now:       time.Now,
	}
	s.sessions = NewSessionRegistry(s.onChange)
	return s
}

// Capabilities lists the supported formats.
func (s *BoundaryService) Capabilities() []codec.Capability {
	return s.codecs.Capabilities()
}

// RejectsInvalid reports whether imports are strict by default.
func (s *BoundaryService) RejectsInvalid() bool {
	return s.cfg.RejectInvalid
}

// Validator returns the validator used for imports.
func (s *BoundaryService) Validator() *Validator {
	return s.validator
}

// Decode resolves the format, decodes the payload and stamps source metadata.
// The vertex floor is enforced here for formats whose codec leaves it to the caller.
func (s *BoundaryService) Decode(ctx context.Context, f domain.Format, filename string, data []byte) (domain.BoundaryPolygon, domain.Format, error) {
	_, span := s.tracer.Start(ctx, "boundary.decode")
	defer span.End()

	if f == "" {
		routed, err := codec.FormatFromExtension(filename)
		if err != nil {
			return domain.BoundaryPolygon{}, "", spanError(span, err)
		}
		f = routed
	}
	span.SetAttributes(attribute.String("format", string(f)), attribute.Int("bytes", len(data)))
	metrics.PayloadSize.WithLabelValues(string(f), "decode").Observe(float64(len(data)))

	p, err := s.codecs.Decode(f, data)
	if err == nil && len(p.Vertices) < domain.MinVertices {
		err = domain.NewFormatError(f, domain.ErrInsufficientVertices,
			"polygon needs at least "+strconv.Itoa(domain.MinVertices)+" vertices, got "+strconv.Itoa(len(p.Vertices)))
	}
	if err != nil {
		metrics.CodecOperations.WithLabelValues(string(f), "decode", "error").Inc()
		var fe *domain.FormatError
		if errors.As(err, &fe) {
			slog.Warn("boundary decode failed", "format", f, "kind", domain.KindSlug(fe.Kind), "detail", fe.Detail)
		}
		return domain.BoundaryPolygon{}, f, spanError(span, err)
	}
	metrics.CodecOperations.WithLabelValues(string(f), "decode", "ok").Inc()

	if p.Metadata == nil {
		p.Metadata = make(map[string]string)
	}
	if filename != "" {
		p.Metadata["source"] = filename
	}
	p.Metadata["source_format"] = string(f)
	p.Metadata["created_at"] = s.now().UTC().Format(time.RFC3339)

	span.SetAttributes(attribute.Int("vertices", len(p.Vertices)))
	return p, f, nil
}

// Import decodes a payload, validates it and replaces the session's polygon.
// On a decode failure the store is left unchanged. With strict validation an
// invalid polygon is not applied and ErrValidationFailed is returned together
// with the result carrying the report.
func (s *BoundaryService) Import(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	ctx, span := s.tracer.Start(ctx, "boundary.import", trace.WithAttributes(attribute.String("session", req.SessionID)))
	defer span.End()

	if err := ValidateSessionID(req.SessionID); err != nil {
		return nil, spanError(span, err)
	}

	p, f, err := s.Decode(ctx, req.Format, req.Filename, req.Data)
	if err != nil {
		return nil, spanError(span, err)
	}

	sess, err := s.sessions.Open(req.SessionID)
	if err != nil {
		return nil, spanError(span, err)
	}

	reject := s.cfg.RejectInvalid
	if req.RejectInvalid != nil {
		reject = *req.RejectInvalid
	}
	res, err := s.replace(ctx, sess, req.SessionID, p, reject)
	if res != nil {
		res.Format = f
	}
	if err != nil {
		return res, spanError(span, err)
	}
	return res, nil
}

// ImportWKT is Import for a WKT string.
func (s *BoundaryService) ImportWKT(ctx context.Context, sessionID, text string) (*ImportResult, error) {
	return s.Import(ctx, ImportRequest{SessionID: sessionID, Format: domain.FormatWKT, Data: []byte(text)})
}

// Draw replaces the session's polygon with vertices placed on the map.
func (s *BoundaryService) Draw(ctx context.Context, sessionID string, vertices []domain.Coordinate, metadata map[string]string) (*ImportResult, error) {
	sess, err := s.sessions.Open(sessionID)
	if err != nil {
		return nil, err
	}
	p := domain.NewBoundaryPolygon(vertices, metadata)
	return s.replace(ctx, sess, sessionID, p, s.cfg.RejectInvalid)
}

// Apply replaces the session's polygon without validation. Publishing can be
// deferred to Notify.
func (s *BoundaryService) Apply(ctx context.Context, sessionID string, p domain.BoundaryPolygon, publish bool) (domain.BoundaryChange, error) {
	sess, err := s.sessions.Open(sessionID)
	if err != nil {
		return domain.BoundaryChange{}, err
	}

	var change domain.BoundaryChange
	sess.Do(func(store *BoundaryStore) {
		if err = s.load(ctx, sess, sessionID); err != nil {
			return
		}
		change, err = s.commit(ctx, sess, store, sessionID, &p)
	})
	if err != nil {
		return domain.BoundaryChange{}, err
	}
	if publish {
		s.publishBestEffort(ctx, change)
	}
	return change, nil
}

func (s *BoundaryService) replace(ctx context.Context, sess *Session, sessionID string, p domain.BoundaryPolygon, reject bool) (*ImportResult, error) {
	report := s.validate(p)
	res := &ImportResult{SessionID: sessionID, Polygon: p, Report: report, Summary: Summarize(p)}

	var (
		change domain.BoundaryChange
		err    error
	)
	sess.Do(func(store *BoundaryStore) {
		if err = s.load(ctx, sess, sessionID); err != nil {
			return
		}
		if !report.Valid && reject {
			res.Revision = store.Revision()
			err = domain.ErrValidationFailed
			return
		}
		if change, err = s.commit(ctx, sess, store, sessionID, &p); err != nil {
			return
		}
		res.Revision = change.Revision
		res.Applied = true
	})
	if err != nil {
		if errors.Is(err, domain.ErrValidationFailed) {
			return res, err
		}
		return nil, err
	}

	s.publishBestEffort(ctx, change)
	return res, nil
}

// Current returns the session's active polygon and its revision. Reading
// never creates a session.
func (s *BoundaryService) Current(ctx context.Context, sessionID string) (domain.BoundaryPolygon, int64, error) {
	sess, err := s.lookup(ctx, sessionID)
	if err != nil {
		return domain.BoundaryPolygon{}, 0, err
	}

	var (
		p   domain.BoundaryPolygon
		rev int64
		ok  bool
	)
	sess.Do(func(store *BoundaryStore) {
		if err = s.load(ctx, sess, sessionID); err != nil {
			return
		}
		p, ok = store.Get()
		rev = store.Revision()
	})
	if err != nil {
		return domain.BoundaryPolygon{}, 0, err
	}
	if !ok {
		return domain.BoundaryPolygon{}, rev, domain.ErrNotFound
	}
	return p, rev, nil
}

// Clear removes the session's polygon. Clearing an empty session is not an error.
func (s *BoundaryService) Clear(ctx context.Context, sessionID string) (domain.BoundaryChange, error) {
	sess, err := s.sessions.Open(sessionID)
	if err != nil {
		return domain.BoundaryChange{}, err
	}

	var change domain.BoundaryChange
	sess.Do(func(store *BoundaryStore) {
		if err = s.load(ctx, sess, sessionID); err != nil {
			return
		}
		change, err = s.commit(ctx, sess, store, sessionID, nil)
	})
	if err != nil {
		return domain.BoundaryChange{}, err
	}
	s.publishBestEffort(ctx, change)
	return change, nil
}

// Restore puts prev back as the session's polygon, or clears it when prev is
// nil, and publishes the change. It only acts while the session is still at
// revision; otherwise ErrRevisionConflict is returned and nothing changes.
func (s *BoundaryService) Restore(ctx context.Context, sessionID string, revision int64, prev *domain.BoundaryPolygon) error {
	sess, err := s.sessions.Open(sessionID)
	if err != nil {
		return err
	}

	var change domain.BoundaryChange
	sess.Do(func(store *BoundaryStore) {
		if err = s.load(ctx, sess, sessionID); err != nil {
			return
		}
		if store.Revision() != revision {
			err = fmt.Errorf("%w: session %s is at revision %d, not %d", domain.ErrRevisionConflict, sessionID, store.Revision(), revision)
			return
		}
		change, err = s.commit(ctx, sess, store, sessionID, prev)
	})
	if err != nil {
		return err
	}
	s.publishBestEffort(ctx, change)
	return nil
}

// Notify publishes the change that produced revision and reports delivery
// errors. A session that has moved past revision yields ErrRevisionConflict.
func (s *BoundaryService) Notify(ctx context.Context, sessionID string, revision int64) error {
	sess, err := s.lookup(ctx, sessionID)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("session %s has no changes to publish", sessionID)
	}
	if err != nil {
		return err
	}
	var change domain.BoundaryChange
	sess.Do(func(store *BoundaryStore) { change = store.LastChange() })
	if change.Revision == 0 {
		return fmt.Errorf("session %s has no changes to publish", sessionID)
	}
	if change.Revision != revision {
		return fmt.Errorf("%w: session %s is at revision %d, not %d", domain.ErrRevisionConflict, sessionID, change.Revision, revision)
	}
	if s.publisher == nil {
		return nil
	}
	if err := s.publisher.PublishBoundaryChange(ctx, &change); err != nil {
		return fmt.Errorf("publish boundary change: %w", err)
	}
	return nil
}

// Export encodes the session's polygon. An empty session yields ErrNoPolygon
// without calling the codec.
func (s *BoundaryService) Export(ctx context.Context, sessionID string, f domain.Format) ([]byte, error) {
	ctx, span := s.tracer.Start(ctx, "boundary.export",
		trace.WithAttributes(attribute.String("session", sessionID), attribute.String("format", string(f))))
	defer span.End()

	if err := s.codecs.CheckEncode(f); err != nil {
		return nil, spanError(span, err)
	}

	p, rev, err := s.Current(ctx, sessionID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, spanError(span, domain.ErrNoPolygon)
	}
	if err != nil {
		return nil, spanError(span, err)
	}

	cacheKey := exportCacheKey(sessionID, rev, f, p)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			metrics.CacheHits.WithLabelValues("export").Inc()
			return data, nil
		}
		metrics.CacheMisses.WithLabelValues("export").Inc()
	}

	data, err := s.codecs.Encode(f, p)
	if err != nil {
		metrics.CodecOperations.WithLabelValues(string(f), "encode", "error").Inc()
		return nil, spanError(span, err)
	}
	metrics.CodecOperations.WithLabelValues(string(f), "encode", "ok").Inc()
	metrics.PayloadSize.WithLabelValues(string(f), "encode").Observe(float64(len(data)))

	if s.cache != nil {
		_ = s.cache.Set(ctx, cacheKey, data, s.cfg.ExportCacheTTL)
	}
	return data, nil
}

// Validate checks a polygon without touching any session.
func (s *BoundaryService) Validate(p domain.BoundaryPolygon) domain.ValidationReport {
	return s.validate(p)
}

// ValidateCurrent checks the session's active polygon.
func (s *BoundaryService) ValidateCurrent(ctx context.Context, sessionID string) (domain.ValidationReport, error) {
	p, _, err := s.Current(ctx, sessionID)
	if err != nil {
		return domain.ValidationReport{}, err
	}
	return s.validate(p), nil
}

// Summary measures the session's active polygon.
func (s *BoundaryService) Summary(ctx context.Context, sessionID string) (domain.BoundarySummary, error) {
	p, _, err := s.Current(ctx, sessionID)
	if err != nil {
		return domain.BoundarySummary{}, err
	}
	return Summarize(p), nil
}

// List returns known sessions. With a repository configured the persisted
// sessions are listed; otherwise the in-memory ones.
func (s *BoundaryService) List(ctx context.Context, limit, offset int) ([]domain.SessionInfo, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if s.repo != nil {
		return s.repo.List(ctx, limit, offset)
	}

	all := s.sessions.List()
	if offset >= len(all) {
		return []domain.SessionInfo{}, nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], nil
}

// CountSessions returns how many sessions List can page through.
func (s *BoundaryService) CountSessions(ctx context.Context) (int, error) {
	if s.repo != nil {
		return s.repo.Count(ctx)
	}
	return s.sessions.Len(), nil
}

// History returns archived changes of a session, newest first.
func (s *BoundaryService) History(ctx context.Context, sessionID string, limit int) ([]domain.HistoryEntry, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return nil, err
	}
	if s.history == nil {
		return []domain.HistoryEntry{}, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.history.ListBySession(ctx, sessionID, limit)
}

func (s *BoundaryService) validate(p domain.BoundaryPolygon) domain.ValidationReport {
	violations := s.validator.Check(p)
	for _, v := range violations {
		metrics.ValidationViolations.WithLabelValues(v.Rule).Inc()
	}
	report := Report(violations)
	metrics.ValidationOutcomes.WithLabelValues(strconv.FormatBool(report.Valid)).Inc()
	return report
}

// lookup returns the session for a read. A session unknown in memory is
// loaded from the repository; one that was never written is ErrNotFound and
// is not created.
func (s *BoundaryService) lookup(ctx context.Context, sessionID string) (*Session, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return nil, err
	}
	if sess, ok := s.sessions.Lookup(sessionID); ok {
		return sess, nil
	}
	if s.repo == nil {
		return nil, domain.ErrNotFound
	}

	stored, err := s.repo.Get(ctx, sessionID)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && stored == nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load boundary: %w", err)
	}

	sess, err := s.sessions.Open(sessionID)
	if err != nil {
		return nil, err
	}
	sess.Do(func(store *BoundaryStore) {
		if !sess.loaded {
			store.Restore(*stored)
			sess.loaded = true
			slog.Info("boundary restored", "session", sessionID, "revision", stored.Revision)
		}
	})
	return sess, nil
}

// load restores persisted state into a session the first time it is touched.
// The session lock must be held.
func (s *BoundaryService) load(ctx context.Context, sess *Session, sessionID string) error {
	if sess.loaded || s.repo == nil {
		sess.loaded = true
		return nil
	}
	stored, err := s.repo.Get(ctx, sessionID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return fmt.Errorf("load boundary: %w", err)
	case stored != nil:
		sess.store.Restore(*stored)
		slog.Info("boundary restored", "session", sessionID, "revision", stored.Revision)
	}
	sess.loaded = true
	return nil
}

// commit persists the next revision and then applies it to the store. A nil
// polygon clears the session. The session lock must be held.
func (s *BoundaryService) commit(ctx context.Context, sess *Session, store *BoundaryStore, sessionID string, p *domain.BoundaryPolygon) (domain.BoundaryChange, error) {
	if err := s.persist(ctx, sessionID, store.Revision()+1, p); err != nil {
		if errors.Is(err, domain.ErrRevisionConflict) {
			// Another writer holds a newer revision; reload on next use.
			sess.loaded = false
			slog.Warn("boundary revision conflict", "session", sessionID, "revision", store.Revision()+1)
		}
		return domain.BoundaryChange{}, err
	}
	if p == nil {
		store.Clear()
	} else {
		store.Set(*p)
	}
	return store.LastChange(), nil
}

// persist writes the next state before the in-memory store changes. A nil
// polygon writes a cleared row that keeps the revision.
func (s *BoundaryService) persist(ctx context.Context, sessionID string, revision int64, p *domain.BoundaryPolygon) error {
	if s.repo == nil {
		return nil
	}
	stored := &domain.StoredBoundary{SessionID: sessionID, Revision: revision, Cleared: p == nil, UpdatedAt: s.now().UTC()}
	if p != nil {
		stored.Polygon = *p
	}
	if err := s.repo.Upsert(ctx, stored); err != nil {
		return fmt.Errorf("save boundary: %w", err)
	}
	return nil
}

func (s *BoundaryService) publishBestEffort(ctx context.Context, change domain.BoundaryChange) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.PublishBoundaryChange(ctx, &change); err != nil {
		slog.Warn("publish boundary change failed", "session", change.SessionID, "revision", change.Revision, "error", err)
	}
}

func (s *BoundaryService) onChange(change domain.BoundaryChange) {
	action := "set"
	vertices := 0
	if change.Cleared {
		action = "clear"
	} else if change.Polygon != nil {
		vertices = len(change.Polygon.Vertices)
	}
	metrics.BoundaryChanges.WithLabelValues(action).Inc()
	metrics.ActiveSessions.Set(float64(s.sessions.Len()))
	slog.Info("boundary changed", "session", change.SessionID, "revision", change.Revision, "action", action, "vertices", vertices)
}

// exportCacheKey includes the polygon fingerprint, so an entry written for
// another polygon at the same revision is never served.
func exportCacheKey(sessionID string, revision int64, f domain.Format, p domain.BoundaryPolygon) string {
	return fmt.Sprintf("boundary:export:%s:%d:%s:%s", sessionID, revision, f, p.Fingerprint())
}

// spanError marks the span as failed and returns err.
func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
