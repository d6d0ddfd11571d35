package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/safespot/internal/core/domain"
	"github.com/samirrijal/safespot/internal/core/hazard"
	"github.com/samirrijal/safespot/internal/core/navgrid"
	"github.com/samirrijal/safespot/internal/core/pathfinding"
	"github.com/samirrijal/safespot/internal/core/ports"
	"github.com/samirrijal/safespot/internal/pkg/geospatial"
	"github.com/samirrijal/safespot/internal/pkg/metrics"
	"github.com/samirrijal/safespot/internal/pkg/telemetry"
)

// Options tunes a RouteService.
type Options struct {
	Hazard           hazard.Config
	RecomputeTimeout time.Duration
	IdleTimeout      time.Duration
	CacheTTL         time.Duration
	PublishTimeout   time.Duration
	Now              func() time.Time
}

func (o Options) withDefaults() Options {
	if o.RecomputeTimeout <= 0 {
		o.RecomputeTimeout = 2 * time.Second
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = 30 * time.Minute
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = o.IdleTimeout
	}
	if o.PublishTimeout <= 0 {
		o.PublishTimeout = 5 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// RouteService owns traveler sessions and keeps each one's evacuation route
// current as the traveler and the hazard move.
type RouteService struct {
	grid      *navgrid.Grid
	finder    ports.RouteFinder
	publisher ports.EventPublisher
	cache     ports.CacheService
	geocoder  ports.Geocoder
	opts      Options
	tracer    trace.Tracer

	sessions cmap.ConcurrentMap[string, *session]
}

// NewRouteService creates a new RouteService. publisher, cache and geocoder
// may be nil.
func NewRouteService(
	grid *navgrid.Grid,
	finder ports.RouteFinder,
	publisher ports.EventPublisher,
	cache ports.CacheService,
	geocoder ports.Geocoder,
	opts Options,
) *RouteService {
	return &RouteService{
		grid:      grid,
		finder:    finder,
		publisher: publisher,
		cache:     cache,
		geocoder:  geocoder,
		opts:      opts.withDefaults(),
		tracer:    otel.Tracer(telemetry.TracerRouting),
		sessions:  cmap.New[*session](),
	}
}

// Grid returns the navigation grid sessions are routed on.
func (s *RouteService) Grid() *navgrid.Grid { return s.grid }

// ReportStart opens a session for a traveler at start. An empty id is
// replaced by a generated one. When safeZones is empty the grid's default
// safe zones are used.
func (s *RouteService) ReportStart(ctx context.Context, id string, start domain.GeoPoint, safeZones []domain.GeoPoint) (*domain.Session, error) {
	traveler, err := s.travelerCell(start)
	if err != nil {
		return nil, err
	}
	zones, err := s.zoneCells(safeZones)
	if err != nil {
		return nil, err
	}
	if id == "" {
		id = uuid.NewString()
	}

	sess := newSession(id, hazard.NewField(s.grid, s.opts.Hazard), traveler, zones, s.opts.Now())
	if !s.sessions.SetIfAbsent(id, sess) {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionExists, id)
	}
	metrics.ActiveSessions.Inc()
	go s.recomputeLoop(sess)

	slog.InfoContext(ctx, "session started", "session", id, "traveler", traveler.String(), "safe_zones", len(zones))
	return sess.snapshot(s.grid.Center), nil
}

// ReportStartAddress geocodes address and opens a session there.
func (s *RouteService) ReportStartAddress(ctx context.Context, id, address string, safeZones []domain.GeoPoint) (*domain.Session, error) {
	if s.geocoder == nil {
		return nil, fmt.Errorf("%w: no geocoder configured", domain.ErrGeocoding)
	}
	p, err := s.geocoder.Geocode(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("geocode %q: %w", address, err)
	}
	return s.ReportStart(ctx, id, p, safeZones)
}

// ReportHazard moves the session's hazard to p and returns the route for the
// new state. When every safe zone is cut off it returns a
// *domain.UnreachableError carrying the version of the search that found it.
func (s *RouteService) ReportHazard(ctx context.Context, id string, p domain.GeoPoint) (*domain.Route, error) {
	c, err := s.grid.CellAt(p)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, id, func(sess *session) { sess.hazard = &c })
}

// ReportTravelerMove moves the traveler to p and returns the route for the
// new state.
func (s *RouteService) ReportTravelerMove(ctx context.Context, id string, p domain.GeoPoint) (*domain.Route, error) {
	c, err := s.travelerCell(p)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, id, func(sess *session) { sess.traveler = c })
}

// HandleHazardReport applies a hazard report received from a sensor feed and
// returns without waiting for the search; the resulting route goes out
// through the publisher. Reports for unknown sessions or off-grid positions
// are dropped. A non-nil error means the report was not applied.
func (s *RouteService) HandleHazardReport(ctx context.Context, report *domain.HazardReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c, err := s.grid.CellAt(report.Location)
	if err != nil {
		slog.WarnContext(ctx, "dropping hazard report", "session", report.SessionID, "error", err)
		return nil
	}
	sess, ok := s.sessions.Get(report.SessionID)
	if ok {
		_, ok = sess.mutate(s.opts.Now(), func() { sess.hazard = &c })
	}
	if !ok {
		slog.WarnContext(ctx, "dropping hazard report", "session", report.SessionID, "error", domain.ErrSessionNotFound)
	}
	return nil
}

// CloseSession terminates a session. Closing an unknown session is a no-op.
func (s *RouteService) CloseSession(ctx context.Context, id string) error {
	sess, ok := s.sessions.Pop(id)
	if !ok || !sess.terminate() {
		return nil
	}
	metrics.ActiveSessions.Dec()

	if s.cache != nil {
		if err := s.cache.Delete(ctx, routeCacheKey(id)); err != nil {
			slog.WarnContext(ctx, "cache delete failed", "session", id, "error", err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishSessionClosed(ctx, id); err != nil {
			slog.WarnContext(ctx, "publish session closed failed", "session", id, "error", err)
		}
	}
	slog.InfoContext(ctx, "session closed", "session", id)
	return nil
}

// Session returns a snapshot of a live session.
func (s *RouteService) Session(_ context.Context, id string) (*domain.Session, error) {
	sess, ok := s.sessions.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return sess.snapshot(s.grid.Center), nil
}

// ListSessions returns snapshots of all live sessions, oldest first.
func (s *RouteService) ListSessions(_ context.Context) []domain.Session {
	out := make([]domain.Session, 0, s.sessions.Count())
	for item := range s.sessions.IterBuffered() {
		out = append(out, *item.Val.snapshot(s.grid.Center))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Route returns the most recent route of a session. A route computed for an
// older version is flagged stale. Sessions owned by another instance are
// served from the shared cache and always flagged stale.
func (s *RouteService) Route(ctx context.Context, id string) (*domain.Route, error) {
	if sess, ok := s.sessions.Get(id); ok {
		sess.mu.Lock()
		r, status, blockedAt := sess.currentRoute(), sess.status, sess.blockedAt
		sess.mu.Unlock()
		if r == nil && status == domain.StatusBlocked {
			return nil, &domain.UnreachableError{Version: blockedAt}
		}
		return r, nil
	}

	if s.cache != nil {
		if data, err := s.cache.Get(ctx, routeCacheKey(id)); err == nil && data != nil {
			var r domain.Route
			if err := json.Unmarshal(data, &r); err == nil {
				metrics.CacheHits.WithLabelValues("route").Inc()
				r.Stale = true
				return &r, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("route").Inc()
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
}

// ExpireIdle closes sessions with no activity since before now minus the
// idle timeout and returns how many were closed.
func (s *RouteService) ExpireIdle(ctx context.Context, now time.Time) int {
	cutoff := now.Add(-s.opts.IdleTimeout)
	var expired []string
	for item := range s.sessions.IterBuffered() {
		if item.Val.idleSince().Before(cutoff) {
			expired = append(expired, item.Key)
		}
	}
	for _, id := range expired {
		_ = s.CloseSession(ctx, id)
	}
	if len(expired) > 0 {
		slog.InfoContext(ctx, "expired idle sessions", "count", len(expired))
	}
	return len(expired)
}

// RunSweeper expires idle sessions every interval until ctx is done.
func (s *RouteService) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ExpireIdle(ctx, s.opts.Now())
		}
	}
}

// Close terminates every live session.
func (s *RouteService) Close(ctx context.Context) {
	for _, id := range s.sessions.Keys() {
		_ = s.CloseSession(ctx, id)
	}
}

func (s *RouteService) update(ctx context.Context, id string, fn func(*session)) (*domain.Route, error) {
	sess, ok := s.sessions.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	ch, ok := sess.mutate(s.opts.Now(), func() { fn(sess) })
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}

	select {
	case out := <-ch:
		if out.err != nil {
			return nil, out.err
		}
		return out.route, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// recomputeLoop runs one search at a time for sess. Updates arriving during a
// search cancel it and are folded into the next one.
func (s *RouteService) recomputeLoop(sess *session) {
	for {
		select {
		case <-sess.done:
			return
		case <-sess.kick:
		}
		j, ok := sess.begin(s.opts.RecomputeTimeout)
		if !ok {
			continue
		}
		out := s.recompute(sess, j)
		j.cancel()

		applied, ok := sess.finish(j, out)
		if !ok {
			metrics.Recomputations.WithLabelValues("superseded").Inc()
			continue
		}
		s.publish(sess.id, applied)
	}
}

func (s *RouteService) recompute(sess *session, j *job) outcome {
	ctx, span := s.tracer.Start(j.ctx, telemetry.SpanRecompute, trace.WithAttributes(
		attribute.String(telemetry.AttrSessionID, sess.id),
		attribute.Int64(telemetry.AttrSessionVersion, int64(j.version)),
	))
	defer span.End()

	if j.hazard != nil {
		sess.field.Update(*j.hazard)
	} else {
		sess.field.Clear()
	}

	started := time.Now()
	res, err := s.finder.FindRoute(ctx, s.grid, sess.field, j.traveler, j.zones)
	metrics.RecomputeDuration.Observe(time.Since(started).Seconds())

	switch {
	case err == nil:
		metrics.SearchExpansions.Observe(float64(res.Expanded))
		metrics.Recomputations.WithLabelValues("routed").Inc()
		span.SetAttributes(
			attribute.String(telemetry.AttrOutcome, "routed"),
			attribute.Float64(telemetry.AttrRouteCost, res.Cost),
			attribute.Int(telemetry.AttrRouteCells, len(res.Cells)),
			attribute.Int(telemetry.AttrSearchExpanded, res.Expanded),
		)
		return outcome{status: domain.StatusRouted, route: s.buildRoute(sess.id, j.version, res)}
	case errors.Is(err, domain.ErrUnreachable):
		metrics.Recomputations.WithLabelValues("blocked").Inc()
		span.SetAttributes(attribute.String(telemetry.AttrOutcome, "blocked"))
		return outcome{status: domain.StatusBlocked, err: domain.ErrUnreachable}
	case errors.Is(err, context.DeadlineExceeded):
		metrics.Recomputations.WithLabelValues("timeout").Inc()
		span.SetStatus(codes.Error, "timeout")
		slog.Warn("route recomputation timed out", "session", sess.id, "version", j.version, "timeout", s.opts.RecomputeTimeout)
		return outcome{err: domain.ErrRecomputationTimeout}
	case errors.Is(err, context.Canceled):
		return outcome{err: err}
	default:
		metrics.Recomputations.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("route recomputation failed", "session", sess.id, "version", j.version, "error", err)
		return outcome{err: fmt.Errorf("recompute route: %w", err)}
	}
}

func (s *RouteService) buildRoute(id string, version uint64, res *pathfinding.Result) *domain.Route {
	path := make([]domain.GeoPoint, len(res.Cells))
	lats := make([]float64, len(res.Cells))
	lons := make([]float64, len(res.Cells))
	for i, c := range res.Cells {
		p := s.grid.Center(c)
		path[i] = p
		lats[i], lons[i] = p.Latitude, p.Longitude
	}
	return &domain.Route{
		SessionID:      id,
		Version:        version,
		Cells:          res.Cells,
		Path:           path,
		Cost:           res.Cost,
		DistanceMeters: geospatial.PolylineLength(lats, lons),
		Destination:    s.grid.Center(res.Goal),
		ComputedAt:     s.opts.Now(),
	}
}

// publish fans a settled outcome out to the cache and the broker. It runs on
// the session's loop goroutine so updates leave in version order, and is
// bounded by the publish timeout so a stuck backend cannot stall the loop.
func (s *RouteService) publish(id string, out outcome) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.PublishTimeout)
	defer cancel()
	if out.route != nil && s.cache != nil {
		if data, err := json.Marshal(out.route); err == nil {
			if err := s.cache.Set(ctx, routeCacheKey(id), data, int(s.opts.CacheTTL.Seconds())); err != nil {
				slog.Warn("cache route failed", "session", id, "error", err)
			}
		}
	}
	if s.publisher == nil || (out.err != nil && !errors.Is(out.err, domain.ErrUnreachable)) {
		return
	}
	update := &domain.RouteUpdate{
		SessionID: id,
		Version:   out.version,
		Status:    out.status,
		Route:     out.route,
		Time:      s.opts.Now(),
	}
	if err := s.publisher.PublishRouteUpdate(ctx, update); err != nil {
		slog.Warn("publish route update failed", "session", id, "error", err)
	}
}

func (s *RouteService) travelerCell(p domain.GeoPoint) (domain.Cell, error) {
	c, err := s.grid.CellAt(p)
	if err != nil {
		return domain.Cell{}, err
	}
	if !s.grid.Traversable(c) {
		return domain.Cell{}, fmt.Errorf("%w: cell %s is not traversable", domain.ErrInvalidCoordinate, c)
	}
	return c, nil
}

func (s *RouteService) zoneCells(points []domain.GeoPoint) ([]domain.Cell, error) {
	if len(points) == 0 {
		zones := s.grid.SafeZones()
		if len(zones) == 0 {
			return nil, domain.ErrNoSafeZones
		}
		return zones, nil
	}
	seen := make(map[domain.Cell]bool, len(points))
	zones := make([]domain.Cell, 0, len(points))
	for _, p := range points {
		c, err := s.grid.CellAt(p)
		if err != nil {
			return nil, fmt.Errorf("safe zone: %w", err)
		}
		if !seen[c] {
			seen[c] = true
			zones = append(zones, c)
		}
	}
	return zones, nil
}

func routeCacheKey(id string) string { return "route:" + id }
