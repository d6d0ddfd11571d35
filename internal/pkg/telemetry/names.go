package telemetry

// Instrumentation scope and span names.
const (
	TracerRouting = "safespot/routing"

	SpanRecompute = "route.recompute"
)

// Span attribute keys.
const (
	AttrSessionID      = "session.id"
	AttrSessionVersion = "session.version"
	AttrRouteCost      = "route.cost"
	AttrRouteCells     = "route.cells"
	AttrSearchExpanded = "search.expanded"
	AttrOutcome        = "route.outcome"
)
