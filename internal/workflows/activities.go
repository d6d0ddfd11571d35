package workflows

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/samirrijal/safespot/internal/core/domain"
	"github.com/samirrijal/safespot/internal/core/ports"
)

// HazardActivities holds the activity implementations for the hazard track workflow.
type HazardActivities struct {
	Publisher ports.EventPublisher
	// Closed reports whether a session has been closed. Optional.
	Closed func(sessionID string) bool
	Now    func() time.Time
}

// ReportHazardPosition publishes a hazard report for the session. The route
// service instance owning the session picks it up from the broker.
func (a *HazardActivities) ReportHazardPosition(ctx context.Context, sessionID string, p domain.GeoPoint) error {
	if !p.Valid() {
		return temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("invalid hazard position %+v", p), "InvalidInput", domain.ErrInvalidCoordinate)
	}
	if a.Closed != nil && a.Closed(sessionID) {
		return temporal.NewNonRetryableApplicationError("session closed", errTypeSessionGone, domain.ErrSessionNotFound)
	}
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}

	report := &domain.HazardReport{SessionID: sessionID, Location: p, Time: now()}
	if err := a.Publisher.PublishHazardReport(ctx, report); err != nil {
		return fmt.Errorf("publish hazard report: %w", err)
	}

	activity.GetLogger(ctx).Debug("Hazard reported", "session", sessionID, "lat", p.Latitude, "lon", p.Longitude)
	return nil
}
