package workflows

import (
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/safespot/internal/core/domain"
)

// SignalStopTrack ends a running hazard track early.
const SignalStopTrack = "stop-track"

// errTypeSessionGone marks activity failures that should end the track
// instead of being retried.
const errTypeSessionGone = "SessionGone"

// HazardTrackInput describes a simulated hazard moving along waypoints.
type HazardTrackInput struct {
	SessionID    string
	Waypoints    []domain.GeoPoint
	StepsPerLeg  int           // interpolated positions between two waypoints
	StepInterval time.Duration // time between reports
}

// HazardTrackResult summarises a finished track.
type HazardTrackResult struct {
	Reported int
	Stopped  bool // ended by signal or because the session closed
}

// HazardTrackWorkflow reports the hazard at each interpolated position of the
// track, one every StepInterval, until the track ends or it is told to stop.
func HazardTrackWorkflow(ctx workflow.Context, input HazardTrackInput) (HazardTrackResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting hazard track", "session", input.SessionID, "waypoints", len(input.Waypoints))

	var result HazardTrackResult
	if len(input.Waypoints) == 0 {
		return result, temporal.NewNonRetryableApplicationError("track has no waypoints", "InvalidInput", nil)
	}
	interval := input.StepInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{errTypeSessionGone},
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	stop := workflow.GetSignalChannel(ctx, SignalStopTrack)
	points := Interpolate(input.Waypoints, input.StepsPerLeg)

	for i, p := range points {
		err := workflow.ExecuteActivity(ctx, "ReportHazardPosition", input.SessionID, p).Get(ctx, nil)
		if err != nil {
			var appErr *temporal.ApplicationError
			if errors.As(err, &appErr) && appErr.Type() == errTypeSessionGone {
				logger.Info("Session closed, ending hazard track", "session", input.SessionID)
				result.Stopped = true
				return result, nil
			}
			return result, err
		}
		result.Reported++

		if i == len(points)-1 {
			break
		}

		stopped := false
		timer := workflow.NewTimer(ctx, interval)
		sel := workflow.NewSelector(ctx)
		sel.AddFuture(timer, func(workflow.Future) {})
		sel.AddReceive(stop, func(c workflow.ReceiveChannel, _ bool) {
			c.Receive(ctx, nil)
			stopped = true
		})
		sel.Select(ctx)
		if stopped {
			logger.Info("Hazard track stopped by signal", "session", input.SessionID, "reported", result.Reported)
			result.Stopped = true
			return result, nil
		}
	}

	logger.Info("Hazard track complete", "session", input.SessionID, "reported", result.Reported)
	return result, nil
}

// Interpolate expands waypoints into evenly spaced positions, stepsPerLeg per
// leg, ending exactly on the last waypoint.
func Interpolate(waypoints []domain.GeoPoint, stepsPerLeg int) []domain.GeoPoint {
	if len(waypoints) == 0 {
		return nil
	}
	if stepsPerLeg < 1 {
		stepsPerLeg = 1
	}
	out := make([]domain.GeoPoint, 0, (len(waypoints)-1)*stepsPerLeg+1)
	for i := 0; i+1 < len(waypoints); i++ {
		a, b := waypoints[i], waypoints[i+1]
		for k := 0; k < stepsPerLeg; k++ {
			t := float64(k) / float64(stepsPerLeg)
			out = append(out, domain.GeoPoint{
				Latitude:  a.Latitude + (b.Latitude-a.Latitude)*t,
				Longitude: a.Longitude + (b.Longitude-a.Longitude)*t,
			})
		}
	}
	return append(out, waypoints[len(waypoints)-1])
}
