// Command simulator drives a hazard along a track through Temporal.
//
//	simulator worker
//	simulator start -session s1 -waypoints "43.2560,-2.9240;43.2575,-2.9225"
//	simulator start -session s1 -nmea tracker.log -interval 2s
//	simulator stop -session s1
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/samirrijal/safespot/internal/adapters/gpstrack"
	natsadapter "github.com/samirrijal/safespot/internal/adapters/nats"
	"github.com/samirrijal/safespot/internal/core/domain"
	"github.com/samirrijal/safespot/internal/pkg/config"
	"github.com/samirrijal/safespot/internal/pkg/logging"
	"github.com/samirrijal/safespot/internal/workflows"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s worker | start -session ID (-waypoints LIST | -nmea FILE) | stop -session ID\n", os.Args[0])
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	cfg, err := config.Load("safespot-simulator")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	switch os.Args[1] {
	case "worker":
		runWorker(c, cfg)
	case "start":
		startTrack(c, cfg, os.Args[2:])
	case "stop":
		stopTrack(c, os.Args[2:])
	default:
		usage()
	}
}

func runWorker(c client.Client, cfg *config.Config) {
	if cfg.NATS.URL == "" {
		log.Fatal("nats.url is required: hazard reports are delivered over NATS")
	}
	publisher, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer publisher.Close()

	closed, err := natsadapter.WatchClosedSessions(publisher.Conn())
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer closed.Stop()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.HazardTrackWorkflow)
	w.RegisterActivity(&workflows.HazardActivities{
		Publisher: publisher,
		Closed:    closed.Closed,
	})

	log.Printf("simulator worker started on %s", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}

func startTrack(c client.Client, cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	session := fs.String("session", "", "session to move the hazard of")
	waypoints := fs.String("waypoints", "", "semicolon separated lat,lon pairs")
	nmeaFile := fs.String("nmea", "", "NMEA log to replay instead of waypoints")
	steps := fs.Int("steps", 5, "interpolated positions per leg")
	interval := fs.Duration("interval", 5*time.Second, "time between reports")
	_ = fs.Parse(args)

	if *session == "" || (*waypoints == "") == (*nmeaFile == "") {
		usage()
	}

	input := workflows.HazardTrackInput{
		SessionID:    *session,
		StepsPerLeg:  *steps,
		StepInterval: *interval,
	}
	var err error
	if *nmeaFile != "" {
		input.Waypoints, err = readNMEA(*nmeaFile)
		// Recorded fixes are already dense.
		input.StepsPerLeg = 1
	} else {
		input.Waypoints, err = parseWaypoints(*waypoints)
	}
	if err != nil {
		log.Fatalf("track: %v", err)
	}

	run, err := c.ExecuteWorkflow(context.Background(), client.StartWorkflowOptions{
		ID:        workflowID(*session),
		TaskQueue: cfg.Temporal.TaskQueue,
	}, workflows.HazardTrackWorkflow, input)
	if err != nil {
		log.Fatalf("start workflow: %v", err)
	}
	log.Printf("hazard track started: workflow=%s run=%s points=%d",
		run.GetID(), run.GetRunID(), len(workflows.Interpolate(input.Waypoints, input.StepsPerLeg)))
}

func stopTrack(c client.Client, args []string) {
	fs := flag.NewFlagSet("stop", flag.ExitOnError)
	session := fs.String("session", "", "session whose track to stop")
	_ = fs.Parse(args)
	if *session == "" {
		usage()
	}
	if err := c.SignalWorkflow(context.Background(), workflowID(*session), "", workflows.SignalStopTrack, nil); err != nil {
		log.Fatalf("signal: %v", err)
	}
	log.Printf("stop sent to %s", workflowID(*session))
}

func workflowID(session string) string { return "hazard-track-" + session }

// parseWaypoints reads "lat,lon;lat,lon;...".
func parseWaypoints(s string) ([]domain.GeoPoint, error) {
	var out []domain.GeoPoint
	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		lat, lon, ok := strings.Cut(pair, ",")
		if !ok {
			return nil, fmt.Errorf("waypoint %q: want lat,lon", pair)
		}
		var (
			p   domain.GeoPoint
			err error
		)
		if p.Latitude, err = strconv.ParseFloat(strings.TrimSpace(lat), 64); err != nil {
			return nil, fmt.Errorf("waypoint %q: %w", pair, err)
		}
		if p.Longitude, err = strconv.ParseFloat(strings.TrimSpace(lon), 64); err != nil {
			return nil, fmt.Errorf("waypoint %q: %w", pair, err)
		}
		if !p.Valid() {
			return nil, fmt.Errorf("waypoint %q: %w", pair, domain.ErrInvalidCoordinate)
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no waypoints in %q", s)
	}
	return out, nil
}

func readNMEA(path string) ([]domain.GeoPoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return gpstrack.ReadTrack(f)
}
