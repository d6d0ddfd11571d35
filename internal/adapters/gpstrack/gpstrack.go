// Package gpstrack reads positions from NMEA 0183 GPS output, as produced by
// hazard trackers and handheld receivers.
//
// Only fixes are used: GGA sentences with a fix quality other than "0" and
// RMC sentences with status "A". Every other sentence is skipped.
package gpstrack

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/adrianmo/go-nmea"

	"github.com/samirrijal/safespot/internal/core/domain"
)

// ErrNoFix is returned by ParseSentence for well-formed sentences that do not
// carry a usable position.
var ErrNoFix = errors.New("no position fix")

// ParseSentence extracts the position from one NMEA sentence.
func ParseSentence(line string) (domain.GeoPoint, error) {
	s, err := nmea.Parse(strings.TrimSpace(line))
	if err != nil {
		return domain.GeoPoint{}, fmt.Errorf("parse nmea: %w", err)
	}

	var p domain.GeoPoint
	switch v := s.(type) {
	case nmea.GGA:
		if v.FixQuality == nmea.Invalid {
			return domain.GeoPoint{}, ErrNoFix
		}
		p = domain.GeoPoint{Latitude: v.Latitude, Longitude: v.Longitude}
	case nmea.RMC:
		if v.Validity != nmea.ValidRMC {
			return domain.GeoPoint{}, ErrNoFix
		}
		p = domain.GeoPoint{Latitude: v.Latitude, Longitude: v.Longitude}
	default:
		return domain.GeoPoint{}, ErrNoFix
	}

	if !p.Valid() {
		return domain.GeoPoint{}, fmt.Errorf("%w: %+v", domain.ErrInvalidCoordinate, p)
	}
	return p, nil
}

// ReadTrack returns the fixes in r in order. Lines that are not NMEA
// sentences or carry no fix are skipped; consecutive duplicates are dropped.
func ReadTrack(r io.Reader) ([]domain.GeoPoint, error) {
	var track []domain.GeoPoint
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "$") {
			continue
		}
		p, err := ParseSentence(line)
		if err != nil {
			continue
		}
		if n := len(track); n > 0 && track[n-1] == p {
			continue
		}
		track = append(track, p)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read track: %w", err)
	}
	if len(track) == 0 {
		return nil, ErrNoFix
	}
	return track, nil
}
