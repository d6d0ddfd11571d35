package gpstrack

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	ggaFix1  = "$GPGGA,120000.00,4315.360,N,00255.440,W,1,08,0.9,10.0,M,50.0,M,,*4C"
	ggaFix2  = "$GPGGA,120005.00,4315.420,N,00255.380,W,1,08,0.9,10.0,M,50.0,M,,*41"
	ggaNoFix = "$GPGGA,120010.00,4315.360,N,00255.440,W,0,00,99.9,,M,,M,,*70"
	rmcValid = "$GPRMC,120015.00,A,4315.480,N,00255.320,W,0.5,90.0,191026,,,A*76"
	rmcVoid  = "$GPRMC,120020.00,V,4315.480,N,00255.320,W,0.5,90.0,191026,,,N*68"
)

func TestParseSentence(t *testing.T) {
	p, err := ParseSentence(ggaFix1)
	require.NoError(t, err)
	assert.InDelta(t, 43.256, p.Latitude, 1e-9)
	assert.InDelta(t, -2.924, p.Longitude, 1e-9)

	p, err = ParseSentence(rmcValid + "\r\n")
	require.NoError(t, err)
	assert.InDelta(t, 43.258, p.Latitude, 1e-9)
	assert.InDelta(t, -2.922, p.Longitude, 1e-9)
}

func TestParseSentence_NoFix(t *testing.T) {
	for _, s := range []string{ggaNoFix, rmcVoid} {
		_, err := ParseSentence(s)
		assert.True(t, errors.Is(err, ErrNoFix), "%s: got %v", s, err)
	}
}

func TestParseSentence_Malformed(t *testing.T) {
	_, err := ParseSentence("$GPGGA,120000.00,4315.360,N,00255.440,W,1,08,0.9,10.0,M,50.0,M,,*00")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoFix))

	_, err = ParseSentence("not nmea")
	require.Error(t, err)
}

func TestReadTrack(t *testing.T) {
	log := strings.Join([]string{
		"# receiver log",
		ggaFix1,
		ggaFix1,
		ggaNoFix,
		"$GPGGA,garbage",
		ggaFix2,
		rmcVoid,
		rmcValid,
	}, "\n")

	track, err := ReadTrack(strings.NewReader(log))
	require.NoError(t, err)
	require.Len(t, track, 3)
	assert.InDelta(t, 43.256, track[0].Latitude, 1e-9)
	assert.InDelta(t, 43.257, track[1].Latitude, 1e-9)
	assert.InDelta(t, 43.258, track[2].Latitude, 1e-9)
}

func TestReadTrack_Empty(t *testing.T) {
	_, err := ReadTrack(strings.NewReader(ggaNoFix + "\n"))
	assert.ErrorIs(t, err, ErrNoFix)
}
