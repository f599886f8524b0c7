package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSample() TelemetrySample {
	return TelemetrySample{
		EventID:      "evt-1",
		EntityID:     "SAT-001",
		TimestampMs:  1700000000000,
		LatencyMs:    42,
		DroppedCount: 1,
		SentCount:    100,
		LinkQuality:  0.9,
	}
}

func TestTelemetrySampleValidate(t *testing.T) {
	require.NoError(t, validSample().Validate())

	cases := []struct {
		name   string
		mutate func(*TelemetrySample)
		field  string
	}{
		{"blank event id", func(s *TelemetrySample) { s.EventID = " " }, "event_id"},
		{"blank sat id", func(s *TelemetrySample) { s.EntityID = "" }, "sat_id"},
		{"zero sent", func(s *TelemetrySample) { s.SentCount = 0 }, "sent_packets"},
		{"negative dropped", func(s *TelemetrySample) { s.DroppedCount = -1 }, "dropped_packets"},
		{"dropped above sent", func(s *TelemetrySample) { s.DroppedCount = 101 }, "dropped_packets"},
		{"link quality above one", func(s *TelemetrySample) { s.LinkQuality = 1.01 }, "link_quality"},
		{"link quality negative", func(s *TelemetrySample) { s.LinkQuality = -0.1 }, "link_quality"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := validSample()
			tc.mutate(&s)
			err := s.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestThresholdsPatchApplyKeepsAbsentFields(t *testing.T) {
	latency := 350.0
	patch := ThresholdsPatch{LatencyP95Ms: &latency}

	got := patch.Apply(DefaultThresholds())

	assert.Equal(t, 350.0, got.LatencyP95Ms)
	assert.Equal(t, DefaultDropRate, got.DropRate)
	assert.Equal(t, DefaultMinLinkQuality, got.MinLinkQuality)
	assert.Equal(t, DefaultWindowS, got.WindowS)
	assert.False(t, patch.IsEmpty())
	assert.True(t, ThresholdsPatch{}.IsEmpty())
}

func TestThresholdsValidate(t *testing.T) {
	require.NoError(t, DefaultThresholds().Validate())

	bad := DefaultThresholds()
	bad.WindowS = 0
	assert.ErrorIs(t, bad.Validate(), ErrValidation)

	bad = DefaultThresholds()
	bad.DropRate = 1.5
	assert.ErrorIs(t, bad.Validate(), ErrValidation)
}

func TestFailedSnapshot(t *testing.T) {
	snap := FailedSnapshot("SAT-9", 60, errors.New("boom"))
	assert.False(t, snap.FetchedOK)
	assert.Equal(t, "SAT-9", snap.EntityID)
	assert.Equal(t, 60, snap.WindowS)
	assert.Equal(t, "boom", snap.Error)
	assert.Zero(t, snap.Count)
}
