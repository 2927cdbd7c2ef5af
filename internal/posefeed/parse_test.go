package posefeed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSentence(t *testing.T) {
	t.Parallel()

	t.Run("pose", func(t *testing.T) {
		t.Parallel()
		s, err := ParseSentence("POSE,12.5,-3.25,1.57")
		require.NoError(t, err)
		assert.Equal(t, KindPose, s.Kind)
		assert.Equal(t, 12.5, s.Pose.Position.X)
		assert.Equal(t, -3.25, s.Pose.Position.Y)
		assert.Equal(t, 1.57, s.Pose.Yaw)
	})

	t.Run("stop", func(t *testing.T) {
		t.Parallel()
		s, err := ParseSentence("STOP,753")
		require.NoError(t, err)
		assert.Equal(t, KindStop, s.Kind)
		assert.Equal(t, 753, s.Index)
	})

	t.Run("stop cleared", func(t *testing.T) {
		t.Parallel()
		s, err := ParseSentence("STOP,-1")
		require.NoError(t, err)
		assert.Equal(t, -1, s.Index)
	})

	t.Run("obstacle", func(t *testing.T) {
		t.Parallel()
		s, err := ParseSentence("OBST,12")
		require.NoError(t, err)
		assert.Equal(t, KindObstacle, s.Kind)
		assert.Equal(t, 12, s.Index)
	})

	t.Run("blank and comment lines skip", func(t *testing.T) {
		t.Parallel()
		_, err := ParseSentence("   ")
		assert.ErrorIs(t, err, ErrSkip)
		_, err = ParseSentence("# recorded 2026-08-12")
		assert.ErrorIs(t, err, ErrSkip)
	})

	t.Run("malformed sentences", func(t *testing.T) {
		t.Parallel()
		for _, line := range []string{
			"POSE,1.0,2.0",
			"POSE,a,b,c",
			"STOP",
			"STOP,abc",
			"WIND,1,2",
		} {
			_, err := ParseSentence(line)
			assert.Errorf(t, err, "line %q should not parse", line)
		}
	})
}
