package posefeed

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/pathtrack/internal/route"
)

// Sentence kinds carried on the feed.
const (
	KindPose     = "POSE"
	KindStop     = "STOP"
	KindObstacle = "OBST"
)

// Sentence is one parsed feed line.
//
// The wire format is comma-separated:
//
//	POSE,<x>,<y>,<yaw>   vehicle pose, metres and radians
//	STOP,<index>         stop-line route index, -1 for none
//	OBST,<index>         obstacle route index (hook, unimplemented downstream)
type Sentence struct {
	Kind  string
	Pose  route.Pose
	Index int
}

// ParseSentence parses a single feed line. Blank lines and comment lines
// starting with '#' return ErrSkip.
func ParseSentence(line string) (Sentence, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Sentence{}, ErrSkip
	}

	segments := strings.Split(line, ",")
	switch segments[0] {
	case KindPose:
		if len(segments) != 4 {
			return Sentence{}, fmt.Errorf("POSE sentence needs 3 fields, got %d", len(segments)-1)
		}
		x, err := strconv.ParseFloat(segments[1], 64)
		if err != nil {
			return Sentence{}, fmt.Errorf("failed to parse x: %w", err)
		}
		y, err := strconv.ParseFloat(segments[2], 64)
		if err != nil {
			return Sentence{}, fmt.Errorf("failed to parse y: %w", err)
		}
		yaw, err := strconv.ParseFloat(segments[3], 64)
		if err != nil {
			return Sentence{}, fmt.Errorf("failed to parse yaw: %w", err)
		}
		return Sentence{
			Kind: KindPose,
			Pose: route.Pose{Position: route.Point{X: x, Y: y}, Yaw: yaw},
		}, nil

	case KindStop, KindObstacle:
		if len(segments) != 2 {
			return Sentence{}, fmt.Errorf("%s sentence needs 1 field, got %d", segments[0], len(segments)-1)
		}
		idx, err := strconv.Atoi(strings.TrimSpace(segments[1]))
		if err != nil {
			return Sentence{}, fmt.Errorf("failed to parse index: %w", err)
		}
		return Sentence{Kind: segments[0], Index: idx}, nil
	}

	return Sentence{}, fmt.Errorf("unknown sentence %q", segments[0])
}

// ErrSkip marks lines that carry no sentence (blank or comment).
var ErrSkip = fmt.Errorf("skip line")
