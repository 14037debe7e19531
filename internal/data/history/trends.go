package history

import (
	"fmt"
	"math"
	"time"
)

// BuildTrendReport turns time-ordered snapshots into per-flush deltas and a
// trailing hit-rate average over window.
func BuildTrendReport(workspace string, snapshots []Snapshot, window time.Duration) (TrendReport, error) {
	if len(snapshots) == 0 {
		return TrendReport{}, fmt.Errorf("no snapshots available")
	}

	points := make([]TrendPoint, 0, len(snapshots))
	for i, current := range snapshots {
		point := TrendPoint{
			Timestamp:  current.Timestamp,
			SessionID:  current.SessionID,
			HitRate:    round2(current.HitRate),
			SizeBytes:  current.SizeBytes,
			EntryCount: current.EntryCount,
		}
		if i > 0 {
			prev := snapshots[i-1]
			point.DeltaSizeBytes = int64(current.SizeBytes) - int64(prev.SizeBytes)
			point.DeltaEntries = int64(current.EntryCount) - int64(prev.EntryCount)
		}
		point.AvgHitRate = round2(movingHitRate(snapshots, i, window))
		point.WindowHours = round2(window.Hours())
		points = append(points, point)
	}

	return TrendReport{
		SchemaVersion: SchemaVersion,
		Workspace:     workspace,
		Since:         snapshots[0].Timestamp,
		Until:         snapshots[len(snapshots)-1].Timestamp,
		Window:        window.String(),
		SnapshotCount: len(points),
		Points:        points,
	}, nil
}

func movingHitRate(snapshots []Snapshot, index int, window time.Duration) float64 {
	if window <= 0 {
		return snapshots[index].HitRate
	}

	cutoff := snapshots[index].Timestamp.Add(-window)
	var total float64
	count := 0
	for i := index; i >= 0; i-- {
		if snapshots[i].Timestamp.Before(cutoff) {
			break
		}
		total += snapshots[i].HitRate
		count++
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
