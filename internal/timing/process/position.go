package process

import (
	"time"

	"github.com/gridpulse/gridpulse/internal/timing/model"
	"github.com/gridpulse/gridpulse/internal/timing/session"
)

// PositionEnricher computes the derived per-car fields after all parsers have
// applied: class positions, gaps and differences, fastest-lap flags,
// positions gained and stale-car detection.
type PositionEnricher struct {
	// StaleMinLap suppresses stale checks until every car has completed this
	// many laps.
	StaleMinLap int
}

// Process runs the full enrichment pass.
func (e PositionEnricher) Process(c *session.Context) {
	ordered := c.State.OrderedCars()
	e.classPositions(ordered)
	e.gaps(ordered)
	e.bestTimeFlags(ordered)
	e.positionsGained(ordered)
	e.staleCars(c, ordered)
}

// classPositions ranks cars within their class by overall running order.
func (PositionEnricher) classPositions(ordered []*model.CarPosition) {
	rank := make(map[string]int)
	for _, car := range ordered {
		if car.OverallPosition < 1 {
			car.ClassPosition = 0
			continue
		}
		rank[car.Class]++
		car.ClassPosition = rank[car.Class]
	}
}

// gaps fills the four gap/difference strings. The overall gap compares
// against the car ahead, the difference against the leader; when the lap
// count differs the value is a lap count. Class variants do the same within
// the car's class.
func (PositionEnricher) gaps(ordered []*model.CarPosition) {
	var leader *model.CarPosition
	var ahead *model.CarPosition
	classLeader := make(map[string]*model.CarPosition)
	classAhead := make(map[string]*model.CarPosition)

	for _, car := range ordered {
		if car.OverallPosition < 1 {
			car.OverallGap, car.OverallDifference = "", ""
			car.InClassGap, car.InClassDifference = "", ""
			continue
		}
		if leader == nil {
			leader = car
			car.OverallGap, car.OverallDifference = "", ""
		} else {
			car.OverallGap = relativeTiming(car, ahead)
			car.OverallDifference = relativeTiming(car, leader)
		}
		ahead = car

		if classLeader[car.Class] == nil {
			classLeader[car.Class] = car
			car.InClassGap, car.InClassDifference = "", ""
		} else {
			car.InClassGap = relativeTiming(car, classAhead[car.Class])
			car.InClassDifference = relativeTiming(car, classLeader[car.Class])
		}
		classAhead[car.Class] = car
	}
}

// relativeTiming formats the distance between car and the given reference
// car: a time delta on equal laps, a lap count otherwise.
func relativeTiming(car, ref *model.CarPosition) string {
	if ref == nil {
		return ""
	}
	if lapDiff := ref.LastLapCompleted - car.LastLapCompleted; lapDiff != 0 {
		return model.FormatLapCount(lapDiff)
	}
	if car.TotalTime == model.NoTime || ref.TotalTime == model.NoTime {
		return ""
	}
	return model.FormatGap(car.TotalTime - ref.TotalTime)
}

// bestTimeFlags marks the car with the fastest lap overall and per class.
// Ties go to the earliest achievement.
func (PositionEnricher) bestTimeFlags(ordered []*model.CarPosition) {
	var best *model.CarPosition
	classBest := make(map[string]*model.CarPosition)

	better := func(a, b *model.CarPosition) bool {
		if b == nil {
			return true
		}
		if a.BestLapTime != b.BestLapTime {
			return a.BestLapTime < b.BestLapTime
		}
		return a.BestTimeOrder < b.BestTimeOrder
	}

	for _, car := range ordered {
		car.IsBestTime = false
		car.IsBestTimeClass = false
		if car.BestLapTime == model.NoTime || car.BestLapTime <= 0 {
			continue
		}
		if better(car, best) {
			best = car
		}
		if better(car, classBest[car.Class]) {
			classBest[car.Class] = car
		}
	}
	if best != nil {
		best.IsBestTime = true
	}
	for _, car := range classBest {
		car.IsBestTimeClass = true
	}
}

// positionsGained computes grid-to-current deltas and marks the most-gained
// cars, ties included.
func (PositionEnricher) positionsGained(ordered []*model.CarPosition) {
	maxOverall, maxClass := 0, 0
	for _, car := range ordered {
		car.IsOverallMostPositionsGained = false
		car.IsClassMostPositionsGained = false

		car.OverallPositionsGained = 0
		if car.OverallStartingPosition >= 1 && car.OverallPosition >= 1 {
			car.OverallPositionsGained = car.OverallStartingPosition - car.OverallPosition
			if car.OverallPositionsGained > maxOverall {
				maxOverall = car.OverallPositionsGained
			}
		}
		car.InClassPositionsGained = 0
		if car.InClassStartingPosition >= 1 && car.ClassPosition >= 1 {
			car.InClassPositionsGained = car.InClassStartingPosition - car.ClassPosition
			if car.InClassPositionsGained > maxClass {
				maxClass = car.InClassPositionsGained
			}
		}
	}
	for _, car := range ordered {
		if maxOverall > 0 && car.OverallPositionsGained == maxOverall {
			car.IsOverallMostPositionsGained = true
		}
		if maxClass > 0 && car.InClassPositionsGained == maxClass {
			car.IsClassMostPositionsGained = true
		}
	}
}

// staleMultiplier scales a car's last lap time into the allowed window before
// the car is considered stale, based on the flag transition since its last
// completed lap.
func staleMultiplier(lastLapFlag, current model.Flag) float64 {
	type key struct{ from, to model.Flag }
	switch (key{lastLapFlag, current}) {
	case key{model.FlagGreen, model.FlagGreen},
		key{model.FlagGreen, model.FlagWhite},
		key{model.FlagWhite, model.FlagWhite},
		key{model.FlagWhite, model.FlagGreen}:
		return 1.30
	case key{model.FlagYellow, model.FlagGreen}:
		return 1.05
	case key{model.FlagGreen, model.FlagYellow},
		key{model.FlagYellow, model.FlagYellow},
		key{model.FlagYellow, model.FlagWhite},
		key{model.FlagWhite, model.FlagYellow}:
		return 2.10
	default:
		return 2.10
	}
}

// minStaleElapsed is the minimum age of a car's last crossing before any
// stale decision is made.
const minStaleElapsed = time.Second

// staleCars flags cars that have exceeded the expected time between
// crossings. The check is suspended under red and checkered flags and until
// the whole field has a minimum lap count.
func (e PositionEnricher) staleCars(c *session.Context, ordered []*model.CarPosition) {
	s := c.State

	if s.CurrentFlag == model.FlagRed || s.CurrentFlag == model.FlagCheckered {
		for _, car := range ordered {
			car.IsStale = false
		}
		return
	}
	minLap := e.StaleMinLap
	if minLap <= 0 {
		minLap = 3
	}
	for _, car := range ordered {
		if car.LastLapCompleted < minLap {
			return
		}
	}
	if s.RaceTime == model.NoTime {
		return
	}

	for _, car := range ordered {
		if car.LastLapCompleted == 0 {
			car.IsStale = true
			continue
		}
		if car.TotalTime == model.NoTime || car.LastLapTime == model.NoTime {
			continue
		}
		elapsed := s.RaceTime - car.TotalTime
		if elapsed < minStaleElapsed {
			continue
		}
		threshold := time.Duration(float64(car.LastLapTime) * staleMultiplier(car.TrackFlag, s.CurrentFlag))
		car.IsStale = elapsed > threshold
	}
}
