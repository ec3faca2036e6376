package session

import (
	"sort"

	"github.com/gridpulse/gridpulse/internal/timing/model"
)

// captureStartingPosition records a car's grid slot from a lap-0 race-info
// record. Capture only happens before the field has passed start and while
// the flag still permits grid formation.
func (c *Context) captureStartingPosition(car *model.CarPosition, position int) {
	if position < 1 {
		return
	}
	switch c.State.CurrentFlag {
	case model.FlagUnknown, model.FlagYellow, model.FlagGreen:
	default:
		return
	}
	c.State.StartingPositions[car.Number] = model.StartingPosition{
		Overall: position,
		Class:   car.Class,
	}
	car.OverallStartingPosition = position
}

// latchStartingPositions derives in-class grid ranks from the captured
// overall positions and freezes the map. Class membership is whatever was
// known at capture time; later class changes do not recompute grid ranks.
func (c *Context) latchStartingPositions() {
	s := c.State
	if s.StartingPositionsCaptured {
		return
	}

	byClass := make(map[string][]string)
	for number, sp := range s.StartingPositions {
		byClass[sp.Class] = append(byClass[sp.Class], number)
	}
	for _, numbers := range byClass {
		sort.Slice(numbers, func(i, j int) bool {
			return s.StartingPositions[numbers[i]].Overall < s.StartingPositions[numbers[j]].Overall
		})
		for rank, number := range numbers {
			sp := s.StartingPositions[number]
			sp.InClass = rank + 1
			s.StartingPositions[number] = sp
			if car, ok := s.Cars[number]; ok {
				car.InClassStartingPosition = sp.InClass
				car.OverallStartingPosition = sp.Overall
			}
		}
	}
	s.StartingPositionsCaptured = true
	c.logger.Info().Int("cars", len(s.StartingPositions)).Msg("starting positions captured")
}
