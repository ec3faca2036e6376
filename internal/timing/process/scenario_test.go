package process

import (
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridpulse/gridpulse/internal/clock"
	"github.com/gridpulse/gridpulse/internal/timing/model"
	"github.com/gridpulse/gridpulse/internal/timing/rmonitor"
	"github.com/gridpulse/gridpulse/internal/timing/session"
)

// raceEntries registers a 48-car field in three classes. Car 70 is the only
// GTO entry; cars 5/10/15/20/25/30 and 149 are GTU; the rest GTP.
func raceEntries() string {
	gtu := map[int]bool{5: true, 10: true, 15: true, 20: true, 25: true, 30: true}
	var sb strings.Builder
	sb.WriteString("$B,67,\"Saturday 8 Hour\"\n")
	sb.WriteString("$C,1,\"GTO\"\n$C,2,\"GTU\"\n$C,3,\"GTP\"\n")
	for i := 1; i <= 46; i++ {
		class := 3
		if gtu[i] {
			class = 2
		}
		num := strconv.Itoa(i)
		fmt.Fprintf(&sb, "$A,%q,%q,%d,\"Driver\",%q,\"USA\",%d\n", num, num, 52000+i, num, class)
	}
	sb.WriteString("$A,\"70\",\"70\",58488,\"Tommy\",\"Archer\",\"USA\",1\n")
	sb.WriteString("$A,\"149\",\"149\",52149,\"Bob\",\"Earl\",\"USA\",2\n")
	return sb.String()
}

// lap0Grid puts car 70 on pole, cars 1-45 on positions 2-46, car 149 on 47
// and car 46 at the back.
func lap0Grid() string {
	var sb strings.Builder
	sb.WriteString("$G,1,\"70\",0,\"00:00:00\"\n")
	for i := 1; i <= 45; i++ {
		fmt.Fprintf(&sb, "$G,%d,%q,0,\"00:00:00\"\n", i+1, strconv.Itoa(i))
	}
	sb.WriteString("$G,47,\"149\",0,\"00:00:00\"\n")
	sb.WriteString("$G,48,\"46\",0,\"00:00:00\"\n")
	return sb.String()
}

func TestGridPositionsUnderYellow(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 8, 22, 7, 29, 44, 0, time.UTC))
	c := session.New(7, 67, clk)

	c.ApplyRM(rmonitor.ParseBatch(raceEntries()))
	c.ApplyRM(rmonitor.ParseBatch(
		"$F,9999,\"08:00:00\",\"07:29:44\",\"00:00:00\",\"Yellow\"\n" + lap0Grid()))
	PositionEnricher{}.Process(c)

	pole := c.State.Cars["70"]
	assert.Equal(t, 1, pole.OverallPosition)
	assert.Equal(t, 1, pole.ClassPosition)

	tail := c.State.Cars["149"]
	assert.Equal(t, 47, tail.OverallPosition)
	assert.Equal(t, 7, tail.ClassPosition, "six GTU cars grid ahead")

	assert.False(t, c.State.StartingPositionsCaptured)

	// The first completed lap latches the grid with in-class ranks.
	c.ApplyRM(rmonitor.ParseBatch("$G,1,\"70\",1,\"00:02:21.740\""))
	assert.True(t, c.State.StartingPositionsCaptured)
	sp := c.State.StartingPositions["149"]
	assert.Equal(t, 47, sp.Overall)
	assert.Equal(t, 7, sp.InClass)
	assert.Equal(t, "GTU", sp.Class)
	assert.Equal(t, 7, tail.InClassStartingPosition)
}

// A green-flag running order with one lapped car: gaps compare against the
// car ahead, differences against the (class) leader, and a lap deficit
// renders as a lap count.
func TestRaceGapsAndDifferences(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 8, 22, 7, 38, 5, 0, time.UTC))
	c := session.New(7, 67, clk)

	c.ApplyRM(rmonitor.ParseBatch(strings.Join([]string{
		`$C,1,"GTO"`,
		`$C,2,"GTU"`,
		`$A,"8","8",58008,"Driver","Eight","USA",1`,
		`$A,"70","70",58488,"Tommy","Archer","USA",1`,
		`$A,"33","33",58033,"Driver","ThirtyThree","USA",2`,
		`$A,"44","44",58044,"Driver","FortyFour","USA",2`,
		`$A,"149","149",52149,"Bob","Earl","USA",2`,
		`$F,230,"07:51:55","07:38:05","00:08:05","Green"`,
		`$G,1,"8",3,"00:08:04.554"`,
		`$G,2,"70",3,"00:08:05.341"`,
		`$G,3,"33",2,"00:08:10.000"`,
		`$G,4,"44",2,"00:08:21.486"`,
		`$G,5,"149",2,"00:08:37.411"`,
		`$H,2,"70",2,"00:02:21.740"`,
		`$J,"70","00:02:23.425","00:08:05.341"`,
	}, "\n")))
	PositionEnricher{}.Process(c)

	car := c.State.Cars["70"]
	require.NotNil(t, car)
	assert.Equal(t, 2, car.OverallPosition)
	assert.Equal(t, 2, car.ClassPosition)
	assert.Equal(t, "00:02:23.425", model.FormatLapTime(car.LastLapTime))
	assert.Equal(t, "00:08:05.341", model.FormatLapTime(car.TotalTime))
	assert.Equal(t, model.FlagGreen, car.TrackFlag)
	assert.Equal(t, 2, car.BestLap)
	assert.Equal(t, "00:02:21.740", model.FormatLapTime(car.BestLapTime))
	assert.Equal(t, "0.787", car.OverallGap)
	assert.Equal(t, "0.787", car.OverallDifference)
	assert.Equal(t, "0.787", car.InClassGap)
	assert.Equal(t, "0.787", car.InClassDifference)

	lapped := c.State.Cars["149"]
	require.NotNil(t, lapped)
	assert.Equal(t, "1 lap", lapped.OverallDifference)
	assert.Equal(t, "15.925", lapped.OverallGap)
	assert.Equal(t, "27.411", lapped.InClassDifference)
	assert.Equal(t, "15.925", lapped.InClassGap)
}
