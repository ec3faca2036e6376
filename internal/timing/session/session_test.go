package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridpulse/gridpulse/internal/clock"
	"github.com/gridpulse/gridpulse/internal/timing/model"
	"github.com/gridpulse/gridpulse/internal/timing/multiloop"
	"github.com/gridpulse/gridpulse/internal/timing/rmonitor"
)

func newTestContext(t *testing.T) (*Context, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Date(2026, 8, 22, 14, 0, 0, 0, time.UTC))
	return New(7, 42, clk), clk
}

func applyRM(t *testing.T, c *Context, data string) RMOutcome {
	t.Helper()
	return c.ApplyRM(rmonitor.ParseBatch(data))
}

func TestApplyRMBuildsGrid(t *testing.T) {
	c, _ := newTestContext(t)
	applyRM(t, c, `$C,1,"GT3"`+"\n"+
		`$A,"REG1","12",52474,"John","Johnson","USA",1`+"\n"+
		`$COMP,"REG1","12",1,"John","Johnson","USA","Garage 61"`+"\n"+
		`$B,42,"Main Race"`+"\n"+
		`$E,"TRACKNAME","Mid-Ohio"`)

	car := c.State.Cars["12"]
	require.NotNil(t, car)
	assert.Equal(t, "John Johnson", car.DriverName)
	assert.Equal(t, uint32(52474), car.TransponderID)
	assert.Equal(t, "GT3", car.Class)
	assert.Equal(t, "Main Race", c.State.SessionName)
	assert.Equal(t, "Mid-Ohio", c.State.TrackName)
	assert.Equal(t, "Garage 61", c.State.Entries["12"].Team)
}

func TestApplyRMClassArrivesAfterRegistration(t *testing.T) {
	c, _ := newTestContext(t)
	applyRM(t, c, `$A,"REG1","12",52474,"John","Johnson","USA",3`)
	assert.Empty(t, c.State.Cars["12"].Class)

	applyRM(t, c, `$C,3,"LMP2"`)
	assert.Equal(t, "LMP2", c.State.Cars["12"].Class)
}

func TestApplyRMHeartbeatAndRaceInfo(t *testing.T) {
	c, _ := newTestContext(t)
	applyRM(t, c, `$F,14,"00:12:45","13:34:23","00:09:47","Green"`+"\n"+
		`$G,3,"12",14,"00:24:01.125"`)

	assert.Equal(t, model.FlagGreen, c.State.CurrentFlag)
	assert.Equal(t, 14, c.State.LapsToGo)
	assert.Equal(t, 9*time.Minute+47*time.Second, c.State.RaceTime)

	car := c.State.Cars["12"]
	assert.Equal(t, 3, car.OverallPosition)
	assert.Equal(t, 14, car.LastLapCompleted)
	assert.Equal(t, model.FlagGreen, car.TrackFlag)
	assert.Equal(t, car.TotalTime, car.LapStartTime)
}

func TestApplyRMLapCountNeverDecreases(t *testing.T) {
	c, _ := newTestContext(t)
	applyRM(t, c, `$G,3,"12",14,"00:24:01.125"`)
	applyRM(t, c, `$G,3,"12",13,"00:22:00.000"`)
	assert.Equal(t, 14, c.State.Cars["12"].LastLapCompleted)
}

func TestApplyRMPassingUpdatesLastAndBest(t *testing.T) {
	c, _ := newTestContext(t)
	applyRM(t, c, `$J,"12","00:01:35.500","00:24:01.125"`)
	car := c.State.Cars["12"]
	assert.Equal(t, 95*time.Second+500*time.Millisecond, car.LastLapTime)
	assert.Equal(t, 95*time.Second+500*time.Millisecond, car.BestLapTime)

	applyRM(t, c, `$J,"12","00:01:37.000","00:25:38.125"`)
	assert.Equal(t, 97*time.Second, c.State.Cars["12"].LastLapTime)
	assert.Equal(t, 95*time.Second+500*time.Millisecond, c.State.Cars["12"].BestLapTime)
}

func TestApplyRMPracticeBestOrdersOnlyPracticeSessions(t *testing.T) {
	c, _ := newTestContext(t)
	c.State.IsPracticeQualifying = false
	applyRM(t, c, `$H,2,"12",4,"00:01:33.000"`)
	assert.Zero(t, c.State.Cars["12"].OverallPosition)
	assert.Equal(t, 93*time.Second, c.State.Cars["12"].BestLapTime)

	c.State.IsPracticeQualifying = true
	applyRM(t, c, `$H,2,"12",4,"00:01:33.000"`)
	assert.Equal(t, 2, c.State.Cars["12"].OverallPosition)
}

func TestSessionRefChangeReported(t *testing.T) {
	c, _ := newTestContext(t)
	out := applyRM(t, c, `$B,43,"Next Race"`)
	assert.True(t, out.SessionRefChanged)
	assert.Equal(t, 43, out.NewSessionRef)
	assert.Equal(t, "Next Race", out.NewSessionName)
	// The old session keeps its identity.
	assert.Equal(t, 42, c.State.SessionID)
}

func TestPreRaceResetClearsEverything(t *testing.T) {
	c, _ := newTestContext(t)
	applyRM(t, c, `$A,"REG1","12",52474,"John","Johnson","USA",1`+"\n"+
		`$G,1,"12",0,"00:00:00.000"`)
	require.NotEmpty(t, c.State.Cars)
	require.NotEmpty(t, c.State.StartingPositions)

	out := applyRM(t, c, `$I,"12:00:00","24 Aug 26"`)
	assert.True(t, out.ResetApplied)
	assert.Empty(t, c.State.Cars)
	assert.Empty(t, c.State.Entries)
	assert.Empty(t, c.State.StartingPositions)
	assert.False(t, c.State.StartingPositionsCaptured)
}

func TestStandaloneMidRaceResetIgnored(t *testing.T) {
	c, _ := newTestContext(t)
	applyRM(t, c, `$F,14,"00:12:45","13:34:23","00:09:47","Green"`+"\n"+
		`$G,1,"12",5,"00:08:00.000"`)

	out := applyRM(t, c, `$I,"14:00:00","24 Aug 26"`)
	assert.False(t, out.ResetApplied)
	assert.Equal(t, 5, c.State.Cars["12"].LastLapCompleted)
}

func TestMidRaceRebuildRestoresCachedLapTimes(t *testing.T) {
	c, _ := newTestContext(t)
	applyRM(t, c, `$F,14,"00:12:45","13:34:23","00:09:47","Green"`)
	applyRM(t, c,
		`$A,"R1","1",111,"A","Alpha","USA",1`+"\n"+
			`$A,"R2","2",222,"B","Beta","USA",1`+"\n"+
			`$A,"R3","3",333,"C","Gamma","USA",1`+"\n"+
			`$J,"1","00:01:31.000","00:09:00.000"`+"\n"+
			`$J,"2","00:01:32.000","00:09:01.000"`+"\n"+
			`$J,"3","00:01:33.000","00:09:02.000"`+"\n"+
			`$G,1,"1",6,"00:09:00.000"`+"\n"+
			`$G,2,"2",6,"00:09:01.000"`+"\n"+
			`$G,3,"3",6,"00:09:02.000"`)

	// Rebuild omits car 2.
	out := applyRM(t, c,
		`$I,"14:00:00","24 Aug 26"`+"\n"+
			`$A,"R1","1",111,"A","Alpha","USA",1`+"\n"+
			`$A,"R3","3",333,"C","Gamma","USA",1`+"\n"+
			`$G,1,"1",6,"00:09:00.000"`+"\n"+
			`$G,3,"3",6,"00:09:02.000"`+"\n"+
			`$H,1,"1",4,"00:01:31.000"`)
	assert.True(t, out.ResetApplied)

	// All three cars survive the rebuild with their lap progress.
	require.Len(t, c.State.Cars, 3)
	assert.Equal(t, 6, c.State.Cars["1"].LastLapCompleted)
	assert.Equal(t, 6, c.State.Cars["2"].LastLapCompleted)

	// Re-registered cars get their last lap times back from the cache; the
	// omitted car keeps the cleared value.
	assert.Equal(t, 91*time.Second, c.State.Cars["1"].LastLapTime)
	assert.Equal(t, 93*time.Second, c.State.Cars["3"].LastLapTime)
	assert.Equal(t, model.NoTime, c.State.Cars["2"].LastLapTime)
}

func TestStartingPositionsCaptureAndLatch(t *testing.T) {
	c, _ := newTestContext(t)
	applyRM(t, c, `$C,1,"GT3"`+"\n"+`$C,2,"GT4"`+"\n"+
		`$A,"R1","1",111,"A","Alpha","USA",1`+"\n"+
		`$A,"R2","2",222,"B","Beta","USA",2`+"\n"+
		`$A,"R3","3",333,"C","Gamma","USA",1`+"\n"+
		`$G,1,"1",0,"00:00:00.000"`+"\n"+
		`$G,2,"2",0,"00:00:00.000"`+"\n"+
		`$G,3,"3",0,"00:00:00.000"`)
	assert.False(t, c.State.StartingPositionsCaptured)

	// First completed lap freezes the grid.
	applyRM(t, c, `$G,1,"1",1,"00:01:40.000"`)
	require.True(t, c.State.StartingPositionsCaptured)

	assert.Equal(t, 1, c.State.Cars["1"].OverallStartingPosition)
	assert.Equal(t, 1, c.State.Cars["1"].InClassStartingPosition)
	assert.Equal(t, 2, c.State.Cars["2"].OverallStartingPosition)
	assert.Equal(t, 1, c.State.Cars["2"].InClassStartingPosition, "only GT4 on its grid")
	assert.Equal(t, 3, c.State.Cars["3"].OverallStartingPosition)
	assert.Equal(t, 2, c.State.Cars["3"].InClassStartingPosition)
}

func TestStartingPositionsNotCapturedUnderRed(t *testing.T) {
	c, _ := newTestContext(t)
	applyRM(t, c, `$F,14,"00:12:45","13:34:23","00:00:00","Red"`+"\n"+
		`$G,1,"1",0,"00:00:00.000"`)
	assert.Empty(t, c.State.StartingPositions)
}

func TestApplyMLHeartbeatFormatsRaceTime(t *testing.T) {
	c, _ := newTestContext(t)
	c.ApplyML([]multiloop.Record{multiloop.Heartbeat{
		RaceTime: 9*time.Minute + 30*time.Second,
		LapsToGo: 14,
		Flag:     model.FlagGreen,
	}})
	assert.Equal(t, "00:09:30.000", c.State.RunningRaceTime)
	assert.Equal(t, 9*time.Minute+30*time.Second, c.State.RaceTime)
	assert.Equal(t, model.FlagGreen, c.State.CurrentFlag)
}

func TestApplyMLCompletedLap(t *testing.T) {
	c, _ := newTestContext(t)
	c.ApplyML([]multiloop.Record{multiloop.CompletedLap{
		Number:        "12",
		CompletedLaps: 10,
		LastLapTime:   92 * time.Second,
		TotalTime:     16 * time.Minute,
		Position:      3,
		PitStopCount:  2,
		LastLapPitted: 9,
		LapsLed:       4,
		CurrentStatus: "Active",
		BestLapTime:   91 * time.Second,
	}})
	car := c.State.Cars["12"]
	assert.Equal(t, 10, car.LastLapCompleted)
	assert.Equal(t, 92*time.Second, car.LastLapTime)
	assert.Equal(t, 91*time.Second, car.BestLapTime)
	assert.Equal(t, 3, car.OverallPosition)
	assert.Equal(t, 2, car.PitStopCount)
	assert.Equal(t, 4, car.LapsLed)
	assert.Equal(t, "Active", car.CurrentStatus)

	// Pit counters never run backwards on replays.
	c.ApplyML([]multiloop.Record{multiloop.CompletedLap{Number: "12", CompletedLaps: 10, PitStopCount: 1}})
	assert.Equal(t, 2, c.State.Cars["12"].PitStopCount)
}

func TestApplyMLSectionsProjectLapTime(t *testing.T) {
	c, _ := newTestContext(t)
	c.ApplyML([]multiloop.Record{
		multiloop.CompletedLap{Number: "12", CompletedLaps: 5, LastLapTime: 90 * time.Second},
		multiloop.CompletedSection{Number: "12", SectionID: "S1", LastSectionTime: 40 * time.Second, LastLap: 6},
		multiloop.CompletedSection{Number: "12", SectionID: "S2", LastSectionTime: 55 * time.Second, LastLap: 6},
	})
	car := c.State.Cars["12"]
	require.Len(t, car.CompletedSections, 2)
	assert.Equal(t, int64(95_000), car.ProjectedLapTimeMS)

	// The next completed lap supersedes the running sections.
	c.ApplyML([]multiloop.Record{multiloop.CompletedLap{Number: "12", CompletedLaps: 6, LastLapTime: 94 * time.Second}})
	assert.Empty(t, c.State.Cars["12"].CompletedSections)
	assert.Zero(t, c.State.Cars["12"].ProjectedLapTimeMS)
}

func TestApplyMLInvalidatedLap(t *testing.T) {
	c, _ := newTestContext(t)
	c.ApplyML([]multiloop.Record{multiloop.CompletedLap{Number: "12", CompletedLaps: 5, LastLapTime: 90 * time.Second}})
	c.ApplyML([]multiloop.Record{multiloop.InvalidatedLap{Number: "12"}})
	assert.Equal(t, model.NoTime, c.State.Cars["12"].LastLapTime)
}

func TestApplyMLNewLeaderBumpsLeadChanges(t *testing.T) {
	c, _ := newTestContext(t)
	c.ApplyML([]multiloop.Record{multiloop.NewLeader{Number: "12", Lap: 5}})
	c.ApplyML([]multiloop.Record{multiloop.NewLeader{Number: "12", Lap: 6}})
	c.ApplyML([]multiloop.Record{multiloop.NewLeader{Number: "7", Lap: 7}})
	assert.Equal(t, "7", c.State.FlagStats.CurrentLeader)
	assert.Equal(t, 2, c.State.FlagStats.LeadChanges)
}

func TestCheckConsistencyFlagsDuplicates(t *testing.T) {
	c, _ := newTestContext(t)
	c.State.Car("1").OverallPosition = 1
	c.State.Car("1").LastLapCompleted = 2
	c.State.Car("2").OverallPosition = 1
	c.CheckConsistency()
	assert.False(t, c.State.Consistency)
}

func TestCheckConsistencyAcceptsStrictSequence(t *testing.T) {
	c, _ := newTestContext(t)
	c.State.Car("1").OverallPosition = 1
	c.State.Car("1").LastLapCompleted = 2
	c.State.Car("2").OverallPosition = 2
	c.CheckConsistency()
	assert.True(t, c.State.Consistency)
}

func TestFinalizeSealsState(t *testing.T) {
	c, clk := newTestContext(t)
	applyRM(t, c, `$F,14,"00:12:45","13:34:23","00:09:47","Green"`)
	c.State.FlagDurations = []model.FlagDuration{{Flag: model.FlagGreen, Start: clk.Now()}}

	clk.Advance(time.Minute)
	c.Finalize()
	assert.False(t, c.State.IsLive)
	require.NotNil(t, c.State.EndTime)
	require.NotNil(t, c.State.FlagDurations[0].End)
	assert.Equal(t, clk.Now(), *c.State.FlagDurations[0].End)
}
