package rmonitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridpulse/gridpulse/internal/timing/model"
)

func TestParseLineHeartbeat(t *testing.T) {
	rec, err := ParseLine(`$F,14,"00:12:45","13:34:23","00:09:47","Green"`)
	require.NoError(t, err)
	hb, ok := rec.(Heartbeat)
	require.True(t, ok)
	assert.Equal(t, 14, hb.LapsToGo)
	assert.Equal(t, "00:12:45", hb.TimeToGo)
	assert.Equal(t, "13:34:23", hb.TimeOfDay)
	assert.Equal(t, "00:09:47", hb.RaceTime)
	assert.Equal(t, model.FlagGreen, hb.Flag)
}

func TestParseLineRegistration(t *testing.T) {
	rec, err := ParseLine(`$A,"1234BE","12",52474,"John","Johnson","USA",5`)
	require.NoError(t, err)
	comp, ok := rec.(Competitor)
	require.True(t, ok)
	assert.Equal(t, "1234BE", comp.RegNo)
	assert.Equal(t, "12", comp.Number)
	assert.Equal(t, uint32(52474), comp.Transponder)
	assert.Equal(t, "John", comp.FirstName)
	assert.Equal(t, "Johnson", comp.LastName)
	assert.Equal(t, 5, comp.ClassNumber)
}

func TestParseLineCompetitorCarriesTeam(t *testing.T) {
	rec, err := ParseLine(`$COMP,"1234BE","12",5,"John","Johnson","USA","Garage 61"`)
	require.NoError(t, err)
	comp, ok := rec.(Competitor)
	require.True(t, ok)
	assert.Equal(t, "Garage 61", comp.Team)
	assert.Equal(t, 5, comp.ClassNumber)
	assert.Zero(t, comp.Transponder)
}

func TestParseLineRaceInfo(t *testing.T) {
	rec, err := ParseLine(`$G,3,"12",14,"00:24:01.125"`)
	require.NoError(t, err)
	g, ok := rec.(RaceInfo)
	require.True(t, ok)
	assert.Equal(t, 3, g.Position)
	assert.Equal(t, "12", g.Number)
	assert.Equal(t, 14, g.Laps)
	assert.Equal(t, "00:24:01.125", g.TotalTime)
}

func TestParseLineUnknownPrefix(t *testing.T) {
	_, err := ParseLine("$Z,1,2,3")
	assert.ErrorIs(t, err, ErrUnknownRecord)
}

func TestParseLineQuotedComma(t *testing.T) {
	rec, err := ParseLine(`$E,"TRACKNAME","Circuit, The Long One"`)
	require.NoError(t, err)
	s, ok := rec.(Setting)
	require.True(t, ok)
	assert.Equal(t, "Circuit, The Long One", s.Value)
}

func TestParseBatchSkipsBadLines(t *testing.T) {
	data := "$B,5,\"Main Race\"\r\n$Z,bogus\n\n$F,9999,\"00:00:00\",\"12:00:00\",\"00:00:00\",\"Red\"\n"
	records := ParseBatch(data)
	require.Len(t, records, 2)
	assert.IsType(t, RunInfo{}, records[0])
	assert.IsType(t, Heartbeat{}, records[1])
}

func TestParseBatchMalformedNumbersDefaultToZero(t *testing.T) {
	records := ParseBatch(`$G,xx,"12",yy,"00:01:00"`)
	require.Len(t, records, 1)
	g := records[0].(RaceInfo)
	assert.Zero(t, g.Position)
	assert.Zero(t, g.Laps)
}

func TestContainsRebuild(t *testing.T) {
	full := ParseBatch("$I,\"12:00:00\",\"24 Aug 26\"\n" +
		`$A,"1","1",111,"A","Driver","USA",1` + "\n" +
		`$G,1,"1",10,"00:10:00"` + "\n" +
		`$H,1,"1",4,"00:01:00"`)
	assert.True(t, ContainsRebuild(full))

	standalone := ParseBatch(`$I,"12:00:00","24 Aug 26"`)
	assert.False(t, ContainsRebuild(standalone))

	partial := ParseBatch("$I,\"12:00:00\",\"24 Aug 26\"\n" +
		`$A,"1","1",111,"A","Driver","USA",1`)
	assert.False(t, ContainsRebuild(partial))
}
