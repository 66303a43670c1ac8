package report

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HughODwyer90/hugh.casa/contentsync"
	"github.com/HughODwyer90/hugh.casa/updater"
)

func fixedClock() func() time.Time {
	t := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func TestLogKeepsOrder(t *testing.T) {
	l := newLog("backup", fixedClock())
	l.Upload(contentsync.Result{Path: "community/entities.html", Status: contentsync.StatusSucceeded, Attempts: 1})
	l.Upload(contentsync.Result{Path: "community/secrets.yaml", Status: contentsync.StatusFailed, Attempts: 3, Err: errors.New("HTTP 503")})
	l.Upload(contentsync.Result{Path: "community/empty.yaml", Status: contentsync.StatusSkipped, Reason: "no content"})
	l.Update(updater.Result{EntityID: "update.bulb", Outcome: updater.OutcomeCompleted, Polls: 4})
	l.Update(updater.Result{EntityID: "update.plug", Outcome: updater.OutcomeTimedOut, Polls: 60, Err: errors.New("still on")})
	l.Fail(KindFetch, "/api/states", errors.New("connection refused"))
	l.Finish()

	lines := l.Lines()
	require.Len(t, lines, 6)
	assert.Contains(t, lines[0], "upload succeeded community/entities.html")
	assert.Contains(t, lines[1], "failed    community/secrets.yaml (3 attempts): HTTP 503")
	assert.Contains(t, lines[2], "skipped   community/empty.yaml: no content")
	assert.Contains(t, lines[3], "update.bulb: 4 poll(s)")
	assert.Contains(t, lines[4], "timed out update.plug")
	assert.Contains(t, lines[5], "fetch  failed    /api/states: connection refused")

	assert.True(t, l.Failed())
	assert.Equal(t, 2, l.Count(OutcomeSucceeded))

	var buf bytes.Buffer
	_, err := l.WriteTo(&buf)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(buf.String(), "2 succeeded, 1 skipped, 2 failed, 1 timed out\n"))

	s := l.Summary()
	assert.Equal(t, l.ID, s.ID)
	assert.Len(t, s.Entries, 6)
	assert.False(t, s.Finished.IsZero())
}

func TestStore(t *testing.T) {
	s, err := NewStore(time.Hour)
	require.NoError(t, err)
	defer s.Close()

	clock := fixedClock()
	first := newLog("backup", clock)
	second := newLog("update", clock)
	require.NoError(t, s.Put(first))
	require.NoError(t, s.Put(second))

	got, ok := s.Get(first.ID)
	require.True(t, ok)
	assert.Same(t, first, got)
	_, ok = s.Get("nope")
	assert.False(t, ok)

	list := s.List()
	require.Len(t, list, 2)
	assert.Same(t, second, list[0])
}
