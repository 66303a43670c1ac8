package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HughODwyer90/hugh.casa/contentsync"
	"github.com/HughODwyer90/hugh.casa/report"
	"github.com/HughODwyer90/hugh.casa/updater"
)

func TestFinishPrintsReport(t *testing.T) {
	color.NoColor = true
	log := report.New("update")
	log.Update(updater.Result{EntityID: "update.bulb", Outcome: updater.OutcomeCompleted, Polls: 3})
	log.Update(updater.Result{EntityID: "update.plug", Outcome: updater.OutcomeSkipped, Reason: `state "off"`})

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	require.NoError(t, finish(cmd, log))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "update succeeded update.bulb: 3 poll(s)")
	assert.Contains(t, lines[1], `update skipped   update.plug: state "off"`)
	assert.Equal(t, log.Tally(), lines[2])
	assert.Contains(t, lines[2], "1 succeeded, 1 skipped, 0 failed, 0 timed out")
}

func TestFinishFailsOnFailedItems(t *testing.T) {
	color.NoColor = true
	log := report.New("upload")
	log.Upload(contentsync.Result{Path: "community/a.yaml", Status: contentsync.StatusFailed, Attempts: 3, Err: errors.New("HTTP 502")})

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	assert.ErrorIs(t, finish(cmd, log), errItemsFailed)
	assert.Contains(t, out.String(), "community/a.yaml (3 attempts): HTTP 502")
}
