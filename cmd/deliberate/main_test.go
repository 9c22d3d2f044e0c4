package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-registrar/deliberation/internal/application/command"
)

func TestParseFlags(t *testing.T) {
	year, program := uuid.New(), uuid.New()

	opts, err := parseFlags([]string{"-year", year.String(), "-program", program.String(), "-workers", "6", "-json"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, year, opts.yearID)
	require.NotNil(t, opts.programID)
	assert.Equal(t, program, *opts.programID)
	assert.Nil(t, opts.levelID)
	assert.Nil(t, opts.studentID)
	assert.Equal(t, 6, opts.workers)
	assert.True(t, opts.jsonOutput)
}

func TestParseFlags_TrimsAndSkipsEmptyIDs(t *testing.T) {
	year, level := uuid.New(), uuid.New()

	opts, err := parseFlags([]string{"-year", " " + year.String() + " ", "-level", level.String() + "\n", "-program", "  "}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, year, opts.yearID)
	require.NotNil(t, opts.levelID)
	assert.Equal(t, level, *opts.levelID)
	assert.Nil(t, opts.programID)
}

func TestParseFlags_Errors(t *testing.T) {
	year := uuid.New().String()
	for name, args := range map[string][]string{
		"missing year": {},
		"bad year":     {"-year", "2025"},
		"bad level":    {"-year", year, "-level", "L2"},
		"negative":     {"-year", year, "-workers", "-1"},
		"extra args":   {"-year", year, "now"},
		"unknown flag": {"-year", year, "-force"},
		"bad student":  {"-year", year, "-student", "x"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := parseFlags(args, io.Discard)
			assert.Error(t, err)
		})
	}
}

func sampleReport() *command.CohortReport {
	return &command.CohortReport{
		RunID:          "2f7d4c1a-run",
		AcademicYearID: uuid.MustParse("6f1c2b8e-3d4a-4f5b-9c6d-7e8f9a0b1c2d"),
		Duration:       1500 * time.Millisecond,
		Total:          5,
		Promoted:       3,
		Completed:      1,
		Repeated:       1,
		Failed:         1,
		Failures: []command.StudentFailure{
			{StudentID: uuid.MustParse("0b8e7f6a-5d4c-4b3a-8e2f-1a0b9c8d7e6f"), Kind: command.FailureData, Err: errors.New("student has no program")},
		},
	}
}

func TestWriteReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, sampleReport()))

	out := buf.String()
	assert.Contains(t, out, "6f1c2b8e-3d4a-4f5b-9c6d-7e8f9a0b1c2d")
	assert.Contains(t, out, "promoted")
	assert.Contains(t, out, "0b8e7f6a-5d4c-4b3a-8e2f-1a0b9c8d7e6f")
	assert.Contains(t, out, "student has no program")
	assert.Contains(t, out, "2f7d4c1a-run")
	assert.Regexp(t, `succeeded\s+4`, out)
	assert.Regexp(t, `0b8e7f6a-5d4c-4b3a-8e2f-1a0b9c8d7e6f\s+data\s+student has no program`, out)
	assert.NotContains(t, out, "skipped")
}

func TestReportView_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, reportView(sampleReport())))

	var got cohortReportView
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, 5, got.Total)
	assert.Equal(t, "1.5s", got.Duration)
	require.Len(t, got.Failures, 1)
	assert.Equal(t, "student has no program", got.Failures[0].Error)
	assert.Equal(t, "data", got.Failures[0].Kind)
	assert.Equal(t, "2f7d4c1a-run", got.RunID)
}
