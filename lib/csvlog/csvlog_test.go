// Copyright (c) 2020–2024 The bench developers. All rights reserved.
// Project site: https://github.com/gotmc/bench
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package csvlog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotmc/bench/lib/scpi"
)

func read(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestHeaderOnlyOnNewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.csv")
	l, err := New(path, "time", "vout", "note")
	require.NoError(t, err)

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, l.WriteRow(map[string]any{"time": ts, "vout": 4.998, "note": "ok, stable"}))
	require.NoError(t, l.WriteRow(map[string]any{"vout": scpi.Reading{}}))

	want := "time,vout,note\n" +
		"2024-03-01T12:00:00Z,4.998,\"ok, stable\"\n" +
		",,\n"
	assert.Equal(t, want, read(t, path))

	// A second logger on the same file appends without a new header.
	l2, err := New(path, "time", "vout", "note")
	require.NoError(t, err)
	require.NoError(t, l2.WriteRow(map[string]any{"vout": scpi.NewReading(1.5, "CH1"), "note": 3}))
	assert.Equal(t, want+",1.5,3\n", read(t, path))
}

func TestUnknownColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.csv")
	l, err := New(path, "vout")
	require.NoError(t, err)
	assert.Error(t, l.WriteRow(map[string]any{"iout": 0.1}))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestNewRejectsColumns(t *testing.T) {
	_, err := New("x.csv")
	assert.Error(t, err)
	_, err = New("x.csv", "a", "a")
	assert.Error(t, err)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "0.25", format(250*time.Millisecond))
	assert.Equal(t, "", format(scpi.NewReading(9.91e37, "")))
	assert.Equal(t, "true", format(true))
}
