// Copyright (c) 2020–2024 The bench developers. All rights reserved.
// Project site: https://github.com/gotmc/bench
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package csvlog appends measurement rows to a CSV file, writing the header
// only when the file is new.
package csvlog

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/gotmc/bench/lib/scpi"
)

// Logger appends rows with a fixed set of columns to one file. The file is
// opened for each row, so a Logger holds no handle and needs no Close.
type Logger struct {
	path   string
	fields []string
	index  map[string]int
	exists bool
}

// New returns a logger for path with the given columns.
func New(path string, fields ...string) (*Logger, error) {
	if len(fields) == 0 {
		return nil, &scpi.InvalidArgumentError{Name: "fields", Value: fields, Reason: "need at least one column"}
	}
	index := make(map[string]int, len(fields))
	for i, f := range fields {
		if _, dup := index[f]; dup {
			return nil, &scpi.InvalidArgumentError{Name: "field", Value: f, Reason: "duplicate column"}
		}
		index[f] = i
	}
	_, err := os.Stat(path)
	return &Logger{path: path, fields: fields, index: index, exists: err == nil}, nil
}

// Path returns the file rows are appended to.
func (l *Logger) Path() string { return l.path }

// Fields returns the columns.
func (l *Logger) Fields() []string { return l.fields }

// WriteRow appends one row. Missing columns are left empty; a key that is
// not a column is an error and nothing is written.
func (l *Logger) WriteRow(row map[string]any) error {
	record := make([]string, len(l.fields))
	for k, v := range row {
		i, ok := l.index[k]
		if !ok {
			return errors.Errorf("%s: unknown column %q", l.path, k)
		}
		record[i] = format(v)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "opening csv log")
	}
	w := csv.NewWriter(f)
	if !l.exists {
		if err := w.Write(l.fields); err != nil {
			f.Close()
			return errors.Wrap(err, "writing csv header")
		}
	}
	if err := w.Write(record); err != nil {
		f.Close()
		return errors.Wrap(err, "writing csv row")
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return errors.Wrap(err, "writing csv row")
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "closing csv log")
	}
	l.exists = true
	return nil
}

func format(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case scpi.Reading:
		if !v.Valid {
			return ""
		}
		return strconv.FormatFloat(v.Value, 'g', -1, 64)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case time.Duration:
		return strconv.FormatFloat(v.Seconds(), 'g', -1, 64)
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprint(v)
}
