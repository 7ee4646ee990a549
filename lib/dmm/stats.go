// Copyright (c) 2020–2024 The bench developers. All rights reserved.
// Project site: https://github.com/gotmc/bench
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package dmm

import (
	"context"
	"time"

	"golang.org/x/time/rate"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/gotmc/bench/lib/scpi"
)

// DefaultSampleInterval is the pause between readings taken by Statistics.
const DefaultSampleInterval = 100 * time.Millisecond

// Stats summarizes a series of readings.
type Stats struct {
	Mean    float64
	StdDev  float64 // sample standard deviation; 0 for a single reading
	Min     float64
	Max     float64
	Range   float64
	Samples []float64
}

// Summarize computes Stats over xs. An empty series yields the zero Stats.
func Summarize(xs []float64) Stats {
	s := Stats{Samples: xs}
	if len(xs) == 0 {
		return s
	}
	s.Mean = stat.Mean(xs, nil)
	if len(xs) > 1 {
		s.StdDev = stat.StdDev(xs, nil)
	}
	s.Min = floats.Min(xs)
	s.Max = floats.Max(xs)
	s.Range = s.Max - s.Min
	return s
}

type statsConfig struct {
	interval time.Duration
}

// StatsOption configures Statistics.
type StatsOption func(*statsConfig)

// WithSampleInterval sets the pause between consecutive readings.
func WithSampleInterval(d time.Duration) StatsOption {
	return func(c *statsConfig) { c.interval = d }
}

// Statistics takes n readings in the present configuration, one READ? at a
// time with a fixed pause between them, and summarizes them. It stops at the
// first failed reading.
func (m *Agilent34401A) Statistics(n int, opts ...StatsOption) (Stats, error) {
	if n < 1 {
		return Stats{}, &scpi.InvalidArgumentError{Name: "sample count", Value: n, Reason: "must be at least 1"}
	}
	cfg := statsConfig{interval: DefaultSampleInterval}
	for _, opt := range opts {
		opt(&cfg)
	}
	limit := rate.Inf
	if cfg.interval > 0 {
		limit = rate.Every(cfg.interval)
	}
	lim := rate.NewLimiter(limit, 1)
	ctx := context.Background()

	xs := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if err := lim.Wait(ctx); err != nil {
			return Stats{}, err
		}
		v, err := m.ReadValue()
		if err != nil {
			return Stats{}, err
		}
		m.Logger().WithField("sample", i+1).WithField("value", v).Debug("reading")
		xs = append(xs, v)
	}
	return Summarize(xs), nil
}

// MeasureStatistics configures fn, then collects n readings with Statistics.
// DC volts use 10 PLC integration.
func (m *Agilent34401A) MeasureStatistics(fn Function, n int, opts ...StatsOption) (Stats, error) {
	if n < 1 {
		return Stats{}, &scpi.InvalidArgumentError{Name: "sample count", Value: n, Reason: "must be at least 1"}
	}
	if err := m.Send("CONF:%s", fn); err != nil {
		return Stats{}, err
	}
	if fn == VoltageDC {
		if err := m.SetNPLC(VoltageDC, 10); err != nil {
			return Stats{}, err
		}
	}
	return m.Statistics(n, opts...)
}
