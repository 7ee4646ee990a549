// Copyright (c) 2020–2024 The bench developers. All rights reserved.
// Project site: https://github.com/gotmc/bench
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package scpi

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts instrument traffic. A nil *Metrics records nothing.
type Metrics struct {
	Commands *prometheus.CounterVec
	Errors   *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg, if reg is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bench_instrument_commands_total",
				Help: "Commands written to instruments.",
			},
			[]string{"resource", "kind"},
		),
		Errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bench_instrument_errors_total",
				Help: "Failed instrument commands and queries.",
			},
			[]string{"resource", "kind"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bench_instrument_round_trip_seconds",
				Help:    "Time spent per instrument command or query.",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
			},
			[]string{"resource", "kind"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Commands, m.Errors, m.Duration)
	}
	return m
}

func (m *Metrics) observe(resource, kind string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.Commands.WithLabelValues(resource, kind).Inc()
	m.Duration.WithLabelValues(resource, kind).Observe(time.Since(start).Seconds())
	if err != nil {
		m.Errors.WithLabelValues(resource, kind).Inc()
	}
}
