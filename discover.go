// Copyright (c) 2020–2024 The bench developers. All rights reserved.
// Project site: https://github.com/gotmc/bench
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package bench

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/gotmc/bench/lib/awg"
	"github.com/gotmc/bench/lib/dmm"
	"github.com/gotmc/bench/lib/psu"
	"github.com/gotmc/bench/lib/scope"
	"github.com/gotmc/bench/lib/scpi"
)

// ResourceManager enumerates instrument resources and opens them.
type ResourceManager interface {
	ListResources(ctx context.Context) ([]string, error)
	Open(ctx context.Context, resource string) (scpi.Transport, error)
}

type config struct {
	rules   []Rule
	devOpts []scpi.Option
	log     logrus.FieldLogger
}

// Option configures discovery.
type Option func(*config)

// WithRules replaces DefaultRules.
func WithRules(rules []Rule) Option {
	return func(c *config) { c.rules = rules }
}

// WithDeviceOptions passes opts to every driver constructed.
func WithDeviceOptions(opts ...scpi.Option) Option {
	return func(c *config) { c.devOpts = append(c.devOpts, opts...) }
}

// WithLogger sets the logger for discovery and for every driver.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *config) {
		c.log = l
		c.devOpts = append(c.devOpts, scpi.WithLogger(l))
	}
}

func newConfig(opts []Option) *config {
	c := &config{rules: DefaultRules, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Discover opens every resource rm lists and dispatches it to a driver. The
// result is keyed by resource name. A resource that cannot be opened or
// identified is skipped and any handle opened for it is closed; the skipped
// failures are aggregated into the returned error. The map is valid even
// when the error is not nil. Cancelling ctx stops further resources from
// being tried.
func Discover(ctx context.Context, rm ResourceManager, opts ...Option) (map[string]scpi.Instrument, error) {
	cfg := newConfig(opts)
	names, err := rm.ListResources(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing resources")
	}
	found := make(map[string]scpi.Instrument, len(names))
	var errs error
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}
		log := cfg.log.WithField("resource", name)
		inst, err := openOne(ctx, rm, name, cfg)
		if err != nil {
			log.WithError(err).Warn("skipping resource")
			errs = multierr.Append(errs, errors.Wrapf(err, "resource %s", name))
			continue
		}
		log.WithField("driver", driverName(inst)).Info("instrument found")
		found[name] = inst
	}
	return found, errs
}

func openOne(ctx context.Context, rm ResourceManager, name string, cfg *config) (scpi.Instrument, error) {
	t, err := rm.Open(ctx, name)
	if err != nil {
		if t != nil {
			scpi.CloseQuietly(t, cfg.log)
		}
		return nil, err
	}
	inst, err := dispatch(cfg.rules, t, cfg.devOpts)
	if err != nil {
		scpi.CloseQuietly(t, cfg.log)
		return nil, err
	}
	return inst, nil
}

func driverName(inst scpi.Instrument) string {
	switch inst.(type) {
	case *psu.E363x:
		return "psu"
	case *dmm.Agilent34401A:
		return "dmm"
	case *awg.BK4050:
		return "awg"
	case *scope.Tektronix:
		return "scope"
	}
	return fmt.Sprintf("%T", inst)
}
