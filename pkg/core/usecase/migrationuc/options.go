// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package migrationuc

import (
	"errors"
	"time"

	"github.com/momeni/migrun/pkg/core/expr"
)

// Option represents an optional setting for the Controller.
type Option func(c *Controller) error

// WithClock replaces the wall clock which is used for the probe
// backoff and the stop wait.
func WithClock(clk Clock) Option {
	return func(c *Controller) error {
		if clk == nil {
			return errors.New("clock must not be nil")
		}
		c.clock = clk
		return nil
	}
}

// WithObserver installs o to be notified about the unit progress.
func WithObserver(o Observer) Option {
	return func(c *Controller) error {
		if o == nil {
			return errors.New("observer must not be nil")
		}
		c.observer = o
		return nil
	}
}

// WithProcess sets the captured environment and system properties
// which take part in the configuration resolution. By default, the
// environment of the current process and no system properties are
// used.
func WithProcess(p *expr.Process) Option {
	return func(c *Controller) error {
		if p == nil {
			return errors.New("process must not be nil")
		}
		c.process = p
		return nil
	}
}

// WithProbeRetry sets how many times the vendor detection probe is
// attempted and the delay between two attempts.
func WithProbeRetry(attempts int, delay time.Duration) Option {
	return func(c *Controller) error {
		if attempts < 1 {
			return errors.New("probe attempts must be positive")
		}
		if delay <= 0 {
			return errors.New("probe delay must be positive")
		}
		c.attempts, c.delay = attempts, delay
		return nil
	}
}

// WithValidityTimeout bounds the data source validity check.
func WithValidityTimeout(d time.Duration) Option {
	return func(c *Controller) error {
		if d <= 0 {
			return errors.New("validity timeout must be positive")
		}
		c.validity = d
		return nil
	}
}

// WithStopWait sets how many times Stop polls a running migration and
// the interval between two polls.
func WithStopWait(polls int, interval time.Duration) Option {
	return func(c *Controller) error {
		if polls < 0 || interval <= 0 {
			return errors.New("invalid stop wait")
		}
		c.stopPolls, c.stopInterval = polls, interval
		return nil
	}
}
