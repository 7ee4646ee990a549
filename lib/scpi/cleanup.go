// Copyright (c) 2020–2024 The bench developers. All rights reserved.
// Project site: https://github.com/gotmc/bench
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package scpi

import (
	"io"

	"github.com/sirupsen/logrus"
)

// CloseQuietly closes c and logs, rather than returns, any failure. It is
// meant for teardown paths only, where a close error must not replace the
// error that caused the teardown.
func CloseQuietly(c io.Closer, log logrus.FieldLogger) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		if log == nil {
			log = logrus.StandardLogger()
		}
		log.WithError(err).Warn("best-effort close failed")
	}
}

// Use runs fn and closes c on every exit path, including a panic in fn.
// A close failure is returned only when fn succeeded; otherwise it is logged
// and fn's error is returned.
func Use[T io.Closer](c T, fn func(T) error) (err error) {
	done := false
	defer func() {
		if !done {
			CloseQuietly(c, nil)
		}
	}()
	err = fn(c)
	done = true
	if cerr := c.Close(); cerr != nil {
		if err == nil {
			return cerr
		}
		logrus.WithError(cerr).Warn("close after failure")
	}
	return err
}
