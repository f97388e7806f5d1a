// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package goulink

import (
	"github.com/sirupsen/logrus"
)

var (
	logger *logrus.Logger = nil
)

const MaxLogLevel = logrus.TraceLevel

func init() {
	logger = logrus.New()
}

// SetLogger lets a host application redirect driver logging into its own
// logrus instance instead of the package default.
func SetLogger(loggerInstance *logrus.Logger) {
	logger = loggerInstance
}
