// Package alerts is the external alert-delivery collaborator (spec §1):
// the join coordinator calls it at one point, when a CIB sync fails with
// an error other than OldData; no other failure raises an alert. Alert
// routing/delivery internals are out of scope.
/*
 * Copyright (c) 2026, crmjoind contributors. All rights reserved.
 */
package alerts

import "github.com/golang/glog"

// Sink receives DC-scoped fatal-for-round notices.
type Sink interface {
	Notify(severity Severity, summary string)
}

type Severity int

const (
	SeverityWarning Severity = iota
	SeverityCritical
)

// GlogSink is the default Sink: it just logs, the same way the teacher
// falls back to glog when no external alerting is wired up.
type GlogSink struct{}

func (GlogSink) Notify(severity Severity, summary string) {
	if severity == SeverityCritical {
		glog.Errorf("alert: %s", summary)
	} else {
		glog.Warningf("alert: %s", summary)
	}
}
