// Package cmn provides common low-level types and utilities shared by the
// join coordinator and its collaborators.
/*
 * Copyright (c) 2026, crmjoind contributors. All rights reserved.
 */
package cmn

import "fmt"

// Assert panics if cond is false. Reserved for internal invariants that must
// never fire in production; untrusted wire input is never validated this
// way - see the peer-scoped nack path in package join instead.
func Assert(cond bool) {
	if !cond {
		panic("assertion failed")
	}
}

// AssertMsg panics with msg if cond is false.
func AssertMsg(cond bool, msg string) {
	if !cond {
		panic(msg)
	}
}

// AssertMsgf panics with a formatted message if cond is false.
func AssertMsgf(cond bool, format string, a ...interface{}) {
	if !cond {
		panic(fmt.Sprintf(format, a...))
	}
}

// AssertNoErr panics if err is non-nil. Used for errors that indicate a
// broken internal contract (e.g. marshaling a value we built ourselves),
// never for errors that can originate from a peer or the network.
func AssertNoErr(err error) {
	if err != nil {
		panic("unexpected error: " + err.Error())
	}
}
