// Package crontask implements a single recurring HTTP job: a target URL,
// a human-readable interval ("every 10 minutes") and a timeout.
//
// The interval is parsed once, at construction. Each tick issues one GET
// to the URL, reads the response to completion and logs it. A failing
// tick is logged and swallowed so the owning timer keeps firing.
//
// Changing the URL with SetURL never changes the period.
package crontask
