// Package observe implements the notification engine for observed sensors.
//
// Notifications have two independent triggers that share one composition
// path. The periodic trigger is driven externally once per scheduler tick:
// every observer whose polling interval has elapsed since its last
// periodic emission gets a fresh notification, in registration-table
// order. The push trigger emits immediately for a named sensor without
// disturbing the periodic phase.
//
// A composition failure for one sensor is reported and skipped; it never
// blocks notifications for the others.
package observe
