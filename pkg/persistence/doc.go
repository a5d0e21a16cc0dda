// Package persistence stores accepted sensor configurations in a JSON
// state file so they survive restarts.
//
// The device binary saves the last configuration each sensor accepted via
// a configuration write and replays them through the write-config
// callbacks at boot, before the dispatcher starts serving requests.
package persistence
