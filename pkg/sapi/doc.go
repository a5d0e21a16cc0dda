// Package sapi implements the sensor request dispatcher and response
// composer.
//
// The dispatcher is the single entry point the external protocol server
// invokes for every incoming request. It resolves the URI leaf to a
// registered sensor, validates the requested operation, and routes to the
// sensor's callbacks: GET reads the value, GET ?cfg reads the
// configuration, PUT ?cfg writes it, and GET with an observe option
// registers or deregisters an observer. Responses are always well-formed;
// a failure inside a sensor callback produces a protocol error response,
// never a crash or a partially written buffer.
//
// Response bodies are built by the Composer, which wraps the sensor
// payload in the wire envelope before handing the buffer back.
package sapi
