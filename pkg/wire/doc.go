// Package wire defines the message model and CBOR envelope format for the
// SAPI sensor layer.
//
// Every outgoing sensor payload is wrapped in a two-entry CBOR map with
// integer keys: the device type at key 0 and the payload at key 1. The
// envelope is what downstream routers (for example an MQTT bridge) use to
// identify the originating sensor without inspecting the payload itself.
//
// A typical envelope: {0: "temp", 1: "23.5"}
//
// The Request and Response types model the message contexts the external
// protocol server hands to the dispatcher. The dispatcher reads the request,
// fills in the response, and never reallocates either.
package wire
