// Package bridge publishes sensor notifications to an MQTT broker.
//
// The envelope's device-type tag exists for exactly this kind of
// northbound routing: each notification is published verbatim to
// <prefix>/<deviceType>, so subscribers filter by device type without
// decoding the CBOR body.
package bridge
