// Package transport implements HDLC framing for the serial link between
// the host and the NIC module.
//
// Frames are delimited by the 0x7E flag byte; flag and escape bytes inside
// the payload are byte-stuffed with 0x7D and XOR 0x20. Each frame carries a
// 16-bit CCITT frame check sequence, transmitted little-endian after the
// payload. Payloads are limited to 255 bytes, the largest the NIC module
// accepts.
package transport
