// Package protocol implements the binary wire protocol spoken between the
// frp bridge server and its remote clients.
//
// Clients push values into named inputs of a graph; the server streams back
// the values emitted by named outputs. Values are JSON documents carried in
// length-prefixed fields, so any client that can produce JSON can drive a
// graph without knowing its Go types.
//
// # Wire Format
//
// All messages are framed with a 4-byte header:
//
//	┌─────────────┬──────────────┬───────────────────────────────┐
//	│ Frame Type  │ Flags        │ Payload Length                │
//	│ (1 byte)    │ (1 byte)     │ (2 bytes, big-endian)         │
//	└─────────────┴──────────────┴───────────────────────────────┘
//
// # Frame Types
//
//   - FrameHello (0x00): Server greeting listing inputs and outputs
//   - FrameInput (0x01): Client → Server value for a named input
//   - FrameOutput (0x02): Server → Client value emitted by a named output
//   - FrameControl (0x03): Control messages (ping, pong, close)
//   - FrameAck (0x04): Server acknowledgment of applied inputs
//   - FrameError (0x05): Error message
//
// # Encoding
//
//   - Varint: sequence numbers and lengths (protobuf-style)
//   - Length-prefixed: strings and JSON values prefixed with varint length
//   - Big-endian: fixed-width integers
//
// Example input encoding:
//
//	[Seq: varint][Target: len-prefixed string][Value: len-prefixed JSON]
package protocol
