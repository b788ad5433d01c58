// Package motorlink implements the UART protocol spoken by motor controller
// boards and turns it into per-link telemetry.
package motorlink

// A motor controller talks over a plain UART byte pipe. Two protocol
// variants exist in the field:
//
//   legacy: handshake "AT+PASS=29688781" answered with "+PASS=ONNDONKE".
//           The controller sends a batch of frames after each data
//           request and expects a new request afterwards. Frames carry a
//           16-bit sum of bytes [0, 14), big-endian.
//   modern: handshake "AT+VERSION" answered with an 8-byte request.
//           Frames are free-running and carry CRC-16 (poly 0x8005,
//           reflected, init 0x7F3C), little-endian.
//
// All data frames are 16 bytes starting with 0xAA; the top bit of the
// second byte tells the variants apart (clear: legacy, set: modern), the
// low 7 bits are the function id selecting the payload layout.
//
// Producer: motor controller
// Consumer: Manager, which hands decoded Telemetry to publishers.
