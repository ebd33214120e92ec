package protocol

// This package implements parsing and serialising of frames for the
// Texecom "Connect" protocol that Argus uses to communicate with the
// panel's ComIP/SmartCom module.
//
// The panel exposes exactly one TCP session. While connected, it pushes a
// continuous stream of framed binary messages and answers command frames
// that we send.
//
// === Frame layout
//
// Every frame looks like this:
//
//   ```
//   't' <type> <length> <sequence> <body...> <crc>
//   ```
//
// - `'t'` is the fixed start delimiter.
// - `<type>` is one of 'C' (command, client to panel), 'R' (response,
//   panel to client, answering a command) or 'M' (unsolicited message,
//   panel to client).
// - `<length>` is a single byte holding the total frame length, counting
//   the four header bytes, the body, and the trailing CRC. This caps a
//   frame at 255 bytes.
// - `<sequence>` is a single byte. For 'C'/'R' frames it correlates a
//   response with the command that caused it. For 'M' frames the panel
//   keeps its own incrementing counter, wrapping at 256.
// - `<body>` starts with the command code ('C'/'R') or the message type
//   ('M'), followed by parameters or payload.
// - `<crc>` is a CRC-8 computed over every preceding byte of the frame,
//   header included. See crc.go for the parameters.
//
// === Command / response exchange
//
//   ```
//   > 't' 'C' 0x07 <seq> 0x01 '1' '2' <crc>     login, password "12"
//   < 't' 'R' 0x07 <seq> 0x01 0x06 <crc>        login, ACK
//   ```
//
// The response carries the same sequence byte and echoes the command code
// as the first body byte. A single-byte payload of 0x06 (ACK) or 0x15
// (NAK) is used by commands that have no data to return.
//
// The panel answers at most one command at a time and unsolicited 'M'
// frames can interleave with a response at any point.
//
// === Hangup marker
//
// When the panel forcibly drops the session (inactivity, alarm condition,
// or a login sent before the module settled) it emits the literal bytes
// `+++` (occasionally `+++A`) in place of a frame and closes the
// connection. Decode reports this as ErrRemoteHangup so the session can
// surface a panel-forced drop rather than a mere read error.
