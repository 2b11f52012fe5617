package wsconn

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// Opcodes (RFC 6455 section 5.2).
const (
	opContinuation byte = 0x0
	opText         byte = 0x1
	opBinary       byte = 0x2
	opClose        byte = 0x8
	opPing         byte = 0x9
	opPong         byte = 0xA
)

// Close status codes.
const (
	CloseNormal          = 1000
	CloseGoingAway       = 1001
	CloseProtocolError   = 1002
	CloseUnsupportedData = 1003
	CloseNoStatus        = 1005
	CloseInvalidPayload  = 1007
	CloseMessageTooBig   = 1009
	CloseInternalError   = 1011
)

// maxControlPayload is the largest payload a control frame may carry.
const maxControlPayload = 125

// frameError is a fatal framing violation; the connection is closed with Code.
type frameError struct {
	Code   int
	Reason string
}

func (e *frameError) Error() string { return fmt.Sprintf("websocket: %s (%d)", e.Reason, e.Code) }

func protocolErr(format string, args ...any) *frameError {
	return &frameError{Code: CloseProtocolError, Reason: fmt.Sprintf(format, args...)}
}

// event is one decoded unit: a complete data message or a control frame.
type event struct {
	op      byte
	payload []byte
}

// frameReader reassembles client frames from a byte stream that arrives in
// arbitrary chunks.
type frameReader struct {
	buf        []byte
	maxMessage int

	fragOp byte
	frag   []byte
	inFrag bool
}

func newFrameReader(maxMessage int) *frameReader {
	return &frameReader{maxMessage: maxMessage}
}

func (r *frameReader) feed(data []byte) {
	r.buf = append(r.buf, data...)
}

// next decodes the next complete event. ok is false when more bytes are
// needed. A non-nil error is fatal for the connection.
func (r *frameReader) next() (ev event, ok bool, err error) {
	for {
		fin, op, payload, n, ferr := parseFrame(r.buf, r.maxMessage)
		if ferr != nil {
			return event{}, false, ferr
		}
		if n == 0 {
			return event{}, false, nil
		}
		r.consume(n)

		if op >= opClose {
			if op != opClose && op != opPing && op != opPong {
				return event{}, false, protocolErr("unknown control opcode %#x", op)
			}
			if op == opClose {
				if err := validateClose(payload); err != nil {
					return event{}, false, err
				}
			}
			return event{op: op, payload: payload}, true, nil
		}

		switch op {
		case opText, opBinary:
			if r.inFrag {
				return event{}, false, protocolErr("new message before previous fragment finished")
			}
			if fin {
				return r.complete(op, payload)
			}
			r.inFrag, r.fragOp, r.frag = true, op, append([]byte(nil), payload...)
		case opContinuation:
			if !r.inFrag {
				return event{}, false, protocolErr("continuation without a message")
			}
			if r.maxMessage > 0 && len(r.frag)+len(payload) > r.maxMessage {
				return event{}, false, &frameError{Code: CloseMessageTooBig, Reason: "message too big"}
			}
			r.frag = append(r.frag, payload...)
			if fin {
				msg, mop := r.frag, r.fragOp
				r.inFrag, r.frag = false, nil
				return r.complete(mop, msg)
			}
		default:
			return event{}, false, protocolErr("unknown data opcode %#x", op)
		}
	}
}

func (r *frameReader) complete(op byte, payload []byte) (event, bool, error) {
	if op == opText && !utf8.Valid(payload) {
		return event{}, false, &frameError{Code: CloseInvalidPayload, Reason: "text message is not valid UTF-8"}
	}
	return event{op: op, payload: payload}, true, nil
}

func (r *frameReader) consume(n int) {
	rest := copy(r.buf, r.buf[n:])
	r.buf = r.buf[:rest]
}

// parseFrame decodes one frame from the front of buf. n is the number of
// bytes consumed, zero when buf holds only part of a frame.
func parseFrame(buf []byte, maxMessage int) (fin bool, op byte, payload []byte, n int, err error) {
	if len(buf) < 2 {
		return false, 0, nil, 0, nil
	}
	b0, b1 := buf[0], buf[1]
	fin = b0&0x80 != 0
	if b0&0x70 != 0 {
		return false, 0, nil, 0, protocolErr("reserved bits set")
	}
	op = b0 & 0x0f
	if b1&0x80 == 0 {
		return false, 0, nil, 0, protocolErr("client frame is not masked")
	}

	length := uint64(b1 & 0x7f)
	pos := 2
	switch length {
	case 126:
		if len(buf) < pos+2 {
			return false, 0, nil, 0, nil
		}
		length = uint64(binary.BigEndian.Uint16(buf[pos:]))
		pos += 2
	case 127:
		if len(buf) < pos+8 {
			return false, 0, nil, 0, nil
		}
		length = binary.BigEndian.Uint64(buf[pos:])
		if length>>63 != 0 {
			return false, 0, nil, 0, protocolErr("invalid payload length")
		}
		pos += 8
	}

	if op >= opClose {
		if !fin {
			return false, 0, nil, 0, protocolErr("fragmented control frame")
		}
		if length > maxControlPayload {
			return false, 0, nil, 0, protocolErr("control frame too long")
		}
	} else if maxMessage > 0 && length > uint64(maxMessage) {
		return false, 0, nil, 0, &frameError{Code: CloseMessageTooBig, Reason: "message too big"}
	}

	if len(buf) < pos+4 {
		return false, 0, nil, 0, nil
	}
	var mask [4]byte
	copy(mask[:], buf[pos:pos+4])
	pos += 4

	if uint64(len(buf)-pos) < length {
		return false, 0, nil, 0, nil
	}
	end := pos + int(length)
	payload = make([]byte, length)
	for i := range payload {
		payload[i] = buf[pos+i] ^ mask[i&3]
	}
	return fin, op, payload, end, nil
}

func validateClose(payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	if len(payload) == 1 {
		return protocolErr("close payload too short")
	}
	code := int(binary.BigEndian.Uint16(payload))
	if !validCloseCode(code) {
		return protocolErr("invalid close code %d", code)
	}
	if !utf8.Valid(payload[2:]) {
		return &frameError{Code: CloseInvalidPayload, Reason: "close reason is not valid UTF-8"}
	}
	return nil
}

func validCloseCode(code int) bool {
	switch {
	case code >= 1000 && code <= 1003, code >= 1007 && code <= 1011:
		return true
	case code >= 3000 && code <= 4999:
		return true
	}
	return false
}

// closeCode extracts the status code from a close payload.
func closeCode(payload []byte) int {
	if len(payload) < 2 {
		return CloseNoStatus
	}
	return int(binary.BigEndian.Uint16(payload))
}

// appendFrame encodes an unmasked server frame.
func appendFrame(dst []byte, op byte, payload []byte) []byte {
	dst = append(dst, 0x80|op)
	switch n := len(payload); {
	case n <= 125:
		dst = append(dst, byte(n))
	case n <= 0xffff:
		dst = append(dst, 126, byte(n>>8), byte(n))
	default:
		dst = append(dst, 127)
		dst = binary.BigEndian.AppendUint64(dst, uint64(n))
	}
	return append(dst, payload...)
}

func closePayload(code int, reason string) []byte {
	if code == CloseNoStatus {
		return nil
	}
	if len(reason) > maxControlPayload-2 {
		reason = reason[:maxControlPayload-2]
	}
	p := binary.BigEndian.AppendUint16(nil, uint16(code))
	return append(p, reason...)
}
