package wsconn

import (
	"bufio"
	"bytes"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

// Outcome is the result of one handshake attempt.
type Outcome int

const (
	Incomplete Outcome = iota
	Complete
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	default:
		return "incomplete"
	}
}

const websocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// DefaultMaxHeaderBytes bounds the size of an upgrade request.
const DefaultMaxHeaderBytes = 8 << 10

var headerEnd = []byte("\r\n\r\n")

// handshake accumulates an upgrade request across reads.
type handshake struct {
	buf      []byte
	maxBytes int

	accept   string
	leftover []byte
	reason   string
	status   int
}

func newHandshake(maxBytes int) *handshake {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxHeaderBytes
	}
	return &handshake{maxBytes: maxBytes}
}

// feed adds newly read bytes and attempts to finish the handshake.
func (h *handshake) feed(data []byte) Outcome {
	h.buf = append(h.buf, data...)
	end := bytes.Index(h.buf, headerEnd)
	if end < 0 {
		if len(h.buf) > h.maxBytes {
			return h.fail(http.StatusBadRequest, "request header too large")
		}
		return Incomplete
	}
	end += len(headerEnd)
	if end > h.maxBytes {
		return h.fail(http.StatusBadRequest, "request header too large")
	}

	req, err := http.ReadRequest(bufio.NewReader(bytes.NewReader(h.buf[:end])))
	if err != nil {
		return h.fail(http.StatusBadRequest, "malformed request")
	}
	key, status, reason := checkUpgrade(req)
	if status != 0 {
		return h.fail(status, reason)
	}

	h.accept = AcceptKey(key)
	h.leftover = append([]byte(nil), h.buf[end:]...)
	h.buf = nil
	return Complete
}

func (h *handshake) fail(status int, reason string) Outcome {
	h.status, h.reason = status, reason
	h.buf = nil
	return Failed
}

// checkUpgrade validates an upgrade request and returns the client key, or a
// non-zero HTTP status and reason on failure.
func checkUpgrade(req *http.Request) (key string, status int, reason string) {
	if req.Method != http.MethodGet {
		return "", http.StatusBadRequest, "method must be GET"
	}
	if !req.ProtoAtLeast(1, 1) {
		return "", http.StatusBadRequest, "HTTP/1.1 required"
	}
	if !headerHasToken(req.Header, "Connection", "upgrade") {
		return "", http.StatusBadRequest, "missing Connection: upgrade"
	}
	if !headerHasToken(req.Header, "Upgrade", "websocket") {
		return "", http.StatusBadRequest, "missing Upgrade: websocket"
	}
	if req.Header.Get("Sec-WebSocket-Version") != "13" {
		return "", http.StatusUpgradeRequired, "unsupported websocket version"
	}
	key = strings.TrimSpace(req.Header.Get("Sec-WebSocket-Key"))
	raw, err := base64.StdEncoding.DecodeString(key)
	if err != nil || len(raw) != 16 {
		return "", http.StatusBadRequest, "invalid Sec-WebSocket-Key"
	}
	return key, 0, ""
}

func headerHasToken(h http.Header, name, token string) bool {
	for _, v := range h.Values(name) {
		for _, part := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(part), token) {
				return true
			}
		}
	}
	return false
}

// AcceptKey computes Sec-WebSocket-Accept for a client key.
func AcceptKey(key string) string {
	sum := sha1.Sum([]byte(key + websocketGUID))
	return base64.StdEncoding.EncodeToString(sum[:])
}

func switchingProtocols(accept string) []byte {
	return []byte("HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + accept + "\r\n\r\n")
}

func errorResponse(status int, reason string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "HTTP/1.1 %d %s\r\n", status, http.StatusText(status))
	if status == http.StatusUpgradeRequired {
		b.WriteString("Sec-WebSocket-Version: 13\r\n")
	}
	fmt.Fprintf(&b, "Connection: close\r\nContent-Type: text/plain; charset=utf-8\r\nContent-Length: %d\r\n\r\n%s", len(reason), reason)
	return []byte(b.String())
}
