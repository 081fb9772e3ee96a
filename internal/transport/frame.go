package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// Wire format: one type byte, a 4-byte big-endian unsigned payload length,
// then the payload. Text is the only defined frame type.
const (
	FrameTypeText byte = 0x01

	// MaxPayloadBytes caps a single frame payload. Enforced on both sides:
	// by the sender before any bytes are written and by the receiver after
	// the length field, before the payload buffer is allocated.
	MaxPayloadBytes = 1 << 20

	frameHeaderBytes = 5
)

var (
	// ErrPayloadTooLarge indicates an outgoing payload over MaxPayloadBytes.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrFrameTooLarge indicates an incoming frame whose declared length
	// exceeds MaxPayloadBytes.
	ErrFrameTooLarge = errors.New("frame too large")

	// ErrUnknownFrameType indicates a frame with an undefined type byte.
	ErrUnknownFrameType = errors.New("unknown frame type")

	// ErrTextNotUTF8 indicates outgoing text that is not valid UTF-8.
	ErrTextNotUTF8 = errors.New("text is not valid utf-8")

	// ErrPeerClosed indicates the stream ended before a complete frame was
	// read: orderly peer shutdown, not a network failure.
	ErrPeerClosed = errors.New("peer closed the stream")
)

// Frame is one decoded wire message.
type Frame struct {
	Type    byte
	Payload []byte
}

func EncodeFrame(frameType byte, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}

	frame := make([]byte, frameHeaderBytes+len(payload))
	frame[0] = frameType
	// #nosec G115 -- length is bounded by MaxPayloadBytes above.
	binary.BigEndian.PutUint32(frame[1:frameHeaderBytes], uint32(len(payload)))
	copy(frame[frameHeaderBytes:], payload)

	return frame, nil
}

// EncodeText builds a text frame from s.
func EncodeText(s string) ([]byte, error) {
	if !utf8.ValidString(s) {
		return nil, ErrTextNotUTF8
	}

	return EncodeFrame(FrameTypeText, []byte(s))
}

// ReadFrame reads exactly one frame from r. The type byte is validated before
// the length field is consumed, and the declared length is validated before
// the payload buffer is allocated.
func ReadFrame(r io.Reader) (Frame, error) {
	var typeBuf [1]byte
	if _, err := io.ReadFull(r, typeBuf[:]); err != nil {
		return Frame{}, readError("frame type", err)
	}
	frameType := typeBuf[0]
	if frameType != FrameTypeText {
		return Frame{}, fmt.Errorf("%w: 0x%02X", ErrUnknownFrameType, frameType)
	}

	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Frame{}, readError("frame length", err)
	}
	ln := binary.BigEndian.Uint32(lenBuf[:])
	if ln > MaxPayloadBytes {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, ln)
	}

	payload := make([]byte, int(ln))
	if _, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, readError("frame payload", err)
	}

	return Frame{Type: frameType, Payload: payload}, nil
}

// IsProtocolError reports whether err is a framing violation that is fatal to
// the session, as opposed to an I/O failure or an orderly close.
func IsProtocolError(err error) bool {
	return errors.Is(err, ErrUnknownFrameType) || errors.Is(err, ErrFrameTooLarge)
}

func readError(stage string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrPeerClosed
	}

	return fmt.Errorf("read %s: %w", stage, err)
}
