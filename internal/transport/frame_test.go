package transport

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestEncodeFrameAndReadFrameRoundTrip(t *testing.T) {
	payload := []byte("hello from the other side")
	raw, err := EncodeFrame(FrameTypeText, payload)
	if err != nil {
		t.Fatalf("encode frame: %v", err)
	}
	if len(raw) != frameHeaderBytes+len(payload) {
		t.Fatalf("frame length mismatch: got %d want %d", len(raw), frameHeaderBytes+len(payload))
	}

	got, err := ReadFrame(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if got.Type != FrameTypeText {
		t.Fatalf("frame type mismatch: got 0x%02X want 0x%02X", got.Type, FrameTypeText)
	}
	if !bytes.Equal(got.Payload, payload) {
		t.Fatalf("payload mismatch: got %q want %q", string(got.Payload), string(payload))
	}
}

func TestEncodeFrameHeaderLayout(t *testing.T) {
	payload := []byte{0xAA, 0xBB, 0xCC}
	raw, err := EncodeFrame(FrameTypeText, payload)
	if err != nil {
		t.Fatalf("encode frame: %v", err)
	}

	want := []byte{0x01, 0x00, 0x00, 0x00, 0x03, 0xAA, 0xBB, 0xCC}
	if !bytes.Equal(raw, want) {
		t.Fatalf("frame bytes mismatch: got %x want %x", raw, want)
	}
}

func TestEncodeFramePayloadTooLarge(t *testing.T) {
	payload := make([]byte, MaxPayloadBytes+1)
	raw, err := EncodeFrame(FrameTypeText, payload)
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
	if raw != nil {
		t.Fatalf("expected no frame bytes on oversize payload, got %d bytes", len(raw))
	}
}

func TestEncodeFrameMaxPayloadAllowed(t *testing.T) {
	payload := make([]byte, MaxPayloadBytes)
	raw, err := EncodeFrame(FrameTypeText, payload)
	if err != nil {
		t.Fatalf("encode frame at limit: %v", err)
	}
	if len(raw) != frameHeaderBytes+MaxPayloadBytes {
		t.Fatalf("frame length mismatch: got %d want %d", len(raw), frameHeaderBytes+MaxPayloadBytes)
	}
}

func TestEncodeTextRejectsInvalidUTF8(t *testing.T) {
	_, err := EncodeText(string([]byte{0xFF, 0xFE}))
	if !errors.Is(err, ErrTextNotUTF8) {
		t.Fatalf("expected ErrTextNotUTF8, got %v", err)
	}
}

func TestReadFrameUnknownType(t *testing.T) {
	raw := bytes.NewReader([]byte{0x02, 0x00, 0x00, 0x00, 0x01, 0x41})

	_, err := ReadFrame(raw)
	if !errors.Is(err, ErrUnknownFrameType) {
		t.Fatalf("expected ErrUnknownFrameType, got %v", err)
	}
	if !IsProtocolError(err) {
		t.Fatalf("expected protocol error classification for %v", err)
	}
	if got, want := raw.Len(), 5; got != want {
		t.Fatalf("reader consumed past the type byte: %d bytes left, want %d", got, want)
	}
}

func TestReadFrameDeclaredLengthTooLarge(t *testing.T) {
	for _, declared := range []uint32{MaxPayloadBytes + 1, 0xFFFFFFFF} {
		raw := make([]byte, frameHeaderBytes)
		raw[0] = FrameTypeText
		binary.BigEndian.PutUint32(raw[1:], declared)

		_, err := ReadFrame(bytes.NewReader(raw))
		if !errors.Is(err, ErrFrameTooLarge) {
			t.Fatalf("declared=%d: expected ErrFrameTooLarge, got %v", declared, err)
		}
		if !IsProtocolError(err) {
			t.Fatalf("declared=%d: expected protocol error classification", declared)
		}
	}
}

func TestReadFrameEmptyStream(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader(nil))
	if !errors.Is(err, ErrPeerClosed) {
		t.Fatalf("expected ErrPeerClosed, got %v", err)
	}
}

func TestReadFrameTruncatedLength(t *testing.T) {
	raw := bytes.NewReader([]byte{FrameTypeText, 0x00, 0x00})

	_, err := ReadFrame(raw)
	if !errors.Is(err, ErrPeerClosed) {
		t.Fatalf("expected ErrPeerClosed, got %v", err)
	}
}

func TestReadFrameTruncatedPayload(t *testing.T) {
	raw := bytes.NewReader([]byte{FrameTypeText, 0x00, 0x00, 0x00, 0x04, 0x01, 0x02})

	_, err := ReadFrame(raw)
	if !errors.Is(err, ErrPeerClosed) {
		t.Fatalf("expected ErrPeerClosed, got %v", err)
	}
	if IsProtocolError(err) {
		t.Fatalf("truncated payload must not classify as protocol error")
	}
}

func TestReadFrameZeroLengthPayload(t *testing.T) {
	raw := bytes.NewReader([]byte{FrameTypeText, 0x00, 0x00, 0x00, 0x00})

	got, err := ReadFrame(raw)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if len(got.Payload) != 0 {
		t.Fatalf("expected empty payload, got %d bytes", len(got.Payload))
	}
}

func TestReadFrameSequentialFrames(t *testing.T) {
	var stream bytes.Buffer
	texts := []string{"first", "second", "третий"}
	for _, text := range texts {
		raw, err := EncodeText(text)
		if err != nil {
			t.Fatalf("encode %q: %v", text, err)
		}
		stream.Write(raw)
	}

	for i, want := range texts {
		got, err := ReadFrame(&stream)
		if err != nil {
			t.Fatalf("read frame %d: %v", i, err)
		}
		if string(got.Payload) != want {
			t.Fatalf("frame %d mismatch: got %q want %q", i, string(got.Payload), want)
		}
	}

	if _, err := ReadFrame(&stream); !errors.Is(err, ErrPeerClosed) {
		t.Fatalf("expected ErrPeerClosed after last frame, got %v", err)
	}
}
