// Package protocol implements the GeniRCON wire format: little-endian
// length-prefixed frames derived from Source RCON, plus the JSON payload
// the server returns for logger polls.
//
// One response is exactly one frame. Servers that split a large reply
// across several frames are not supported; the extra frames would be read
// as replies to later requests.
package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var (
	ErrBodyTooLarge   = errors.New("packet body too large to encode")
	ErrTruncatedFrame = errors.New("connection closed mid-frame")
	ErrMalformedFrame = errors.New("malformed frame")
)

// Packet is one decoded frame. ID is the request-kind tag, Type the
// message kind.
type Packet struct {
	ID   int32
	Type int32
	Body string
}

func (p *Packet) String() string {
	return fmt.Sprintf("packet{id=%d(%s) type=%d len=%d}", p.ID, KindName(p.ID), p.Type, len(p.Body))
}

// Encode builds the wire frame for a packet.
func Encode(id, typ int32, body string) ([]byte, error) {
	if uint64(len(body)) > MaxBodyLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrBodyTooLarge, len(body))
	}
	size := HeaderLen + len(body) + TrailerLen
	buf := make([]byte, SizeFieldLen+size)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(size))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(id))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(typ))
	copy(buf[12:], body)
	// trailing two bytes are already zero
	return buf, nil
}

// WritePacket encodes p and writes it in a single Write call.
func WritePacket(w io.Writer, p *Packet) error {
	frame, err := Encode(p.ID, p.Type, p.Body)
	if err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadPacket reads exactly one frame from r.
//
// A peer that closes before the declared bytes arrive yields
// ErrTruncatedFrame. A size below the header length or above MaxFrameSize
// yields ErrMalformedFrame. Other read errors are wrapped unchanged so a
// deadline expiry can still be detected with errors.As.
func ReadPacket(r io.Reader) (*Packet, error) {
	var sizeBuf [SizeFieldLen]byte
	if _, err := io.ReadFull(r, sizeBuf[:]); err != nil {
		return nil, readErr("size", err)
	}
	size := binary.LittleEndian.Uint32(sizeBuf[:])
	if size < HeaderLen || size > MaxFrameSize {
		return nil, fmt.Errorf("%w: declared size %d", ErrMalformedFrame, size)
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, readErr("body", err)
	}

	return &Packet{
		ID:   int32(binary.LittleEndian.Uint32(buf[0:4])),
		Type: int32(binary.LittleEndian.Uint32(buf[4:8])),
		Body: string(bytes.TrimRight(buf[HeaderLen:], "\x00")),
	}, nil
}

func readErr(part string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: reading %s: %w", ErrTruncatedFrame, part, err)
	}
	return fmt.Errorf("read frame %s: %w", part, err)
}
