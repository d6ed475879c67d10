package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"
)

// ── Encode ───────────────────────────────────────────────────────────

func TestEncode_Layout(t *testing.T) {
	frame, err := Encode(IDCommand, TypeExecCommand, "list")
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{
		14, 0, 0, 0, // size = 8 + 4 + 2
		6, 0, 0, 0, // id
		2, 0, 0, 0, // type
		'l', 'i', 's', 't',
		0, 0,
	}
	if !bytes.Equal(frame, want) {
		t.Errorf("frame = %v, want %v", frame, want)
	}
}

func TestEncode_SizeInvariant(t *testing.T) {
	for _, body := range []string{"", "a", "3", strings.Repeat("x", 4096)} {
		frame, err := Encode(IDLogger, TypeLogger, body)
		if err != nil {
			t.Fatal(err)
		}
		size := binary.LittleEndian.Uint32(frame[:4])
		if int(size) != HeaderLen+len(body)+TrailerLen {
			t.Errorf("body len %d: size = %d", len(body), size)
		}
		if len(frame) != SizeFieldLen+int(size) {
			t.Errorf("body len %d: frame len = %d", len(body), len(frame))
		}
	}
}

func TestEncode_NegativeID(t *testing.T) {
	frame, err := Encode(-1, TypeAuthResponse, "")
	if err != nil {
		t.Fatal(err)
	}
	p, err := ReadPacket(bytes.NewReader(frame))
	if err != nil {
		t.Fatal(err)
	}
	if p.ID != -1 {
		t.Errorf("id = %d, want -1", p.ID)
	}
}

// ── Round trip ───────────────────────────────────────────────────────

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		pkt  Packet
	}{
		{"auth", Packet{ID: IDAuthorize, Type: TypeAuth, Body: "secret"}},
		{"protocol", Packet{ID: IDProtocolCheck, Type: TypeProtocol, Body: "3"}},
		{"empty logger", Packet{ID: IDLogger, Type: TypeLogger, Body: ""}},
		{"command", Packet{ID: IDCommand, Type: TypeExecCommand, Body: "say hello world"}},
		{"utf8", Packet{ID: IDCommand, Type: TypeResponseValue, Body: "§aGrün|INFO|ok"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WritePacket(&buf, &tt.pkt); err != nil {
				t.Fatal(err)
			}
			got, err := ReadPacket(&buf)
			if err != nil {
				t.Fatal(err)
			}
			if *got != tt.pkt {
				t.Errorf("got %+v, want %+v", *got, tt.pkt)
			}
			if buf.Len() != 0 {
				t.Errorf("%d bytes left unread", buf.Len())
			}
		})
	}
}

func TestReadPacket_Sequential(t *testing.T) {
	var buf bytes.Buffer
	for i := int32(0); i < 3; i++ {
		if err := WritePacket(&buf, &Packet{ID: i, Type: TypeResponseValue, Body: "r"}); err != nil {
			t.Fatal(err)
		}
	}
	for i := int32(0); i < 3; i++ {
		p, err := ReadPacket(&buf)
		if err != nil {
			t.Fatal(err)
		}
		if p.ID != i {
			t.Errorf("packet %d: id = %d", i, p.ID)
		}
	}
}

// ── Decode errors ────────────────────────────────────────────────────

func TestReadPacket_Truncated(t *testing.T) {
	frame, _ := Encode(IDCommand, TypeResponseValue, "hello")
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"partial size", frame[:2]},
		{"header only", frame[:SizeFieldLen]},
		{"partial body", frame[:len(frame)-3]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadPacket(bytes.NewReader(tt.data))
			if !errors.Is(err, ErrTruncatedFrame) {
				t.Errorf("err = %v, want ErrTruncatedFrame", err)
			}
		})
	}
}

func TestReadPacket_Malformed(t *testing.T) {
	for _, size := range []uint32{0, 7, MaxFrameSize + 1} {
		var hdr [4]byte
		binary.LittleEndian.PutUint32(hdr[:], size)
		_, err := ReadPacket(bytes.NewReader(hdr[:]))
		if !errors.Is(err, ErrMalformedFrame) {
			t.Errorf("size %d: err = %v, want ErrMalformedFrame", size, err)
		}
	}
}

func TestReadPacket_MinimalFrame(t *testing.T) {
	// size 8: id and type, no body and no trailer
	data := []byte{8, 0, 0, 0, 5, 0, 0, 0, 2, 0, 0, 0}
	p, err := ReadPacket(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if p.ID != IDAuthorize || p.Type != TypeAuthResponse || p.Body != "" {
		t.Errorf("got %+v", p)
	}
}

func TestReadPacket_TimeoutPreserved(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	client.SetReadDeadline(time.Now().Add(20 * time.Millisecond)) //nolint:errcheck
	_, err := ReadPacket(client)
	if err == nil {
		t.Fatal("expected error")
	}
	var ne net.Error
	if !errors.As(err, &ne) || !ne.Timeout() {
		t.Errorf("err = %v, want net timeout", err)
	}
	if errors.Is(err, ErrTruncatedFrame) {
		t.Error("timeout must not be reported as truncation")
	}
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestWritePacket_Error(t *testing.T) {
	err := WritePacket(failWriter{}, &Packet{ID: IDCommand, Type: TypeExecCommand, Body: "x"})
	if !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("err = %v", err)
	}
}

// ── Benchmarks ───────────────────────────────────────────────────────

func BenchmarkEncode(b *testing.B) {
	body := strings.Repeat("x", 256)
	b.SetBytes(int64(len(body)))
	for i := 0; i < b.N; i++ {
		if _, err := Encode(IDCommand, TypeExecCommand, body); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkReadPacket(b *testing.B) {
	frame, _ := Encode(IDLogger, TypeResponseValue, strings.Repeat("y", 1024))
	r := bytes.NewReader(frame)
	b.SetBytes(int64(len(frame)))
	for i := 0; i < b.N; i++ {
		r.Reset(frame)
		if _, err := ReadPacket(r); err != nil {
			b.Fatal(err)
		}
	}
}
