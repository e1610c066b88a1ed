// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ffutop/modbus-master/modbus"
	"github.com/ffutop/modbus-master/modbus/buffer"
	"github.com/ffutop/modbus-master/modbus/crc"
)

// withCRC returns frame followed by its checksum, low byte first.
func withCRC(frame ...byte) []byte {
	sum := crc.Checksum(frame)
	return append(frame, byte(sum), byte(sum>>8))
}

func newBuffer() *buffer.Buffer {
	return buffer.New(make([]byte, MaxSize))
}

func TestByteCounts(t *testing.T) {
	for q := 1; q <= modbus.MaxReadCoils; q++ {
		want := (q + 7) / 8
		if got := CoilByteCount(uint16(q)); got != want {
			t.Fatalf("CoilByteCount(%d) = %d, want %d", q, got, want)
		}
	}
	for q := 1; q <= modbus.MaxReadRegisters; q++ {
		if got := RegisterByteCount(uint16(q)); got != 2*q {
			t.Fatalf("RegisterByteCount(%d) = %d, want %d", q, got, 2*q)
		}
	}
	if got := CoilByteCount(1); got != 1 {
		t.Errorf("a single coil must round up to one byte, got %d", got)
	}
}

func TestEncodeGoldenFrames(t *testing.T) {
	tests := []struct {
		name   string
		encode func(buf *buffer.Buffer) error
		want   []byte
	}{
		{
			name: "ReadCoils",
			encode: func(buf *buffer.Buffer) error {
				return EncodeReadCoils(buf, 0x11, 0x0013, 10)
			},
			want: []byte{0x11, 0x01, 0x00, 0x13, 0x00, 0x0A, 0x4F, 0x58},
		},
		{
			name: "WriteSingleCoilOn",
			encode: func(buf *buffer.Buffer) error {
				return EncodeWriteSingleCoil(buf, 0x11, 0x00AC, true)
			},
			want: []byte{0x11, 0x05, 0x00, 0xAC, 0xFF, 0x00, 0x4E, 0x8B},
		},
		{
			name: "WriteSingleCoilOff",
			encode: func(buf *buffer.Buffer) error {
				return EncodeWriteSingleCoil(buf, 0x11, 0x00AC, false)
			},
			want: []byte{0x11, 0x05, 0x00, 0xAC, 0x00, 0x00, 0x0F, 0x7B},
		},
		{
			name: "ReadHoldingRegisters",
			encode: func(buf *buffer.Buffer) error {
				return EncodeReadRegisters(buf, 0x01, modbus.FuncCodeReadHoldingRegisters, 0x0000, 1)
			},
			want: []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x01, 0x84, 0x0A},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := newBuffer()
			if err := tt.encode(buf); err != nil {
				t.Fatalf("encode failed: %v", err)
			}
			if err := AppendChecksum(buf); err != nil {
				t.Fatalf("AppendChecksum failed: %v", err)
			}
			if diff := cmp.Diff(tt.want, buf.Written()); diff != "" {
				t.Errorf("frame mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEncodeReadRegisters(t *testing.T) {
	buf := newBuffer()
	if err := EncodeReadRegisters(buf, 0x11, modbus.FuncCodeReadRegisters, 0x006B, 3); err != nil {
		t.Fatal(err)
	}
	want := []byte{0x11, 0x04, 0x00, 0x6B, 0x00, 0x03}
	if diff := cmp.Diff(want, buf.Written()); diff != "" {
		t.Errorf("frame mismatch (-want +got):\n%s", diff)
	}

	if err := EncodeReadRegisters(buf, 0x11, modbus.FuncCodeReadCoils, 0, 1); err == nil {
		t.Error("expected error for non register function code")
	}
}

func TestEncodeWriteSingleRegister(t *testing.T) {
	buf := newBuffer()
	if err := EncodeWriteSingleRegister(buf, 0x11, 0x0001, 0x0003); err != nil {
		t.Fatal(err)
	}
	want := []byte{0x11, 0x06, 0x00, 0x01, 0x00, 0x03}
	if diff := cmp.Diff(want, buf.Written()); diff != "" {
		t.Errorf("frame mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeWriteMultipleCoils(t *testing.T) {
	buf := newBuffer()
	values := []bool{true, false, true, true, false, false, true, true, true}
	if err := EncodeWriteMultipleCoils(buf, 0x11, 0x0013, values); err != nil {
		t.Fatal(err)
	}

	// Quantity and byte count must precede the packed bits.
	want := []byte{0x11, 0x0F, 0x00, 0x13, 0x00, 0x09, 0x02, 0b11001101, 0b00000001}
	if diff := cmp.Diff(want, buf.Written()); diff != "" {
		t.Errorf("frame mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeWriteMultipleRegisters(t *testing.T) {
	buf := newBuffer()
	if err := EncodeWriteMultipleRegisters(buf, 0x11, 0x0001, []uint16{0x000A, 0x0102}); err != nil {
		t.Fatal(err)
	}

	want := []byte{0x11, 0x10, 0x00, 0x01, 0x00, 0x02, 0x04, 0x00, 0x0A, 0x01, 0x02}
	if diff := cmp.Diff(want, buf.Written()); diff != "" {
		t.Errorf("frame mismatch (-want +got):\n%s", diff)
	}
	if got := buf.Written()[6]; int(got) != 2*int(buf.Written()[5]) {
		t.Errorf("byte count %d is not twice the quantity", got)
	}
}

func TestEncodeWriteMultiple_InvalidQuantity(t *testing.T) {
	buf := newBuffer()
	if err := EncodeWriteMultipleCoils(buf, 1, 0, nil); !errors.Is(err, modbus.ErrInvalidQuantity) {
		t.Errorf("no coils: err = %v, want ErrInvalidQuantity", err)
	}
	if err := EncodeWriteMultipleRegisters(buf, 1, 0, nil); !errors.Is(err, modbus.ErrInvalidQuantity) {
		t.Errorf("no registers: err = %v, want ErrInvalidQuantity", err)
	}
	if err := EncodeWriteMultipleRegisters(buf, 1, 0, make([]uint16, 128)); !errors.Is(err, modbus.ErrInvalidQuantity) {
		t.Errorf("128 registers: err = %v, want ErrInvalidQuantity", err)
	}
	if err := EncodeWriteMultipleCoils(buf, 1, 0, make([]bool, 2041)); !errors.Is(err, modbus.ErrInvalidQuantity) {
		t.Errorf("2041 coils: err = %v, want ErrInvalidQuantity", err)
	}
}

func TestPackCoils(t *testing.T) {
	tests := []struct {
		name   string
		values []bool
		want   []byte
	}{
		{"Empty", nil, []byte{0x00}},
		{"One", []bool{true}, []byte{0x01}},
		{"EightExact", []bool{true, true, true, true, true, true, true, true}, []byte{0xFF}},
		{"Nine", []bool{true, false, true, true, false, false, true, true, true}, []byte{0xCD, 0x01}},
		{"PaddedLast", []bool{false, false, false, false, false, false, false, false, false, true}, []byte{0x00, 0x02}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := newBuffer()
			if err := PackCoils(buf, tt.values); err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, buf.Written()); diff != "" {
				t.Errorf("packed mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEncode_Exhausted(t *testing.T) {
	buf := buffer.New(make([]byte, 6))
	if err := EncodeReadCoils(buf, 1, 0, 1); err != nil {
		t.Fatalf("six byte request must fit: %v", err)
	}
	if err := AppendChecksum(buf); !errors.Is(err, buffer.ErrExhausted) {
		t.Errorf("AppendChecksum = %v, want ErrExhausted", err)
	}
	if buf.Len() != 6 {
		t.Errorf("failed checksum append changed length to %d", buf.Len())
	}

	small := buffer.New(make([]byte, 8))
	err := EncodeWriteMultipleRegisters(small, 1, 0, []uint16{1, 2})
	if !errors.Is(err, buffer.ErrExhausted) {
		t.Errorf("EncodeWriteMultipleRegisters = %v, want ErrExhausted", err)
	}
}

func TestEncode_FixedExhaustedLeavesBufferEmpty(t *testing.T) {
	for size := 0; size < HeaderSize+4; size++ {
		buf := buffer.New(make([]byte, size))
		if err := EncodeWriteSingleRegister(buf, 1, 0x0010, 0xBEEF); !errors.Is(err, buffer.ErrExhausted) {
			t.Errorf("size %d: err = %v, want ErrExhausted", size, err)
		}
		if buf.Len() != 0 {
			t.Errorf("size %d: partial frame %X", size, buf.Written())
		}
	}
}

func TestADU_EncodeFrame(t *testing.T) {
	adu := &ApplicationDataUnit{
		SlaveID: 0x11,
		Pdu:     modbus.ProtocolDataUnit{FunctionCode: 0x06, Data: []byte{0x00, 0x01, 0x00, 0x03}},
	}
	got, err := adu.Encode()
	if err != nil {
		t.Fatal(err)
	}
	want := withCRC(0x11, 0x06, 0x00, 0x01, 0x00, 0x03)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("frame mismatch (-want +got):\n%s", diff)
	}
}

func BenchmarkEncodeWriteMultipleCoils(b *testing.B) {
	buf := newBuffer()
	values := make([]bool, modbus.MaxWriteCoils)
	for i := range values {
		values[i] = i%3 == 0
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := EncodeWriteMultipleCoils(buf, 1, 0, values); err != nil {
			b.Fatal(err)
		}
		if err := AppendChecksum(buf); err != nil {
			b.Fatal(err)
		}
	}
}
