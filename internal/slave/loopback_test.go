// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package slave

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ffutop/modbus-master/modbus"
	"github.com/ffutop/modbus-master/modbus/crc"
)

func frame(b ...byte) []byte {
	sum := crc.Checksum(b)
	return append(b, byte(sum), byte(sum>>8))
}

func roundTrip(t *testing.T, l *Loopback, req []byte, flush bool) ([]byte, error) {
	t.Helper()
	for _, c := range req {
		if err := l.WriteByte(c); err != nil {
			t.Fatalf("WriteByte: %v", err)
		}
	}
	if flush {
		if err := l.Flush(); err != nil {
			t.Fatalf("Flush: %v", err)
		}
	}
	var got []byte
	for {
		c, err := l.ReadByte()
		if err != nil {
			if len(got) > 0 && errors.Is(err, ErrTimeout) {
				return got, nil
			}
			return got, err
		}
		got = append(got, c)
	}
}

func TestLoopback_Exchange(t *testing.T) {
	tests := []struct {
		name  string
		req   []byte
		want  []byte
		flush bool
	}{
		{
			name:  "read input register",
			req:   frame(0x11, 0x04, 0x00, 0x08, 0x00, 0x01),
			want:  frame(0x11, 0x04, 0x02, 0x00, 0x0A),
			flush: true,
		},
		{
			name: "read coils without flush",
			req:  frame(0x11, 0x01, 0x00, 0x13, 0x00, 0x09),
			want: frame(0x11, 0x01, 0x02, 0xCD, 0x01),
		},
		{
			name:  "exception",
			req:   frame(0x11, 0x03, 0xFF, 0xFF, 0x00, 0x02),
			want:  frame(0x11, 0x83, 0x02),
			flush: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLoopback(newTestSlave().Handle)
			got, err := roundTrip(t, l, tt.req, tt.flush)
			if err != nil {
				t.Fatalf("roundTrip: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("reply mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoopback_Silence(t *testing.T) {
	tests := []struct {
		name string
		req  []byte
	}{
		{"bad checksum", []byte{0x11, 0x04, 0x00, 0x08, 0x00, 0x01, 0x00, 0x00}},
		{"unserved slave", frame(0x05, 0x04, 0x00, 0x08, 0x00, 0x01)},
		{"broadcast", frame(0x00, 0x06, 0x00, 0x01, 0x00, 0x01)},
		{"too short", []byte{0x11, 0x04}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLoopback(newTestSlave(WithSlaveIDs(0x11)).Handle)
			if _, err := roundTrip(t, l, tt.req, true); !errors.Is(err, ErrTimeout) {
				t.Errorf("err = %v, want ErrTimeout", err)
			}
		})
	}
}

func TestLoopback_HandlerFailure(t *testing.T) {
	l := NewLoopback(func(context.Context, byte, modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
		return modbus.ProtocolDataUnit{}, errors.New("boom")
	})
	got, err := roundTrip(t, l, frame(0x01, 0x03, 0x00, 0x00, 0x00, 0x01), true)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(frame(0x01, 0x83, 0x04), got); diff != "" {
		t.Errorf("reply mismatch (-want +got):\n%s", diff)
	}
}

func TestLoopback_Tamper(t *testing.T) {
	l := NewLoopback(newTestSlave().Handle)
	l.Tamper = func(raw []byte) []byte {
		raw[len(raw)-1] ^= 0xFF
		return raw
	}
	got, err := roundTrip(t, l, frame(0x11, 0x04, 0x00, 0x08, 0x00, 0x01), true)
	if err != nil {
		t.Fatal(err)
	}
	want := frame(0x11, 0x04, 0x02, 0x00, 0x0A)
	want[len(want)-1] ^= 0xFF
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("reply mismatch (-want +got):\n%s", diff)
	}
	if l.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", l.Pending())
	}
}

func TestLoopback_DiscardsUnreadReply(t *testing.T) {
	l := NewLoopback(newTestSlave(WithSlaveIDs(0x11)).Handle)
	for _, c := range frame(0x11, 0x04, 0x00, 0x08, 0x00, 0x01) {
		l.WriteByte(c)
	}
	if err := l.Flush(); err != nil {
		t.Fatal(err)
	}
	if l.Pending() == 0 {
		t.Fatal("expected a queued reply")
	}

	if _, err := roundTrip(t, l, frame(0x05, 0x04, 0x00, 0x08, 0x00, 0x01), true); !errors.Is(err, ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout after a silent request", err)
	}
}
