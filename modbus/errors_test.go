// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package modbus

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		code byte
		want ErrorKind
	}{
		{0x00, Unknown},
		{0x01, UnsupportedFunction},
		{0x02, InvalidAddressOrQuantity},
		{0x03, InvalidAddress},
		{0x04, InvalidDataType},
		{0x05, Unknown},
		{0x0B, Unknown},
		{0xFF, Unknown},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("code_%02X", tt.code), func(t *testing.T) {
			if got := KindOf(tt.code); got != tt.want {
				t.Errorf("KindOf(%#02x) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestExceptionError_Is(t *testing.T) {
	err := fmt.Errorf("read coils: %w", NewExceptionError(0x81, 0x02))

	if !errors.Is(err, ErrException) {
		t.Error("expected errors.Is(err, ErrException)")
	}
	if !errors.Is(err, &ExceptionError{Kind: InvalidAddressOrQuantity}) {
		t.Error("expected match on kind InvalidAddressOrQuantity")
	}
	if errors.Is(err, &ExceptionError{Kind: InvalidAddress}) {
		t.Error("unexpected match on kind InvalidAddress")
	}

	var ex *ExceptionError
	if !errors.As(err, &ex) {
		t.Fatal("errors.As failed")
	}
	if ex.FunctionCode != 0x01 {
		t.Errorf("FunctionCode = %#02x, want 0x01 (flag stripped)", ex.FunctionCode)
	}
}

func TestTransportError_Unwrap(t *testing.T) {
	err := &TransportError{Op: OpRead, Err: io.ErrUnexpectedEOF}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("TransportError does not unwrap to its cause")
	}
	if err.Error() != "modbus: transport read failed: unexpected EOF" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestChecksumError_Is(t *testing.T) {
	var err error = &ChecksumError{Expected: 0x1241, Received: 0xFFFF}
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Error("expected errors.Is(err, ErrChecksumMismatch)")
	}
	if errors.Is(err, ErrException) {
		t.Error("checksum error must not match ErrException")
	}
}

func TestCoilValue(t *testing.T) {
	if CoilValue(true) != 0xFF00 {
		t.Errorf("CoilValue(true) = %#04x", CoilValue(true))
	}
	if CoilValue(false) != 0x0000 {
		t.Errorf("CoilValue(false) = %#04x", CoilValue(false))
	}
}
