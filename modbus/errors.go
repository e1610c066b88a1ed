// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package modbus

import (
	"errors"
	"fmt"
)

var (
	// ErrException matches any *ExceptionError with errors.Is.
	ErrException = errors.New("modbus: exception response")
	// ErrChecksumMismatch matches any *ChecksumError with errors.Is.
	ErrChecksumMismatch = errors.New("modbus: checksum mismatch")
	// ErrInvalidQuantity is returned for a zero quantity or one above the protocol ceiling.
	ErrInvalidQuantity = errors.New("modbus: invalid quantity")
)

// ErrorKind classifies an exception response.
type ErrorKind int

const (
	UnsupportedFunction ErrorKind = iota + 1
	InvalidAddressOrQuantity
	InvalidAddress
	InvalidDataType
	Unknown
)

func (k ErrorKind) String() string {
	switch k {
	case UnsupportedFunction:
		return "unsupported function"
	case InvalidAddressOrQuantity:
		return "invalid address or quantity"
	case InvalidAddress:
		return "invalid address"
	case InvalidDataType:
		return "invalid data type"
	default:
		return "unknown"
	}
}

// KindOf maps an exception code byte to its ErrorKind. It never fails.
func KindOf(code byte) ErrorKind {
	switch code {
	case 1:
		return UnsupportedFunction
	case 2:
		return InvalidAddressOrQuantity
	case 3:
		return InvalidAddress
	case 4:
		return InvalidDataType
	default:
		return Unknown
	}
}

// ExceptionError is returned when the slave answers with an exception response.
type ExceptionError struct {
	FunctionCode  byte
	ExceptionCode byte
	Kind          ErrorKind
}

// NewExceptionError builds the error for an exception code received for functionCode.
func NewExceptionError(functionCode, code byte) *ExceptionError {
	return &ExceptionError{
		FunctionCode:  functionCode &^ ExceptionFlag,
		ExceptionCode: code,
		Kind:          KindOf(code),
	}
}

func (e *ExceptionError) Error() string {
	return fmt.Sprintf("modbus: exception '%v' (%s), function '%v'", e.ExceptionCode, e.Kind, e.FunctionCode)
}

// Is matches ErrException and any *ExceptionError of the same kind.
func (e *ExceptionError) Is(target error) bool {
	if target == ErrException {
		return true
	}
	t, ok := target.(*ExceptionError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Op names the transport direction that failed.
type Op string

const (
	OpRead  Op = "read"
	OpWrite Op = "write"
)

// TransportError wraps a failure of the byte transport.
type TransportError struct {
	Op  Op
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("modbus: transport %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ChecksumError is returned when the received CRC does not match the frame.
type ChecksumError struct {
	Expected uint16
	Received uint16
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("modbus: response crc '%#04x' does not match expected '%#04x'", e.Received, e.Expected)
}

func (e *ChecksumError) Is(target error) bool {
	return target == ErrChecksumMismatch
}

// FrameError reports a reply header that does not belong to the request.
type FrameError struct {
	Field    string
	Expected byte
	Received byte
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("modbus: response %s '%v' does not match expected '%v'", e.Field, e.Received, e.Expected)
}
