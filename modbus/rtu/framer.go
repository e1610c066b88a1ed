// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"fmt"
	"io"

	"github.com/ffutop/modbus-master/modbus"
	"github.com/ffutop/modbus-master/modbus/buffer"
	"github.com/ffutop/modbus-master/modbus/crc"
)

const (
	stateSlaveID = 1 << iota
	stateFunctionCode
	stateException
	stateReadLength
	stateReadPayload
	stateCRC
	stateComplete
)

type InvalidLengthError struct {
	Length   byte
	Expected int
}

func (e *InvalidLengthError) Error() string {
	return fmt.Sprintf("invalid length received: %d, expected %d", e.Length, e.Expected)
}

// ExpectedResponseLength returns the length of a normal response ADU
// (checksum included) to a request with the given function code and quantity.
// It returns 0 for function codes the decoder does not handle.
func ExpectedResponseLength(functionCode byte, quantity uint16) int {
	length := MinSize
	switch functionCode {
	case modbus.FuncCodeReadDiscreteInputs,
		modbus.FuncCodeReadCoils:
		length += 1 + CoilByteCount(quantity)
	case modbus.FuncCodeReadInputRegisters,
		modbus.FuncCodeReadHoldingRegisters:
		length += 1 + RegisterByteCount(quantity)
	case modbus.FuncCodeWriteSingleCoil,
		modbus.FuncCodeWriteMultipleCoils,
		modbus.FuncCodeWriteSingleRegister,
		modbus.FuncCodeWriteMultipleRegisters:
		length += 4
	default:
		return 0
	}
	return length
}

// CalculateRequestLength returns the expected total length of the Request RTU ADU based on the header.
func CalculateRequestLength(funcCode byte, header []byte) (int, error) {
	switch funcCode {
	case modbus.FuncCodeReadCoils,
		modbus.FuncCodeReadDiscreteInputs,
		modbus.FuncCodeReadHoldingRegisters,
		modbus.FuncCodeReadInputRegisters,
		modbus.FuncCodeWriteSingleCoil,
		modbus.FuncCodeWriteSingleRegister:
		// Fixed 8 bytes: [SlaveID, Func, Addr(2), Val(2), CRC(2)]
		return 8, nil
	case modbus.FuncCodeWriteMultipleCoils,
		modbus.FuncCodeWriteMultipleRegisters:
		// [SlaveID, Func, Addr(2), Quant(2), ByteCount(1), Data(N), CRC(2)]
		if len(header) < MaxRequestHeader {
			return 0, fmt.Errorf("need %d bytes to determine length for 0x%02X, got %d", MaxRequestHeader, funcCode, len(header))
		}
		byteCount := int(header[6])
		return MaxRequestHeader + byteCount + ChecksumSize, nil
	default:
		return 0, fmt.Errorf("unsupported function code: 0x%02X", funcCode)
	}
}

// Decoder captures a response frame from a byte source into a bounded buffer.
//
// Every byte is read with a single blocking ReadByte, strictly in wire order.
// The decoder never skips or resynchronises: a byte that does not fit the
// frame aborts the call.
type Decoder struct {
	buf *buffer.Buffer

	// SkipChecksum stops the decoder from reading and checking the two CRC
	// bytes that trail every reply. The frame then ends with its payload and
	// an exception reply consumes exactly the exception code.
	SkipChecksum bool
}

func NewDecoder(buf *buffer.Buffer) *Decoder {
	return &Decoder{buf: buf}
}

// ReadResponse reads the reply to a request carrying functionCode and quantity.
//
// On success it returns the captured frame: [SlaveID, Func, Payload..., CRCLo, CRCHi]
// (without the CRC bytes when SkipChecksum is set). The slice aliases the
// buffer and is valid until it is next cleared.
// An exception reply yields *modbus.ExceptionError, a read failure
// *modbus.TransportError and a bad trailer *modbus.ChecksumError.
func (d *Decoder) ReadResponse(r io.ByteReader, slaveID, functionCode byte, quantity uint16) ([]byte, error) {
	d.buf.Clear()

	state := stateSlaveID
	var toRead, crcCount int
	var expected, received uint16
	var exception *modbus.ExceptionError

	for state != stateComplete {
		b, err := r.ReadByte()
		if err != nil {
			return nil, &modbus.TransportError{Op: modbus.OpRead, Err: err}
		}
		if err := d.buf.PushByte(b); err != nil {
			return nil, fmt.Errorf("modbus: response does not fit %d byte buffer: %w", d.buf.Cap(), err)
		}

		switch state {
		case stateSlaveID:
			state = stateFunctionCode
		case stateFunctionCode:
			if b == functionCode|modbus.ExceptionFlag {
				state = stateException
				continue
			}
			if b != functionCode {
				return nil, &modbus.FrameError{Field: "function code", Expected: functionCode, Received: b}
			}
			switch functionCode {
			case modbus.FuncCodeReadCoils,
				modbus.FuncCodeReadDiscreteInputs:
				toRead = CoilByteCount(quantity)
				state = stateReadLength
			case modbus.FuncCodeReadHoldingRegisters,
				modbus.FuncCodeReadInputRegisters:
				toRead = RegisterByteCount(quantity)
				state = stateReadLength
			case modbus.FuncCodeWriteSingleCoil,
				modbus.FuncCodeWriteSingleRegister,
				modbus.FuncCodeWriteMultipleCoils,
				modbus.FuncCodeWriteMultipleRegisters:
				toRead = 4
				state = stateReadPayload
			default:
				return nil, fmt.Errorf("modbus: function code not handled: %#02x", functionCode)
			}
		case stateException:
			exception = modbus.NewExceptionError(functionCode, b)
			state = d.trailer()
		case stateReadLength:
			if int(b) != toRead {
				return nil, &InvalidLengthError{Length: b, Expected: toRead}
			}
			if toRead == 0 {
				state = d.trailer()
			} else {
				state = stateReadPayload
			}
		case stateReadPayload:
			toRead--
			if toRead == 0 {
				state = d.trailer()
			}
		case stateCRC:
			crcCount++
			if crcCount == 1 {
				received = uint16(b)
				continue
			}
			received |= uint16(b) << 8
			state = stateComplete
		}

		if state == stateCRC && crcCount == 0 {
			var c crc.CRC
			expected = c.Reset().PushBytes(d.buf.Written()).Value()
		}
	}

	if !d.SkipChecksum && expected != received {
		return nil, &modbus.ChecksumError{Expected: expected, Received: received}
	}
	frame := d.buf.Written()
	if frame[0] != slaveID {
		return nil, &modbus.FrameError{Field: "slave id", Expected: slaveID, Received: frame[0]}
	}
	if exception != nil {
		return nil, exception
	}
	return frame, nil
}

func (d *Decoder) trailer() int {
	if d.SkipChecksum {
		return stateComplete
	}
	return stateCRC
}
