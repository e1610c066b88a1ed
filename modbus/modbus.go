// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

/*
Package modbus holds the protocol vocabulary shared by the RTU master engine:
function codes, exception codes, error kinds and the error types returned by
a request.
*/
package modbus

// Function codes
const (
	FuncCodeReadCoils            = 0x01
	FuncCodeReadDiscreteInputs   = 0x02
	FuncCodeReadHoldingRegisters = 0x03
	FuncCodeReadInputRegisters   = 0x04

	FuncCodeWriteSingleCoil        = 0x05
	FuncCodeWriteSingleRegister    = 0x06
	FuncCodeWriteMultipleCoils     = 0x0F
	FuncCodeWriteMultipleRegisters = 0x10

	// FuncCodeReadRegisters is the register read issued by the client facade.
	FuncCodeReadRegisters = FuncCodeReadInputRegisters
)

// ExceptionFlag is set on the echoed function code of an exception response.
const ExceptionFlag = 0x80

// Exception codes
const (
	ExceptionCodeIllegalFunction                    = 0x01
	ExceptionCodeIllegalDataAddress                 = 0x02
	ExceptionCodeIllegalDataValue                   = 0x03
	ExceptionCodeServerDeviceFailure                = 0x04
	ExceptionCodeAcknowledge                        = 0x05
	ExceptionCodeServerDeviceBusy                   = 0x06
	ExceptionCodeMemoryParityError                  = 0x08
	ExceptionCodeGatewayPathUnavailable             = 0x0A
	ExceptionCodeGatewayTargetDeviceFailedToRespond = 0x0B
)

// Coil values on the wire.
const (
	CoilOn  uint16 = 0xFF00
	CoilOff uint16 = 0x0000
)

// Protocol ceilings for a single request.
const (
	MaxReadCoils          = 2000
	MaxReadRegisters      = 125
	MaxWriteCoils         = 1968
	MaxWriteRegisters     = 123
	MaxSlaveID       byte = 247
)

// ProtocolDataUnit (PDU) is independent of underlying communication layers.
type ProtocolDataUnit struct {
	FunctionCode byte
	Data         []byte
}

// IsException reports whether the function code carries the exception flag.
func IsException(functionCode byte) bool {
	return functionCode&ExceptionFlag != 0
}

// CoilValue returns the 16-bit wire value of a single coil.
func CoilValue(on bool) uint16 {
	if on {
		return CoilOn
	}
	return CoilOff
}
