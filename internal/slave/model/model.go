// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package model

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
)

const (
	MaxAddress = 65535
)

var ErrOutOfRange = errors.New("address range out of bounds")

// TableType represents the type of Modbus data table.
type TableType int

const (
	TableCoils TableType = iota
	TableDiscreteInputs
	TableHoldingRegisters
	TableInputRegisters
)

func (t TableType) String() string {
	switch t {
	case TableCoils:
		return "coils"
	case TableDiscreteInputs:
		return "discrete_inputs"
	case TableHoldingRegisters:
		return "holding_registers"
	case TableInputRegisters:
		return "input_registers"
	default:
		return fmt.Sprintf("table(%d)", int(t))
	}
}

// DataModel is the simulated device memory, one flat table per data type
// covering the full 16-bit address space. Bit tables store one point per byte
// (0 or 1).
type DataModel struct {
	mu sync.RWMutex

	Coils            []byte
	DiscreteInputs   []byte
	HoldingRegisters []uint16
	InputRegisters   []uint16
}

// NewDataModel creates a new memory model initialized to zero.
func NewDataModel() *DataModel {
	return &DataModel{
		Coils:            make([]byte, MaxAddress+1),
		DiscreteInputs:   make([]byte, MaxAddress+1),
		HoldingRegisters: make([]uint16, MaxAddress+1),
		InputRegisters:   make([]uint16, MaxAddress+1),
	}
}

// ReadCoils returns quantity coils packed LSB first.
func (m *DataModel) ReadCoils(address, quantity uint16) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return packBits(m.Coils, address, quantity)
}

func (m *DataModel) ReadDiscreteInputs(address, quantity uint16) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return packBits(m.DiscreteInputs, address, quantity)
}

// ReadHoldingRegisters returns quantity registers big endian.
func (m *DataModel) ReadHoldingRegisters(address, quantity uint16) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return packWords(m.HoldingRegisters, address, quantity)
}

func (m *DataModel) ReadInputRegisters(address, quantity uint16) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return packWords(m.InputRegisters, address, quantity)
}

// WriteSingleCoil accepts only the wire values 0xFF00 and 0x0000.
func (m *DataModel) WriteSingleCoil(address uint16, value uint16) error {
	var bit byte
	switch value {
	case 0xFF00:
		bit = 1
	case 0x0000:
	default:
		return fmt.Errorf("invalid coil value %#04x", value)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Coils[address] = bit
	return nil
}

// WriteMultipleCoils writes quantity coils from LSB first packed bytes.
func (m *DataModel) WriteMultipleCoils(address, quantity uint16, data []byte) error {
	if err := checkRange(address, quantity); err != nil {
		return err
	}
	if len(data) < (int(quantity)+7)/8 {
		return fmt.Errorf("insufficient data length")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < int(quantity); i++ {
		m.Coils[int(address)+i] = (data[i/8] >> uint(i%8)) & 1
	}
	return nil
}

func (m *DataModel) WriteSingleRegister(address uint16, value uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.HoldingRegisters[address] = value
	return nil
}

// WriteMultipleRegisters writes quantity registers from big endian bytes.
func (m *DataModel) WriteMultipleRegisters(address, quantity uint16, data []byte) error {
	if err := checkRange(address, quantity); err != nil {
		return err
	}
	if len(data) < int(quantity)*2 {
		return fmt.Errorf("insufficient data length")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < int(quantity); i++ {
		m.HoldingRegisters[int(address)+i] = binary.BigEndian.Uint16(data[i*2:])
	}
	return nil
}

// Set stores value at address in table without protocol checks. Bit tables
// store any non-zero value as 1. Used to seed the simulator.
func (m *DataModel) Set(table TableType, address uint16, value uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var bit byte
	if value != 0 {
		bit = 1
	}
	switch table {
	case TableCoils:
		m.Coils[address] = bit
	case TableDiscreteInputs:
		m.DiscreteInputs[address] = bit
	case TableHoldingRegisters:
		m.HoldingRegisters[address] = value
	case TableInputRegisters:
		m.InputRegisters[address] = value
	}
}

// Get returns the value at address in table.
func (m *DataModel) Get(table TableType, address uint16) uint16 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	switch table {
	case TableCoils:
		return uint16(m.Coils[address])
	case TableDiscreteInputs:
		return uint16(m.DiscreteInputs[address])
	case TableHoldingRegisters:
		return m.HoldingRegisters[address]
	case TableInputRegisters:
		return m.InputRegisters[address]
	}
	return 0
}

func packBits(table []byte, address, quantity uint16) ([]byte, error) {
	if err := checkRange(address, quantity); err != nil {
		return nil, err
	}
	result := make([]byte, (int(quantity)+7)/8)
	for i := 0; i < int(quantity); i++ {
		if table[int(address)+i] != 0 {
			result[i/8] |= 1 << uint(i%8)
		}
	}
	return result, nil
}

func packWords(table []uint16, address, quantity uint16) ([]byte, error) {
	if err := checkRange(address, quantity); err != nil {
		return nil, err
	}
	result := make([]byte, int(quantity)*2)
	for i := 0; i < int(quantity); i++ {
		binary.BigEndian.PutUint16(result[i*2:], table[int(address)+i])
	}
	return result, nil
}

func checkRange(address, quantity uint16) error {
	if quantity == 0 {
		return fmt.Errorf("quantity must be greater than 0")
	}
	if int(address)+int(quantity) > MaxAddress+1 {
		return ErrOutOfRange
	}
	return nil
}
