// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package slave simulates Modbus slave devices on top of an in-memory data
// model. It backs the simulate command and the in-process Loopback transport.
package slave

import (
	"context"
	"encoding/binary"
	"log/slog"

	"github.com/ffutop/modbus-master/internal/slave/model"
	"github.com/ffutop/modbus-master/internal/slave/persistence"
	"github.com/ffutop/modbus-master/modbus"
	"github.com/ffutop/modbus-master/transport"
)

// Slave implements the slave side of the protocol against a DataModel.
type Slave struct {
	model   *model.DataModel
	storage persistence.Storage
	ids     map[byte]struct{}
	logger  *slog.Logger
}

type Option func(*Slave)

// WithStorage notifies st of every write the slave applies.
func WithStorage(st persistence.Storage) Option {
	return func(s *Slave) {
		s.storage = st
	}
}

// WithSlaveIDs restricts Handle to the given ids. By default every id is served.
func WithSlaveIDs(ids ...byte) Option {
	return func(s *Slave) {
		s.ids = make(map[byte]struct{}, len(ids))
		for _, id := range ids {
			s.ids[id] = struct{}{}
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Slave) {
		s.logger = l
	}
}

// New creates a Slave serving m.
func New(m *model.DataModel, opts ...Option) *Slave {
	s := &Slave{
		model:  m,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Slave) Model() *model.DataModel {
	return s.model
}

// Serves reports whether requests for slaveID are answered.
func (s *Slave) Serves(slaveID byte) bool {
	if len(s.ids) == 0 {
		return true
	}
	_, ok := s.ids[slaveID]
	return ok
}

// Handle implements transport.Handler. Requests for ids the slave does not
// serve and broadcasts (id 0) get no response; broadcast writes are applied.
func (s *Slave) Handle(ctx context.Context, slaveID byte, req modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	if err := ctx.Err(); err != nil {
		return modbus.ProtocolDataUnit{}, err
	}
	if slaveID != 0 && !s.Serves(slaveID) {
		return modbus.ProtocolDataUnit{}, transport.ErrNoResponse
	}

	resp, err := s.Process(req)
	if err != nil {
		return modbus.ProtocolDataUnit{}, err
	}
	if modbus.IsException(resp.FunctionCode) {
		s.logger.Debug("slave exception", "slave_id", slaveID, "func", req.FunctionCode, "code", resp.Data[0])
	}
	if slaveID == 0 {
		return modbus.ProtocolDataUnit{}, transport.ErrNoResponse
	}
	return resp, nil
}

// Process executes the function code against the data model.
func (s *Slave) Process(req modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	switch req.FunctionCode {
	case modbus.FuncCodeReadCoils:
		return s.handleRead(req, modbus.MaxReadCoils, s.model.ReadCoils), nil
	case modbus.FuncCodeReadDiscreteInputs:
		return s.handleRead(req, modbus.MaxReadCoils, s.model.ReadDiscreteInputs), nil
	case modbus.FuncCodeReadHoldingRegisters:
		return s.handleRead(req, modbus.MaxReadRegisters, s.model.ReadHoldingRegisters), nil
	case modbus.FuncCodeReadInputRegisters:
		return s.handleRead(req, modbus.MaxReadRegisters, s.model.ReadInputRegisters), nil
	case modbus.FuncCodeWriteSingleCoil:
		return s.handleWriteSingleCoil(req), nil
	case modbus.FuncCodeWriteSingleRegister:
		return s.handleWriteSingleRegister(req), nil
	case modbus.FuncCodeWriteMultipleCoils:
		return s.handleWriteMultiple(req, modbus.MaxWriteCoils, model.TableCoils, s.model.WriteMultipleCoils), nil
	case modbus.FuncCodeWriteMultipleRegisters:
		return s.handleWriteMultiple(req, modbus.MaxWriteRegisters, model.TableHoldingRegisters, s.model.WriteMultipleRegisters), nil
	default:
		return exception(req.FunctionCode, modbus.ExceptionCodeIllegalFunction), nil
	}
}

func (s *Slave) handleRead(req modbus.ProtocolDataUnit, limit uint16, read func(address, quantity uint16) ([]byte, error)) modbus.ProtocolDataUnit {
	if len(req.Data) != 4 {
		return exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue)
	}
	address := binary.BigEndian.Uint16(req.Data[0:2])
	quantity := binary.BigEndian.Uint16(req.Data[2:4])

	if quantity < 1 || quantity > limit {
		return exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue)
	}

	data, err := read(address, quantity)
	if err != nil {
		return exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataAddress)
	}

	respData := make([]byte, 1+len(data))
	respData[0] = byte(len(data))
	copy(respData[1:], data)

	return modbus.ProtocolDataUnit{
		FunctionCode: req.FunctionCode,
		Data:         respData,
	}
}

func (s *Slave) handleWriteSingleCoil(req modbus.ProtocolDataUnit) modbus.ProtocolDataUnit {
	if len(req.Data) != 4 {
		return exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue)
	}
	address := binary.BigEndian.Uint16(req.Data[0:2])
	value := binary.BigEndian.Uint16(req.Data[2:4])

	if err := s.model.WriteSingleCoil(address, value); err != nil {
		return exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue)
	}
	s.notify(model.TableCoils, address, 1)

	return echo(req)
}

func (s *Slave) handleWriteSingleRegister(req modbus.ProtocolDataUnit) modbus.ProtocolDataUnit {
	if len(req.Data) != 4 {
		return exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue)
	}
	address := binary.BigEndian.Uint16(req.Data[0:2])
	value := binary.BigEndian.Uint16(req.Data[2:4])

	if err := s.model.WriteSingleRegister(address, value); err != nil {
		return exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataAddress)
	}
	s.notify(model.TableHoldingRegisters, address, 1)

	return echo(req)
}

func (s *Slave) handleWriteMultiple(req modbus.ProtocolDataUnit, limit uint16, table model.TableType, write func(address, quantity uint16, data []byte) error) modbus.ProtocolDataUnit {
	if len(req.Data) < 6 {
		return exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue)
	}
	address := binary.BigEndian.Uint16(req.Data[0:2])
	quantity := binary.BigEndian.Uint16(req.Data[2:4])
	byteCount := req.Data[4]

	if quantity < 1 || quantity > limit {
		return exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue)
	}
	if len(req.Data)-5 != int(byteCount) {
		return exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue)
	}

	if err := write(address, quantity, req.Data[5:]); err != nil {
		return exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataAddress)
	}
	s.notify(table, address, quantity)

	respData := make([]byte, 4)
	binary.BigEndian.PutUint16(respData[0:2], address)
	binary.BigEndian.PutUint16(respData[2:4], quantity)

	return modbus.ProtocolDataUnit{
		FunctionCode: req.FunctionCode,
		Data:         respData,
	}
}

func (s *Slave) notify(table model.TableType, address, quantity uint16) {
	if s.storage != nil {
		s.storage.OnWrite(table, address, quantity)
	}
}

func echo(req modbus.ProtocolDataUnit) modbus.ProtocolDataUnit {
	data := make([]byte, len(req.Data))
	copy(data, req.Data)
	return modbus.ProtocolDataUnit{FunctionCode: req.FunctionCode, Data: data}
}

func exception(funcCode byte, code byte) modbus.ProtocolDataUnit {
	return modbus.ProtocolDataUnit{
		FunctionCode: funcCode | modbus.ExceptionFlag,
		Data:         []byte{code},
	}
}
