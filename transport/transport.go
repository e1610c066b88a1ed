// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package transport holds the pieces shared by the byte transports the master
// talks over and the servers the simulator answers on.
package transport

import (
	"context"
	"errors"

	"github.com/ffutop/modbus-master/modbus"
)

// ErrNoResponse is returned by a Handler that stays silent, for example when
// the request is addressed to a slave it does not serve. Servers send nothing.
var ErrNoResponse = errors.New("no response")

// Handler answers one request PDU addressed to slaveID.
// A returned exception PDU is sent as is; an error other than ErrNoResponse
// is reported to the master as a slave device failure.
type Handler func(ctx context.Context, slaveID byte, pdu modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error)

// Server is a source of requests, typically a listener or a serial line.
type Server interface {
	// Start serves requests until ctx is cancelled or Close is called.
	Start(ctx context.Context, handler Handler) error
	Close() error
}
