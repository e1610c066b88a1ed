// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package test

import (
	"errors"
	"testing"
	"time"

	"github.com/ffutop/modbus-master/client"
	"github.com/ffutop/modbus-master/internal/slave"
	"github.com/ffutop/modbus-master/internal/slave/model"
	"github.com/ffutop/modbus-master/modbus"
)

func TestLocalSlave(t *testing.T) {
	sim := startSimulator(t, model.NewDataModel(), slave.WithSlaveIDs(1))
	conn := sim.dial(t, time.Second)
	c := client.New(1, make([]byte, 256))

	t.Log("Testing Write/Read Coil 0")
	for _, on := range []bool{true, false} {
		if _, err := c.WriteCoils(0).Values(on).Send(conn); err != nil {
			t.Fatalf("WriteCoils(%v) failed: %v", on, err)
		}
		resp, err := c.ReadCoils(0).Quantity(1).Send(conn)
		if err != nil {
			t.Fatalf("ReadCoils failed: %v", err)
		}
		if resp.Coil(0) != on {
			t.Errorf("Expected coil 0 to be %v, got %v", on, resp.Coil(0))
		}
	}

	t.Log("Testing Write/Read Register 10")
	if _, err := c.WriteRegisters(10).Values(12345).Send(conn); err != nil {
		t.Fatalf("WriteRegisters failed: %v", err)
	}
	resp, err := c.ReadHoldingRegisters(10).Quantity(1).Send(conn)
	if err != nil {
		t.Fatalf("ReadHoldingRegisters failed: %v", err)
	}
	if val := resp.Register(0); val != 12345 {
		t.Errorf("Expected reg 10 to be 12345, got %d", val)
	}

	t.Log("Testing Exception")
	_, err = c.ReadHoldingRegisters(0xFFFF).Quantity(2).Send(conn)
	var ex *modbus.ExceptionError
	if !errors.As(err, &ex) || ex.Kind != modbus.InvalidAddressOrQuantity {
		t.Errorf("Expected address exception, got %v", err)
	}

	t.Log("Testing Unknown Slave ID")
	other := client.New(2, make([]byte, 256))
	short := sim.dial(t, 100*time.Millisecond)
	_, err = other.ReadCoils(0).Quantity(1).Send(short)
	var te *modbus.TransportError
	if !errors.As(err, &te) {
		t.Errorf("Expected silence for slave 2, got %v", err)
	}
	if got := other.Stats().Snapshot().TransportErrors; got != 1 {
		t.Errorf("TransportErrors = %d, want 1", got)
	}
}
