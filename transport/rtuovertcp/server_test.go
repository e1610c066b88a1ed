// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.
package rtuovertcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ffutop/modbus-master/client"
	"github.com/ffutop/modbus-master/internal/config"
	"github.com/ffutop/modbus-master/internal/slave"
	"github.com/ffutop/modbus-master/internal/slave/model"
	"github.com/ffutop/modbus-master/modbus"
)

func startServer(t *testing.T, opts ...slave.Option) (*Conn, *model.DataModel) {
	t.Helper()
	m := model.NewDataModel()
	sl := slave.New(m, opts...)

	s := NewServer("127.0.0.1:0")
	if err := s.Listen(); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := s.Serve(ctx, sl.Handle); err != nil {
			t.Errorf("Serve: %v", err)
		}
	}()

	conn := NewConn(config.TcpConfig{Address: s.Addr().String(), Timeout: 200 * time.Millisecond})
	t.Cleanup(func() {
		conn.Close()
		cancel()
		<-done
	})
	return conn, m
}

func TestServer_ClientRoundTrip(t *testing.T) {
	conn, m := startServer(t)
	m.Set(model.TableInputRegisters, 8, 0x000A)
	c := client.New(0x11, make([]byte, 256))

	resp, err := c.ReadRegisters(8).Quantity(1).Send(conn)
	if err != nil {
		t.Fatalf("ReadRegisters: %v", err)
	}
	if got := resp.Register(0); got != 0x000A {
		t.Errorf("Register(0) = %#04x, want 0x000A", got)
	}

	if _, err := c.WriteCoils(0x13).Values(true, false, true, true, false, false, true, true, true, false).Send(conn); err != nil {
		t.Fatalf("WriteCoils: %v", err)
	}
	resp, err = c.ReadCoils(0x13).Quantity(10).Send(conn)
	if err != nil {
		t.Fatalf("ReadCoils: %v", err)
	}
	want := []bool{true, false, true, true, false, false, true, true, true, false}
	if diff := cmp.Diff(want, resp.Coils(nil, 10)); diff != "" {
		t.Errorf("coils mismatch (-want +got):\n%s", diff)
	}

	resp, err = c.WriteRegisters(1).Values(0x000A, 0x0102).Send(conn)
	if err != nil {
		t.Fatalf("WriteRegisters: %v", err)
	}
	if resp.Address() != 1 || resp.Value() != 2 {
		t.Errorf("write echo = (%d, %d), want (1, 2)", resp.Address(), resp.Value())
	}
}

func TestServer_Exception(t *testing.T) {
	conn, _ := startServer(t)
	c := client.New(0x01, make([]byte, 256))

	_, err := c.ReadHoldingRegisters(0xFFFF).Quantity(2).Send(conn)
	var ex *modbus.ExceptionError
	if !errors.As(err, &ex) {
		t.Fatalf("err = %v, want *modbus.ExceptionError", err)
	}
	if ex.Kind != modbus.InvalidAddressOrQuantity || ex.FunctionCode != modbus.FuncCodeReadHoldingRegisters {
		t.Errorf("exception = %+v", ex)
	}

	// The stream stays in sync after an exception.
	if _, err := c.ReadHoldingRegisters(0).Quantity(1).Send(conn); err != nil {
		t.Errorf("read after exception: %v", err)
	}
}

func TestServer_SilentSlaveTimesOut(t *testing.T) {
	conn, _ := startServer(t, slave.WithSlaveIDs(1))
	c := client.New(0x02, make([]byte, 256))

	_, err := c.ReadHoldingRegisters(0).Quantity(1).Send(conn)
	var te *modbus.TransportError
	if !errors.As(err, &te) || te.Op != modbus.OpRead {
		t.Fatalf("err = %v, want read TransportError", err)
	}

	// The connection is redialled for the next request.
	c = client.New(0x01, make([]byte, 256))
	if _, err := c.ReadHoldingRegisters(0).Quantity(1).Send(conn); err != nil {
		t.Errorf("read after timeout: %v", err)
	}
}

func TestConn_ReadBeforeConnect(t *testing.T) {
	conn := NewConn(config.TcpConfig{Address: "127.0.0.1:1"})
	if _, err := conn.ReadByte(); !errors.Is(err, errNotConnected) {
		t.Errorf("ReadByte() error = %v, want errNotConnected", err)
	}
}
