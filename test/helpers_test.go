// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package test

import (
	"context"
	"testing"
	"time"

	"github.com/ffutop/modbus-master/internal/config"
	"github.com/ffutop/modbus-master/internal/slave"
	"github.com/ffutop/modbus-master/internal/slave/model"
	"github.com/ffutop/modbus-master/transport/rtuovertcp"
)

// simulator is a slave served over TCP inside the test process.
type simulator struct {
	addr   string
	slave  *slave.Slave
	cancel context.CancelFunc
	done   chan struct{}
}

func startSimulator(t *testing.T, m *model.DataModel, opts ...slave.Option) *simulator {
	t.Helper()
	sl := slave.New(m, opts...)

	srv := rtuovertcp.NewServer("127.0.0.1:0")
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	sim := &simulator{addr: srv.Addr().String(), slave: sl, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(sim.done)
		if err := srv.Serve(ctx, sl.Handle); err != nil {
			t.Errorf("Serve: %v", err)
		}
	}()
	t.Cleanup(sim.stop)
	return sim
}

// stop shuts the server down and waits for it. It is safe to call twice.
func (s *simulator) stop() {
	s.cancel()
	<-s.done
}

func (s *simulator) dial(t *testing.T, timeout time.Duration) *rtuovertcp.Conn {
	t.Helper()
	conn := rtuovertcp.NewConn(config.TcpConfig{Address: s.addr, Timeout: timeout})
	t.Cleanup(func() { conn.Close() })
	return conn
}
