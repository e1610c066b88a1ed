// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/ffutop/modbus-master/client"
	"github.com/ffutop/modbus-master/internal/config"
	"github.com/ffutop/modbus-master/internal/slave"
	"github.com/ffutop/modbus-master/internal/slave/persistence"
	"github.com/ffutop/modbus-master/transport/rtu"
	"github.com/ffutop/modbus-master/transport/rtuovertcp"
)

// openTransport returns the byte transport selected by cfg and a closer
// releasing it.
func openTransport(cfg *config.Config) (client.Transport, io.Closer, error) {
	switch cfg.Transport {
	case config.TransportRTU:
		p := rtu.NewPort(cfg.Serial)
		return p, p, nil
	case config.TransportTCP:
		c := rtuovertcp.NewConn(cfg.Tcp)
		return c, c, nil
	case config.TransportSim:
		sl, st, err := newSimulator(cfg)
		if err != nil {
			return nil, nil, err
		}
		return slave.NewLoopback(sl.Handle), st, nil
	default:
		return nil, nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

// newSimulator loads the simulator memory from the configured backend.
func newSimulator(cfg *config.Config) (*slave.Slave, persistence.Storage, error) {
	sc := cfg.Simulator
	st, err := persistence.Open(persistence.Options{
		Type:   sc.Persistence.Type,
		Path:   sc.Persistence.Path,
		Driver: sc.Persistence.Driver,
		DSN:    sc.Persistence.DSN,
	})
	if err != nil {
		return nil, nil, err
	}
	m, err := st.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load simulator memory: %w", err)
	}

	ids, err := config.ParseSlaveIDs(sc.SlaveIDs)
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("invalid simulator slave ids: %w", err)
	}

	slog.Debug("simulator ready", "persistence", sc.Persistence.Type, "slave_ids", sc.SlaveIDs)
	opts := []slave.Option{slave.WithStorage(st)}
	if len(ids) > 0 {
		opts = append(opts, slave.WithSlaveIDs(ids...))
	}
	return slave.New(m, opts...), st, nil
}

func (a *app) newClient() *client.Client {
	var opts []client.Option
	if a.cfg.Client.SkipChecksum {
		opts = append(opts, client.WithoutChecksumValidation())
	}
	if a.cfg.Client.ProtocolLimits {
		opts = append(opts, client.WithProtocolLimits())
	}
	return client.New(byte(a.cfg.Client.SlaveID), make([]byte, a.cfg.Client.BufferSize), opts...)
}
