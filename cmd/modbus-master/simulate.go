// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ffutop/modbus-master/transport"
	"github.com/ffutop/modbus-master/transport/rtu"
	"github.com/ffutop/modbus-master/transport/rtuovertcp"
)

func newSimulateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Serve a simulated slave over TCP or a serial line",
		Long: `Serve a simulated slave. By default RTU frames are accepted over TCP on
--listen; with --serial the slave answers on --device instead. The slave
memory lives in the chosen persistence backend: memory, file, mmap or sql.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.simulate(ctx)
		},
	}

	f := cmd.Flags()
	f.String("listen", "127.0.0.1:5020", "TCP listen address")
	f.Bool("serial", false, "serve on the serial device instead of TCP")
	f.String("ids", "", "slave ids to answer for, e.g. 1,2,5-10 (default all)")
	f.String("persistence", "memory", "memory backend: memory, file, mmap, sql")
	f.String("path", "", "image file for the file and mmap backends")
	f.String("dsn", "", "data source name for the sql backend")
	return cmd
}

func (a *app) simulate(ctx context.Context) error {
	sl, st, err := newSimulator(a.cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Save(sl.Model()); err != nil {
			slog.Error("failed to save simulator memory", "err", err)
		}
		st.Close()
	}()

	var srv transport.Server
	if a.cfg.Simulator.Serial {
		srv = rtu.NewServer(a.cfg.Serial)
	} else {
		srv = rtuovertcp.NewServer(a.cfg.Simulator.Listen)
	}
	defer srv.Close()

	slog.Info("simulator started", "persistence", a.cfg.Simulator.Persistence.Type, "slave_ids", a.cfg.Simulator.SlaveIDs)
	if err := srv.Start(ctx, sl.Handle); err != nil {
		return fmt.Errorf("simulator stopped: %w", err)
	}
	slog.Info("simulator stopped")
	return nil
}
