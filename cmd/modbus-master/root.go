// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ffutop/modbus-master/internal/config"
)

// app carries the state shared by every command of one invocation.
type app struct {
	configFile string
	verbose    bool

	cfg       *config.Config
	out       io.Writer
	logCloser io.Closer
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "modbus-master",
		Short: "Modbus RTU master for serial lines and TCP device servers",
		Long: `modbus-master talks to Modbus RTU slaves over a serial line, over a TCP
device server forwarding RTU frames, or against a built-in simulator.

Examples:
  # Read 10 coils from slave 17 starting at 0x13
  modbus-master read coils -a 0x13 -c 10 --slave 17 --device /dev/ttyUSB0

  # Write two registers through a device server
  modbus-master write registers -a 1 -v 10,258 --transport tcp --address 10.0.0.5:4001

  # Serve a simulated slave over TCP with its memory kept in a file
  modbus-master simulate --listen :5020 --persistence mmap --path slave.img`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logCloser != nil {
				a.logCloser.Close()
			}
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (default: ./config.yaml, $HOME/.modbus-master/config.yaml, /etc/modbus-master/config.yaml)")
	pf.String("transport", config.TransportRTU, "transport: rtu, tcp (RTU over TCP), sim (built-in simulator)")
	pf.StringP("device", "d", "/dev/ttyUSB0", "serial port device")
	pf.IntP("baud", "b", 19200, "serial port speed")
	pf.String("address", "127.0.0.1:5020", "TCP device server address")
	pf.IntP("slave", "s", 1, "slave id")
	pf.DurationP("timeout", "t", 500*time.Millisecond, "response timeout")
	pf.StringP("output", "o", "table", "output format: table, json, yaml, hex")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.BoolVar(&a.verbose, "verbose", false, "log wire traffic (same as --log-level debug)")

	cmd.AddCommand(newReadCmd(a))
	cmd.AddCommand(newWriteCmd(a))
	cmd.AddCommand(newScanCmd(a))
	cmd.AddCommand(newSimulateCmd(a))
	return cmd
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(a.configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if f := cmd.Flags().Lookup("timeout"); f != nil && f.Changed {
		cfg.Tcp.Timeout = cfg.Serial.Timeout
	}
	if a.verbose {
		cfg.Log.Level = "debug"
	}
	a.cfg = cfg
	a.out = cmd.OutOrStdout()
	a.logCloser = setupLogger(cfg.Log)
	return nil
}
