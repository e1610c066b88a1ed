// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/ffutop/modbus-master/client"
	"github.com/ffutop/modbus-master/internal/config"
	"github.com/ffutop/modbus-master/modbus"
)

func newScanCmd(a *app) *cobra.Command {
	var ids string
	var probe string

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Probe slave ids and list the ones that answer",
		Long: `Probe each slave id with a one register read. A slave answering with an
exception is present too; only silence counts as absent.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := config.ParseSlaveIDs(ids)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				return fmt.Errorf("no slave ids given, use --ids")
			}
			address, err := parseUint16(probe)
			if err != nil {
				return fmt.Errorf("invalid probe address: %w", err)
			}

			t, closer, err := openTransport(a.cfg)
			if err != nil {
				return err
			}
			defer closer.Close()

			found := scan(t, list, address, make([]byte, a.cfg.Client.BufferSize))
			return render(a.out, a.cfg.Output, found)
		},
	}
	cmd.Flags().StringVar(&ids, "ids", "1-247", "slave ids to probe, e.g. 1,2,5-10")
	cmd.Flags().StringVar(&probe, "probe", "0", "holding register read by each probe")
	return cmd
}

// scan probes ids one after another over t. Every probe reuses storage.
func scan(t client.Transport, ids []byte, address uint16, storage []byte) []scanEntry {
	found := make([]scanEntry, 0)
	for _, id := range ids {
		c := client.New(id, storage)
		begin := time.Now()
		_, err := c.ReadHoldingRegisters(address).Quantity(1).Send(t)
		elapsed := time.Since(begin)

		var ex *modbus.ExceptionError
		switch {
		case err == nil:
			found = append(found, scanEntry{Slave: id, Responded: true, LatencyMs: elapsed.Milliseconds()})
		case errors.As(err, &ex):
			found = append(found, scanEntry{Slave: id, Responded: true, Exception: ex.Kind.String(), LatencyMs: elapsed.Milliseconds()})
		default:
			slog.Debug("no answer", "slave_id", id, "err", err)
		}
	}
	return found
}
