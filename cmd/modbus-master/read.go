// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ffutop/modbus-master/client"
)

func newReadCmd(a *app) *cobra.Command {
	var start string
	var count uint16

	cmd := &cobra.Command{
		Use:       "read coils|registers|holding",
		Short:     "Read coils, input registers or holding registers",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"coils", "registers", "holding"},
		RunE: func(cmd *cobra.Command, args []string) error {
			address, err := parseUint16(start)
			if err != nil {
				return fmt.Errorf("invalid start address: %w", err)
			}
			return a.withClient(func(c *client.Client, t client.Transport) error {
				r, err := readTable(c, t, args[0], address, count)
				if err != nil {
					return err
				}
				return render(a.out, a.cfg.Output, r)
			})
		},
	}
	cmd.Flags().StringVarP(&start, "start", "a", "0", "start address (decimal or 0x hex)")
	cmd.Flags().Uint16VarP(&count, "count", "c", 1, "number of coils or registers")
	return cmd
}

func readTable(c *client.Client, t client.Transport, table string, address, count uint16) (result, error) {
	switch table {
	case "coils":
		resp, err := c.ReadCoils(address).Quantity(count).Send(t)
		if err != nil {
			return result{}, err
		}
		r := newResult(table, address, resp)
		r.Coils = resp.Coils(make([]bool, 0, count), int(count))
		return r, nil
	case "registers", "holding":
		var req *client.ReadRegistersRequest
		if table == "holding" {
			req = c.ReadHoldingRegisters(address)
		} else {
			req = c.ReadRegisters(address)
		}
		resp, err := req.Quantity(count).Send(t)
		if err != nil {
			return result{}, err
		}
		r := newResult(table, address, resp)
		r.Registers = resp.Registers(make([]uint16, 0, count))
		return r, nil
	default:
		return result{}, fmt.Errorf("unknown table %q", table)
	}
}

// withClient opens the configured transport, runs fn and closes it again.
func (a *app) withClient(fn func(c *client.Client, t client.Transport) error) error {
	t, closer, err := openTransport(a.cfg)
	if err != nil {
		return err
	}
	defer closer.Close()
	return fn(a.newClient(), t)
}

// parseUint16 accepts decimal, 0x hex and 0o octal values.
func parseUint16(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}
