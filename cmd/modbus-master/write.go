// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ffutop/modbus-master/client"
)

func newWriteCmd(a *app) *cobra.Command {
	var start string
	var values []string

	cmd := &cobra.Command{
		Use:   "write coils|registers",
		Short: "Write coils or holding registers",
		Long: `Write coils or holding registers. A single value is sent with Write
Single Coil (0x05) or Write Single Register (0x06), several values with
Write Multiple Coils (0x0F) or Write Multiple Registers (0x10).`,
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"coils", "registers"},
		RunE: func(cmd *cobra.Command, args []string) error {
			address, err := parseUint16(start)
			if err != nil {
				return fmt.Errorf("invalid start address: %w", err)
			}
			if len(values) == 0 {
				return fmt.Errorf("no values given, use -v")
			}
			return a.withClient(func(c *client.Client, t client.Transport) error {
				r, err := writeTable(c, t, args[0], address, values)
				if err != nil {
					return err
				}
				return render(a.out, a.cfg.Output, r)
			})
		},
	}
	cmd.Flags().StringVarP(&start, "start", "a", "0", "start address (decimal or 0x hex)")
	cmd.Flags().StringSliceVarP(&values, "values", "v", nil, "comma separated values, e.g. 1,0,1 or 10,0x20")
	return cmd
}

func writeTable(c *client.Client, t client.Transport, table string, address uint16, values []string) (result, error) {
	switch table {
	case "coils":
		coils, err := parseCoils(values)
		if err != nil {
			return result{}, err
		}
		resp, err := c.WriteCoils(address).Values(coils...).Send(t)
		if err != nil {
			return result{}, err
		}
		r := newResult(table, resp.Address(), resp)
		r.Quantity = uint16(len(coils))
		return r, nil
	case "registers":
		regs, err := parseRegisters(values)
		if err != nil {
			return result{}, err
		}
		resp, err := c.WriteRegisters(address).Values(regs...).Send(t)
		if err != nil {
			return result{}, err
		}
		r := newResult(table, resp.Address(), resp)
		r.Quantity = uint16(len(regs))
		return r, nil
	default:
		return result{}, fmt.Errorf("unknown table %q", table)
	}
}

func parseCoils(values []string) ([]bool, error) {
	coils := make([]bool, 0, len(values))
	for _, v := range values {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "on", "true":
			coils = append(coils, true)
		case "0", "off", "false":
			coils = append(coils, false)
		default:
			return nil, fmt.Errorf("invalid coil value %q", v)
		}
	}
	return coils, nil
}

func parseRegisters(values []string) ([]uint16, error) {
	regs := make([]uint16, 0, len(values))
	for _, v := range values {
		reg, err := parseUint16(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("invalid register value %q: %w", v, err)
		}
		regs = append(regs, reg)
	}
	return regs, nil
}
