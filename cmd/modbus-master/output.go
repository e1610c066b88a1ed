// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/ffutop/modbus-master/client"
)

// result is what a read or write command prints.
type result struct {
	Slave     byte     `json:"slave" yaml:"slave"`
	Function  byte     `json:"function" yaml:"function"`
	Table     string   `json:"table" yaml:"table"`
	Address   uint16   `json:"address" yaml:"address"`
	Coils     []bool   `json:"coils,omitempty" yaml:"coils,omitempty"`
	Registers []uint16 `json:"registers,omitempty" yaml:"registers,omitempty"`
	Quantity  uint16   `json:"quantity,omitempty" yaml:"quantity,omitempty"`
	Frame     string   `json:"frame" yaml:"frame"`
}

func newResult(table string, address uint16, resp client.Response) result {
	return result{
		Slave:    resp.SlaveID(),
		Function: resp.FunctionCode(),
		Table:    table,
		Address:  address,
		Frame:    hex.EncodeToString(resp.Frame()),
	}
}

// scanEntry is one probed slave id.
type scanEntry struct {
	Slave     byte   `json:"slave" yaml:"slave"`
	Responded bool   `json:"responded" yaml:"responded"`
	Exception string `json:"exception,omitempty" yaml:"exception,omitempty"`
	LatencyMs int64  `json:"latency_ms" yaml:"latency_ms"`
}

func render(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "hex":
		return renderHex(w, v)
	case "table", "":
		return renderTable(w, v)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func renderHex(w io.Writer, v any) error {
	switch r := v.(type) {
	case result:
		_, err := fmt.Fprintln(w, r.Frame)
		return err
	default:
		return renderTable(w, v)
	}
}

func renderTable(w io.Writer, v any) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	switch r := v.(type) {
	case result:
		switch {
		case r.Coils != nil:
			fmt.Fprintln(tw, "ADDRESS\tHEX\tVALUE")
			for i, c := range r.Coils {
				fmt.Fprintf(tw, "%d\t0x%04X\t%v\n", int(r.Address)+i, int(r.Address)+i, c)
			}
		case r.Registers != nil:
			fmt.Fprintln(tw, "ADDRESS\tHEX\tVALUE\tHEX VALUE")
			for i, reg := range r.Registers {
				fmt.Fprintf(tw, "%d\t0x%04X\t%d\t0x%04X\n", int(r.Address)+i, int(r.Address)+i, reg, reg)
			}
		default:
			fmt.Fprintf(tw, "slave %d: wrote %s at %d (quantity %d)\n", r.Slave, r.Table, r.Address, r.Quantity)
		}
	case []scanEntry:
		fmt.Fprintln(tw, "SLAVE\tSTATUS\tLATENCY")
		for _, e := range r {
			status := "ok"
			if e.Exception != "" {
				status = "exception: " + e.Exception
			}
			fmt.Fprintf(tw, "%d\t%s\t%dms\n", e.Slave, status, e.LatencyMs)
		}
	default:
		return fmt.Errorf("cannot render %T as table", v)
	}
	return tw.Flush()
}
