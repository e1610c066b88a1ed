// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Transport kinds
const (
	TransportRTU = "rtu"
	TransportTCP = "tcp" // RTU frames over a TCP stream
	TransportSim = "sim" // in-process simulator
)

// EnvPrefix is the prefix of environment variables overriding config keys,
// e.g. MODBUS_MASTER_SERIAL_DEVICE.
const EnvPrefix = "MODBUS_MASTER"

// Config defines the global configuration structure
type Config struct {
	Transport string          `mapstructure:"transport"` // "rtu", "tcp", "sim"
	Output    string          `mapstructure:"output"`    // "table", "json", "yaml", "hex"
	Serial    SerialConfig    `mapstructure:"serial"`
	Tcp       TcpConfig       `mapstructure:"tcp"`
	Client    ClientConfig    `mapstructure:"client"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
	Log       LogConfig       `mapstructure:"log"`
}

// LogConfig defines logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	File   string `mapstructure:"file"`   // Log file path
	Format string `mapstructure:"format"` // text, json
}

// ClientConfig defines the master side of a request
type ClientConfig struct {
	SlaveID        int  `mapstructure:"slave_id"`
	BufferSize     int  `mapstructure:"buffer_size"`     // scratch buffer bytes
	SkipChecksum   bool `mapstructure:"skip_checksum"`   // do not read the reply CRC
	ProtocolLimits bool `mapstructure:"protocol_limits"` // enforce per-request ceilings
}

// SimulatorConfig defines the simulated slave served by the simulate command
type SimulatorConfig struct {
	SlaveIDs    string            `mapstructure:"slave_ids"` // "1", "1,2", "1-10"; empty serves all
	Listen      string            `mapstructure:"listen"`    // TCP address, RTU frames over TCP
	Serial      bool              `mapstructure:"serial"`    // serve on the serial port instead
	Persistence PersistenceConfig `mapstructure:"persistence"`
}

// PersistenceConfig defines data storage settings
type PersistenceConfig struct {
	Type   string `mapstructure:"type"`   // "memory", "file", "mmap", "sql"
	Path   string `mapstructure:"path"`   // File path for "file/mmap" type
	Driver string `mapstructure:"driver"` // database/sql driver for "sql"
	DSN    string `mapstructure:"dsn"`
}

// TcpConfig defines TCP settings
type TcpConfig struct {
	Address     string        `mapstructure:"address"` // e.g. "192.168.1.100:502"
	Timeout     time.Duration `mapstructure:"timeout"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

// SerialConfig defines RTU settings
type SerialConfig struct {
	Device      string        `mapstructure:"device"`
	BaudRate    int           `mapstructure:"baud_rate"`
	DataBits    int           `mapstructure:"data_bits"`
	Parity      string        `mapstructure:"parity"`
	StopBits    int           `mapstructure:"stop_bits"`
	Timeout     time.Duration `mapstructure:"timeout"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`

	// RS485 specific
	RS485              bool          `mapstructure:"rs485"`
	DelayRtsBeforeSend time.Duration `mapstructure:"delay_rts_before_send"`
	DelayRtsAfterSend  time.Duration `mapstructure:"delay_rts_after_send"`
	RtsHighDuringSend  bool          `mapstructure:"rts_high_during_send"`
	RtsHighAfterSend   bool          `mapstructure:"rts_high_after_send"`
	RxDuringTx         bool          `mapstructure:"rx_during_tx"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("transport", TransportRTU)
	v.SetDefault("output", "table")
	v.SetDefault("serial.device", "/dev/ttyUSB0")
	v.SetDefault("serial.baud_rate", 19200)
	v.SetDefault("serial.data_bits", 8)
	v.SetDefault("serial.parity", "N")
	v.SetDefault("serial.stop_bits", 1)
	v.SetDefault("serial.timeout", 500*time.Millisecond)
	v.SetDefault("serial.idle_timeout", 60*time.Second)
	v.SetDefault("tcp.address", "127.0.0.1:5020")
	v.SetDefault("tcp.timeout", time.Second)
	v.SetDefault("tcp.idle_timeout", 60*time.Second)
	v.SetDefault("client.slave_id", 1)
	v.SetDefault("client.buffer_size", 256)
	v.SetDefault("simulator.slave_ids", "")
	v.SetDefault("simulator.listen", "127.0.0.1:5020")
	v.SetDefault("simulator.serial", false)
	v.SetDefault("simulator.persistence.path", "")
	v.SetDefault("simulator.persistence.dsn", "")
	v.SetDefault("simulator.persistence.type", "memory")
	v.SetDefault("simulator.persistence.driver", "sqlite3")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// flagKeys maps command line flag names to config keys.
var flagKeys = map[string]string{
	"transport":   "transport",
	"output":      "output",
	"device":      "serial.device",
	"baud":        "serial.baud_rate",
	"address":     "tcp.address",
	"slave":       "client.slave_id",
	"timeout":     "serial.timeout",
	"log-level":   "log.level",
	"listen":      "simulator.listen",
	"serial":      "simulator.serial",
	"ids":         "simulator.slave_ids",
	"persistence": "simulator.persistence.type",
	"path":        "simulator.persistence.path",
	"dsn":         "simulator.persistence.dsn",
}

// LoadConfig loads configuration from defaults, the config file, the
// environment and flags, in increasing priority. A missing config file is
// not an error unless configFile names it explicitly.
func LoadConfig(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/modbus-master/")
		v.AddConfigPath("$HOME/.modbus-master")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			key, ok := flagKeys[f.Name]
			if !ok || bindErr != nil {
				return
			}
			bindErr = v.BindPFlag(key, f)
		})
		if bindErr != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", bindErr)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	fixupSerial(&config.Serial)
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks values viper cannot type check.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportRTU, TransportTCP, TransportSim:
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
	if c.Client.SlaveID < 0 || c.Client.SlaveID > 255 {
		return fmt.Errorf("slave id out of range: %d", c.Client.SlaveID)
	}
	if c.Client.BufferSize < 8 {
		return fmt.Errorf("buffer size %d too small", c.Client.BufferSize)
	}
	switch c.Serial.Parity {
	case "N", "E", "O":
	default:
		return fmt.Errorf("invalid parity %q", c.Serial.Parity)
	}
	return nil
}

func fixupSerial(s *SerialConfig) {
	s.Parity = strings.ToUpper(s.Parity)
	if s.Timeout == 0 {
		s.Timeout = 500 * time.Millisecond
	}
}

// ParseSlaveIDs parses a string of slave IDs (e.g. "1,2,5-10") into a slice of bytes.
func ParseSlaveIDs(input string) ([]byte, error) {
	var ids []byte
	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		lo, hi, isRange := strings.Cut(part, "-")
		start, err := parseID(lo)
		if err != nil {
			return nil, err
		}
		end := start
		if isRange {
			if end, err = parseID(hi); err != nil {
				return nil, err
			}
			if start > end {
				return nil, fmt.Errorf("start of range %d is greater than end %d", start, end)
			}
		}
		for i := start; i <= end; i++ {
			ids = append(ids, byte(i))
		}
	}
	return ids, nil
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid id: %w", err)
	}
	if id < 0 || id > 255 {
		return 0, fmt.Errorf("id out of range: %d", id)
	}
	return id, nil
}
