package rwbuilder

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/colorfulnotion/rwtrace/program"
)

// Config tunes the builder. The zero value of each field is usable.
type Config struct {
	// MaxCallDepth bounds nested transact frames.
	MaxCallDepth uint32 `json:"max_call_depth"`
	// SyscallFuel is charged on entry to each listed platform function.
	// Unlisted functions are not checked against the fuel budget on entry.
	SyscallFuel map[program.SysFuncIdx]uint64 `json:"syscall_fuel,omitempty"`
	// ReserveThreshold is the bulk length from which the row log is
	// pre-sized before emission.
	ReserveThreshold uint64 `json:"reserve_threshold"`
}

func DefaultConfig() Config {
	return Config{
		MaxCallDepth:     1024,
		SyscallFuel:      map[program.SysFuncIdx]uint64{},
		ReserveThreshold: 256,
	}
}

func (c Config) String() string {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Sprintf("Config{%v}", err)
	}
	return string(b)
}

// LoadConfig reads a JSON config file over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) syscallFuel(idx program.SysFuncIdx) uint64 {
	return c.SyscallFuel[idx]
}
