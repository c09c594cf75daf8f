package state

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// StaticRoute is a route installed at startup as if it had been advertised by Via
type StaticRoute struct {
	Network NetworkId  `yaml:"network"`
	Via     SourceAddr `yaml:"via"`
	Port    int        `yaml:"port"`
	Metric  int        `yaml:"metric"`
	Class   RouteClass `yaml:"class,omitempty"`
}

// LocalCfg represents local node-level configuration
type LocalCfg struct {
	Id      string        `yaml:"id"`                 // unique name for this node
	Host    HostId        `yaml:"host"`               // host part of every source address we send from
	Bind    string        `yaml:"bind"`               // udp address the transport listens on
	Ports   []Port        `yaml:"ports"`              // local port table, index in this list is the port number
	Static  []StaticRoute `yaml:"static,omitempty"`   // routes installed at startup
	LogPath string        `yaml:"log_path,omitempty"` // if not empty, logs are also written to this file
	IpcPath string        `yaml:"ipc_path,omitempty"` // unix socket used by inspect, defaults to DefaultIpcPath(Id)
}

func DefaultIpcPath(id string) string {
	return fmt.Sprintf("%s/ddsroute-%s.sock", os.TempDir(), id)
}

// Source returns the address this node uses on the given port
func (c *LocalCfg) Source(port int) SourceAddr {
	addr := SourceAddr{Host: c.Host}
	if port >= 0 && port < len(c.Ports) {
		addr.Network = c.Ports[port].Network
	}
	return addr
}

func (c *LocalCfg) GetIpcPath() string {
	if c.IpcPath == "" {
		return DefaultIpcPath(c.Id)
	}
	return c.IpcPath
}

func ReadLocalConfig(path string) (*LocalCfg, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg LocalCfg
	err = yaml.Unmarshal(file, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &cfg, nil
}

func WriteLocalConfig(path string, cfg *LocalCfg) error {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0600)
}
