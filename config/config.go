// Package config loads the JSON configuration file describing a node's
// local-node flags, per-medium wire settings, and log settings — the only
// runtime-configurable surface this system has (spec.md §6); everything
// else (pool counts, MTU, graph size, timeouts) is a compile-time constant
// elsewhere in the tree.
//
// Grounded on the teacher's config/setting.go: a JSON file unmarshaled into
// a struct, a Reload(path) entry point, and per-section verify(). Unlike the
// teacher, there is no package-level init()/global — §9's "no singletons"
// note means the caller (cmd/meshnode's main) loads a Config once and
// threads it down by reference.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// DefaultConfigEnvVar mirrors the teacher's MOTO_CONFIG override, renamed
// for this module; it selects which file Load reads when no explicit path
// is given, never the core's own runtime behavior.
const DefaultConfigEnvVar = "MOTO_MESH_CONFIG"

const defaultConfigPath = "mesh.json"

// LocalNode mirrors netcore.Config's two runtime flags.
type LocalNode struct {
	EnableAutoNeighborDiscovery bool  `json:"enable_auto_neighbor_discovery"`
	EnableDynamicCostUpdate     bool  `json:"enable_dynamic_cost_update"`
	Cluster                     uint8 `json:"cluster"` // 0xFF (netcore.NoCluster) means unassigned
}

// UHF holds the UHF modem's bring-up settings.
type UHF struct {
	Port         string `json:"port"`
	EquipmentID  string `json:"equipment_id"` // not read: the UHF driver takes its id from the modem's *EI= or *SN= response
}

// WiFi holds the Wi-Fi module's join credentials and server settings.
type WiFi struct {
	Port     string `json:"port"`
	SSID     string `json:"ssid"`
	Password string `json:"password"`
	UDPPort  uint16 `json:"udp_port"`
}

// Serial holds the point-to-point serial driver's settings.
type Serial struct {
	Port     string `json:"port"`
	Preamble []byte `json:"preamble"` // 1-4 bytes; defaults to link/serial.DefaultPreamble
	Self     uint8  `json:"self"`     // this node's serial address byte
}

// Log mirrors the teacher's log section.
type Log struct {
	Level string `json:"level"`
	Path  string `json:"path"`
}

// Tunnel holds cmd/meshnode's optional debug listener settings. ListenAddr
// bridges the mesh-side Tunnel protocol to a remote QUIC client, forwarding
// the client's bytes one hop to PeerKind/PeerID exactly like any other
// direct-link protocol (Discover, LinkState); DebugAddr (separate, since it
// answers one-shot introspection queries rather than carrying mesh traffic)
// serves cmd/meshctl's neighbor-table query. Either listener is disabled by
// leaving its address empty.
type Tunnel struct {
	ListenAddr string `json:"listen_addr"`
	DebugAddr  string `json:"debug_addr"`
	PeerKind   string `json:"peer_kind"` // "serial" or "uhf"
	PeerID     uint16 `json:"peer_id"`
}

// Config is the top-level unmarshal target for mesh.json.
type Config struct {
	LocalNode LocalNode `json:"local_node"`
	UHF       UHF       `json:"uhf"`
	WiFi      WiFi      `json:"wifi"`
	Serial    Serial    `json:"serial"`
	Log       Log       `json:"log"`
	Tunnel    Tunnel    `json:"tunnel"`
}

// ResolvePath returns the path Load should read: the explicit override env
// var if set, else defaultConfigPath.
func ResolvePath() string {
	if p := os.Getenv(DefaultConfigEnvVar); p != "" {
		return p
	}
	return defaultConfigPath
}

// Load reads and validates the config file at path, applying defaults and
// running verify().
func Load(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := json.Unmarshal(buf, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.verify(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &cfg, nil
}

// Reload re-reads path into a fresh Config, leaving any previously loaded
// Config the caller is still holding untouched — callers swap their own
// pointer on success.
func Reload(path string) (*Config, error) {
	return Load(path)
}

// verify fills in defaults and rejects a config that can never bring up a
// node (every medium's port is empty — nothing to talk to).
func (c *Config) verify() error {
	if c.UHF.Port == "" && c.WiFi.Port == "" && c.Serial.Port == "" {
		return fmt.Errorf("no medium port configured")
	}
	if len(c.Serial.Preamble) == 0 {
		c.Serial.Preamble = []byte{0x2e, 0x34}
	}
	if len(c.Serial.Preamble) > 4 {
		return fmt.Errorf("serial preamble exceeds 4 bytes")
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Path == "" {
		c.Log.Path = "mesh.log"
	}
	return nil
}
