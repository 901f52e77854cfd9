/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package models

import (
	"fmt"
	"time"

	"github.com/carverauto/farmradar/pkg/logger"
)

const (
	DefaultSyncInterval      = 10 * time.Second
	DefaultReconnectDelay    = 5 * time.Second
	DefaultPollInterval      = 10 * time.Second
	DefaultCheckInterval     = 5 * time.Second
	DefaultTailPollInterval  = 250 * time.Millisecond
	DefaultTailReopenDelay   = 5 * time.Second
	DefaultOverdueThreshold  = 30 * time.Second
	DefaultTimeoutThreshold  = 120 * time.Second
	DefaultPlotStaleAfter    = 24 * time.Hour
	DefaultCollectorTimeout  = 5 * time.Second
	DefaultRPCTimeout        = 10 * time.Second
	DefaultCoreListenAddr    = ":50061"
	DefaultCoreHTTPAddr      = ":8090"
	DefaultCoreMaxRecvSize   = 16 << 20
	DefaultNATSStream        = "FARMRADAR"
	DefaultNATSSubjectPrefix = "farmradar.changes"
)

// DefaultRateLimits are the minimum UPDATE intervals per category.
func DefaultRateLimits() map[Category]Duration {
	return map[Category]Duration{
		CategoryCPU:             Duration(60 * time.Second),
		CategoryRAM:             Duration(60 * time.Second),
		CategorySwap:            Duration(60 * time.Second),
		CategoryDisk:            Duration(60 * time.Second),
		CategoryFullNode:        Duration(30 * time.Second),
		CategoryPlotInProgress:  Duration(30 * time.Second),
		CategoryFarmerHarvester: Duration(30 * time.Second),
	}
}

// SecurityMode selects transport security between agent and core.
type SecurityMode string

const (
	SecurityModeNone SecurityMode = "none"
	SecurityModeMTLS SecurityMode = "mtls"
)

type TLSConfig struct {
	CertFile string `json:"cert_file"`
	KeyFile  string `json:"key_file"`
	CAFile   string `json:"ca_file"`
}

// SecurityConfig holds common security configuration. Relative TLS file
// names are resolved against CertDir.
type SecurityConfig struct {
	Mode       SecurityMode `json:"mode"`
	CertDir    string       `json:"cert_dir"`
	ServerName string       `json:"server_name,omitempty"`
	TLS        TLSConfig    `json:"tls"`
}

func (c *SecurityConfig) Validate() error {
	if c == nil {
		return nil
	}

	switch c.Mode {
	case "", SecurityModeNone:
		return nil
	case SecurityModeMTLS:
		if c.TLS.CertFile == "" || c.TLS.KeyFile == "" || c.TLS.CAFile == "" {
			return errSecurityFilesRequired
		}

		return nil
	default:
		return errSecurityModeInvalid
	}
}

// TimeoutConfig holds the harvester response thresholds.
type TimeoutConfig struct {
	Overdue  Duration `json:"overdue"`
	TimedOut Duration `json:"timed_out"`
}

// TailerConfig tunes the log tailers.
type TailerConfig struct {
	PollInterval Duration `json:"poll_interval"`
	ReopenDelay  Duration `json:"reopen_delay"`
}

// RPCEndpoint is the control API of one monitored service. The client
// certificate is the service's private certificate.
type RPCEndpoint struct {
	URL      string   `json:"url"`
	CertFile string   `json:"cert_file"`
	KeyFile  string   `json:"key_file"`
	CAFile   string   `json:"ca_file"`
	Timeout  Duration `json:"timeout"`
}

// ServicesConfig lists the control APIs to poll. Nil entries are not polled.
type ServicesConfig struct {
	Farmer    *RPCEndpoint `json:"farmer,omitempty"`
	Harvester *RPCEndpoint `json:"harvester,omitempty"`
	Wallet    *RPCEndpoint `json:"wallet,omitempty"`
	FullNode  *RPCEndpoint `json:"full_node,omitempty"`
}

// AgentConfig represents the configuration for an agent instance.
type AgentConfig struct {
	MachineID       string                `json:"machine_id"`
	MachineName     string                `json:"machine_name"`
	ServerAddr      string                `json:"server_addr"`
	LogFile         string                `json:"log_file"`
	PlottingLogFile string                `json:"plotting_log_file,omitempty"`
	SyncInterval    Duration              `json:"sync_interval"`
	ReconnectDelay  Duration              `json:"reconnect_delay"`
	PollInterval    Duration              `json:"poll_interval"`
	CheckInterval   Duration              `json:"check_interval"`
	PlotStaleAfter  Duration              `json:"plot_stale_after"`
	Timeouts        TimeoutConfig         `json:"timeouts"`
	Tailer          TailerConfig          `json:"tailer"`
	RateLimits      map[Category]Duration `json:"rate_limits,omitempty"`
	Services        ServicesConfig        `json:"services"`
	Security        *SecurityConfig       `json:"security"`
	Logging         *logger.Config        `json:"logging,omitempty"`
}

// ApplyDefaults fills every unset tunable with its default.
func (c *AgentConfig) ApplyDefaults() {
	setDefault(&c.SyncInterval, DefaultSyncInterval)
	setDefault(&c.ReconnectDelay, DefaultReconnectDelay)
	setDefault(&c.PollInterval, DefaultPollInterval)
	setDefault(&c.CheckInterval, DefaultCheckInterval)
	setDefault(&c.PlotStaleAfter, DefaultPlotStaleAfter)
	setDefault(&c.Timeouts.Overdue, DefaultOverdueThreshold)
	setDefault(&c.Timeouts.TimedOut, DefaultTimeoutThreshold)
	setDefault(&c.Tailer.PollInterval, DefaultTailPollInterval)
	setDefault(&c.Tailer.ReopenDelay, DefaultTailReopenDelay)

	if c.RateLimits == nil {
		c.RateLimits = DefaultRateLimits()
	}

	if c.MachineName == "" {
		c.MachineName = c.MachineID
	}
}

// Validate implements config.Validator.
func (c *AgentConfig) Validate() error {
	if c.MachineID == "" {
		return errMachineIDRequired
	}

	if c.ServerAddr == "" {
		return errServerAddrRequired
	}

	if c.LogFile == "" {
		return errLogFileRequired
	}

	if c.Timeouts.Overdue > 0 && c.Timeouts.TimedOut > 0 && c.Timeouts.Overdue >= c.Timeouts.TimedOut {
		return errTimeoutOrder
	}

	for cat := range c.RateLimits {
		if _, err := Lookup(cat); err != nil {
			return fmt.Errorf("%w: %s", errRateLimitCategory, cat)
		}
	}

	return c.Security.Validate()
}

// DatabaseDriver selects the SchemaStore backend.
type DatabaseDriver string

const (
	DriverPostgres DatabaseDriver = "postgres"
	DriverSQLite   DatabaseDriver = "sqlite"
)

// DatabaseConfig configures the SchemaStore.
type DatabaseConfig struct {
	Driver   DatabaseDriver `json:"driver"`
	URL      string         `json:"url,omitempty"`
	Path     string         `json:"path,omitempty"`
	MaxConns int32          `json:"max_conns,omitempty"`
	MinConns int32          `json:"min_conns,omitempty"`
}

func (c *DatabaseConfig) Validate() error {
	switch c.Driver {
	case DriverPostgres:
		if c.URL == "" {
			return errDatabaseURLRequired
		}
	case DriverSQLite:
		if c.Path == "" {
			return errDatabasePathRequired
		}
	default:
		return errDatabaseDriver
	}

	return nil
}

// NATSConfig configures the change notifier.
type NATSConfig struct {
	Enabled       bool   `json:"enabled"`
	URL           string `json:"url"`
	Stream        string `json:"stream"`
	SubjectPrefix string `json:"subject_prefix"`
	CredsFile     string `json:"creds_file,omitempty"`
}

// CoreConfig represents the configuration for the core service.
type CoreConfig struct {
	ListenAddr string `json:"listen_addr"`
	HTTPAddr   string `json:"http_addr"`
	APIKey     string `json:"api_key,omitempty"`
	// MaxRecvSize caps the size of one inbound gRPC message in bytes.
	MaxRecvSize int             `json:"max_recv_size,omitempty"`
	Database    DatabaseConfig  `json:"database"`
	NATS        *NATSConfig     `json:"nats,omitempty"`
	Security    *SecurityConfig `json:"security"`
	Logging     *logger.Config  `json:"logging,omitempty"`
}

// ApplyDefaults fills every unset tunable with its default.
func (c *CoreConfig) ApplyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultCoreListenAddr
	}

	if c.HTTPAddr == "" {
		c.HTTPAddr = DefaultCoreHTTPAddr
	}

	if c.MaxRecvSize <= 0 {
		c.MaxRecvSize = DefaultCoreMaxRecvSize
	}

	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}

	if c.NATS != nil {
		if c.NATS.Stream == "" {
			c.NATS.Stream = DefaultNATSStream
		}

		if c.NATS.SubjectPrefix == "" {
			c.NATS.SubjectPrefix = DefaultNATSSubjectPrefix
		}
	}
}

// Validate implements config.Validator.
func (c *CoreConfig) Validate() error {
	if c.ListenAddr == "" {
		return errListenAddrRequired
	}

	if err := c.Database.Validate(); err != nil {
		return err
	}

	if c.NATS != nil && c.NATS.Enabled && c.NATS.URL == "" {
		return errNATSURLRequired
	}

	return c.Security.Validate()
}

func setDefault(d *Duration, def time.Duration) {
	if *d <= 0 {
		*d = Duration(def)
	}
}
