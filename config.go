package easyauction

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Zappss/ido-contracts/auctiondb"
	"github.com/Zappss/ido-contracts/monitoring"
)

const (
	// DefaultAuctionServerDirname is the default directory name in which
	// all data is stored.
	DefaultAuctionServerDirname = "auctionserver"

	// defaultLogFilename is the default name of the log file.
	defaultLogFilename = "auctionserver.log"

	defaultLogLevel       = "info"
	defaultMaxLogFiles    = 3
	defaultMaxLogFileSize = 10

	// defaultPhaseCheckInterval is how often the phase watcher sweeps
	// the open auctions for crossed time boundaries.
	defaultPhaseCheckInterval = 10 * time.Second

	// defaultMaxBatchSize bounds the number of orders in a single
	// placement or cancellation batch. Claim batches are not bounded.
	defaultMaxBatchSize = 100
)

var (
	// DefaultBaseDir is the default root data directory of the server.
	DefaultBaseDir = func() string {
		home, err := os.UserHomeDir()
		if err != nil {
			return DefaultAuctionServerDirname
		}
		return filepath.Join(
			home, "."+DefaultAuctionServerDirname,
		)
	}()
)

// Config holds the flag-configurable parameters of the auction server.
type Config struct {
	Network string `long:"network" description:"network namespace all data is stored under" choice:"regtest" choice:"testnet" choice:"mainnet"`
	BaseDir string `long:"basedir" description:"The base directory where auctionserver stores all its data"`

	Store string `long:"store" description:"the storage backend to use" choice:"etcd" choice:"memory"`

	FeeSetter string `long:"feesetter" description:"the only address allowed to update the fee parameters"`

	PhaseCheckInterval time.Duration `long:"phasecheckinterval" description:"how often the open auctions are swept for phase transitions: 10s, 1m, etc"`
	MaxBatchSize       int           `long:"maxbatchsize" description:"the maximum number of orders in a single placement or cancellation batch"`

	LogDir         string `long:"logdir" description:"Directory to log output."`
	MaxLogFiles    int    `long:"maxlogfiles" description:"Maximum logfiles to keep (0 for no rotation)"`
	MaxLogFileSize int    `long:"maxlogfilesize" description:"Maximum logfile size in MB"`

	DebugLevel string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`

	Etcd       *auctiondb.EtcdConfig        `group:"etcd" namespace:"etcd"`
	SQL        *auctiondb.SQLConfig         `group:"sql" namespace:"sql"`
	Prometheus *monitoring.PrometheusConfig `group:"prometheus" namespace:"prometheus"`
}

// DefaultConfig returns the default config for an auction server.
func DefaultConfig() *Config {
	return &Config{
		Network:            "mainnet",
		BaseDir:            DefaultBaseDir,
		Store:              "etcd",
		PhaseCheckInterval: defaultPhaseCheckInterval,
		MaxBatchSize:       defaultMaxBatchSize,
		LogDir:             filepath.Join(DefaultBaseDir, "logs"),
		MaxLogFiles:        defaultMaxLogFiles,
		MaxLogFileSize:     defaultMaxLogFileSize,
		DebugLevel:         defaultLogLevel,
		Etcd: &auctiondb.EtcdConfig{
			Host: "localhost:2379",
		},
		SQL:        &auctiondb.SQLConfig{},
		Prometheus: &monitoring.PrometheusConfig{},
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.PhaseCheckInterval <= 0 {
		return fmt.Errorf("invalid phase check interval %v",
			c.PhaseCheckInterval)
	}
	if c.MaxBatchSize < 0 {
		return fmt.Errorf("invalid max batch size %d", c.MaxBatchSize)
	}
	if c.Store == "etcd" && c.Etcd.Host == "" {
		return fmt.Errorf("etcd host required for the etcd store")
	}

	return nil
}
