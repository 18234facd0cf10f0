package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	// DatadirKey is the local data directory to store the internal state of
	// the daemon.
	DatadirKey = "DATADIR"
	// LogLevelKey are the different logging levels. For reference on the
	// values https://godoc.org/github.com/sirupsen/logrus#Level
	LogLevelKey = "LOG_LEVEL"
	// ExplorerEndpointKey is the endpoint of the esplora-style block-data
	// provider used to verify fee, deposit and payout transactions.
	ExplorerEndpointKey = "EXPLORER_ENDPOINT"
	// CrawlIntervalKey is the interval in milliseconds between polls of the
	// status of a watched transaction.
	CrawlIntervalKey = "CRAWL_INTERVAL"
	// CrawlLimitKey caps the requests per second towards the block-data
	// provider across all the watched transactions.
	CrawlLimitKey = "CRAWL_LIMIT"
	// RequiredConfirmationsKey is the number of confirmations a deposit tx
	// needs before a trade advances.
	RequiredConfirmationsKey = "REQUIRED_CONFIRMATIONS"
	// TradeTimeoutKey is the duration after which a stalled trade is
	// canceled or escalated to dispute.
	TradeTimeoutKey = "TRADE_TIMEOUT"
	// StatsPortKey is the port where the prometheus metrics are served.
	StatsPortKey = "STATS_PORT"
	// StatsIntervalKey defines the interval for logging basic process
	// statistics. 0 disables them.
	StatsIntervalKey = "STATS_INTERVAL"
	// WalletAddrKey is the address <host:port> of the external wallet daemon
	// that keeps custody of the keys.
	WalletAddrKey = "WALLET_ADDR"
	// PeerListeningPortKey is the port where trade messages from peers are
	// received.
	PeerListeningPortKey = "PEER_LISTENING_PORT"

	DbLocation = "db"
)

var vip *viper.Viper

func init() {
	vip = viper.New()
	vip.SetEnvPrefix("VEILSWAP")
	vip.AutomaticEnv()

	defaultDatadir := ""
	if home, err := os.UserHomeDir(); err == nil {
		defaultDatadir = filepath.Join(home, ".veilswap-daemon")
	}

	vip.SetDefault(DatadirKey, defaultDatadir)
	vip.SetDefault(LogLevelKey, int(log.InfoLevel))
	vip.SetDefault(ExplorerEndpointKey, "https://blockstream.info/api")
	vip.SetDefault(CrawlIntervalKey, 5000)
	vip.SetDefault(CrawlLimitKey, 10.0)
	vip.SetDefault(RequiredConfirmationsKey, 1)
	vip.SetDefault(TradeTimeoutKey, 24*time.Hour)
	vip.SetDefault(StatsPortKey, 9089)
	vip.SetDefault(StatsIntervalKey, time.Duration(0))
	vip.SetDefault(WalletAddrKey, "localhost:18554")
	vip.SetDefault(PeerListeningPortKey, 9735)
}

// Validate checks the sanity of the configuration at startup.
func Validate() error {
	if len(GetString(ExplorerEndpointKey)) <= 0 {
		return fmt.Errorf("%s must not be empty", ExplorerEndpointKey)
	}
	if GetInt(RequiredConfirmationsKey) < 1 {
		return fmt.Errorf("%s must be at least 1", RequiredConfirmationsKey)
	}
	datadir := GetString(DatadirKey)
	if len(datadir) <= 0 {
		return fmt.Errorf("%s must not be empty", DatadirKey)
	}
	return os.MkdirAll(filepath.Join(datadir, DbLocation), 0755)
}

// GetString ...
func GetString(key string) string {
	return vip.GetString(key)
}

// GetInt ...
func GetInt(key string) int {
	return vip.GetInt(key)
}

// GetFloat ...
func GetFloat(key string) float64 {
	return vip.GetFloat64(key)
}

// GetDuration ...
func GetDuration(key string) time.Duration {
	return vip.GetDuration(key)
}

// GetDatadir returns the data directory of the daemon.
func GetDatadir() string {
	return GetString(DatadirKey)
}

// GetDbDir returns the directory holding the badger store.
func GetDbDir() string {
	return filepath.Join(GetDatadir(), DbLocation)
}
