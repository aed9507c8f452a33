package config

import (
	"encoding/hex"
	"fmt"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/jessevdk/go-flags"
	"go.uber.org/zap/zapcore"

	"github.com/reservelabs/reserve-watchdog/metrics"
	"github.com/reservelabs/reserve-watchdog/types"
	"github.com/reservelabs/reserve-watchdog/util"
)

// Constants for config default values
const (
	defaultLogLevel       = zapcore.DebugLevel
	defaultLogDirname     = "logs"
	defaultLogFilename    = "rwd.log"
	defaultConfigFileName = "rwd.conf"
	defaultDataDirname    = "data"
	defaultNetwork        = "mainnet"

	defaultConsensusThreshold  = 3
	defaultBaseChallengePeriod = time.Hour
	defaultDifficultyFactor    = 6
	defaultRelayRetryAttempts  = 5
	defaultBitcoindRPCHost     = "127.0.0.1:8332"
)

var (
	//   C:\Users\<username>\AppData\Local\Rwd on Windows
	//   ~/.rwd on Linux
	//   ~/Users/<username>/Library/Application Support/Rwd on MacOS
	DefaultRwdDir = btcutil.AppDataDir("rwd", false)

	DefaultDataDir = DataDir(DefaultRwdDir)
)

// Config is the main config for the rwd cli command
type Config struct {
	LogLevel string `long:"loglevel" description:"Logging level for all subsystems" choice:"debug" choice:"info" choice:"warn" choice:"error" choice:"fatal"`
	// Network names the Bitcoin network payment proofs are verified
	// against.
	Network string `long:"network" description:"the Bitcoin network the custodial wallets live on" choice:"mainnet" choice:"testnet" choice:"regtest" choice:"simnet" choice:"signet"`
	// AdminPubKey is the hex-encoded x-only public key holding the
	// membership-management, emergency and pause capabilities.
	AdminPubKey string `long:"adminpubkey" description:"hex-encoded 32-byte x-only public key of the administrator"`

	ConsensusConfig *ConsensusConfig `group:"consensus" namespace:"consensus"`

	RelayConfig *RelayConfig `group:"relay" namespace:"relay"`

	DatabaseConfig *DBConfig `group:"dbconfig" namespace:"dbconfig"`

	Metrics *metrics.Config `group:"metrics" namespace:"metrics"`
}

// ConsensusConfig carries the initial consensus parameters applied when
// the ledger has no stored ones yet. A populated ledger keeps its stored
// parameters; changing them afterwards goes through the engine.
type ConsensusConfig struct {
	Threshold           uint32        `long:"threshold" description:"minimum number of agreeing watchdogs considered decisive"`
	BaseChallengePeriod time.Duration `long:"basechallengeperiod" description:"challenge window granted to an uncontested operation"`
}

func DefaultConsensusConfig() ConsensusConfig {
	return ConsensusConfig{
		Threshold:           defaultConsensusThreshold,
		BaseChallengePeriod: defaultBaseChallengePeriod,
	}
}

func (cfg *ConsensusConfig) Validate() error {
	if cfg.Threshold < types.MinConsensusThreshold {
		return fmt.Errorf("threshold must be at least %d, got %d", types.MinConsensusThreshold, cfg.Threshold)
	}
	if cfg.BaseChallengePeriod < types.MinChallengePeriod || cfg.BaseChallengePeriod > types.MaxChallengePeriod {
		return fmt.Errorf("base challenge period %s outside [%s, %s]",
			cfg.BaseChallengePeriod, types.MinChallengePeriod, types.MaxChallengePeriod)
	}

	return nil
}

// RelayConfig selects and configures the difficulty source the proof
// verifier trusts.
type RelayConfig struct {
	// Static switches from the bitcoind-backed relay to the
	// operator-maintained one; epoch difficulties then come from the
	// companion static fields below.
	Static bool `long:"static" description:"use operator-maintained static epoch difficulties instead of a bitcoind node"`

	StaticCurrentDifficulty uint64 `long:"staticcurrentdifficulty" description:"current epoch difficulty for the static relay"`
	StaticPrevDifficulty    uint64 `long:"staticprevdifficulty" description:"previous epoch difficulty for the static relay"`

	BitcoindRPCHost string `long:"bitcoindrpchost" description:"host:port of the bitcoind RPC interface"`
	BitcoindRPCUser string `long:"bitcoindrpcuser" description:"bitcoind RPC username"`
	BitcoindRPCPass string `long:"bitcoindrpcpass" description:"bitcoind RPC password"`

	RetryAttempts    uint `long:"retryattempts" description:"number of attempts for each bitcoind RPC query"`
	DifficultyFactor uint `long:"difficultyfactor" description:"number of epochs of accumulated work a proof must carry"`
}

func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		BitcoindRPCHost:  defaultBitcoindRPCHost,
		RetryAttempts:    defaultRelayRetryAttempts,
		DifficultyFactor: defaultDifficultyFactor,
	}
}

func (cfg *RelayConfig) Validate() error {
	if cfg.DifficultyFactor == 0 {
		return fmt.Errorf("difficulty factor must be positive")
	}
	if cfg.Static {
		if cfg.StaticCurrentDifficulty == 0 || cfg.StaticPrevDifficulty == 0 {
			return fmt.Errorf("static relay requires both epoch difficulties")
		}

		return nil
	}
	if cfg.BitcoindRPCHost == "" {
		return fmt.Errorf("bitcoind RPC host cannot be empty")
	}
	if cfg.RetryAttempts == 0 {
		return fmt.Errorf("retry attempts must be positive")
	}

	return nil
}

func DefaultConfigWithHome(homePath string) Config {
	consensusCfg := DefaultConsensusConfig()
	relayCfg := DefaultRelayConfig()
	cfg := Config{
		LogLevel:        defaultLogLevel.String(),
		Network:         defaultNetwork,
		ConsensusConfig: &consensusCfg,
		RelayConfig:     &relayCfg,
		DatabaseConfig:  DefaultDBConfigWithHomePath(homePath),
		Metrics:         metrics.DefaultConfig(),
	}

	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	return cfg
}

func DefaultConfig() Config {
	return DefaultConfigWithHome(DefaultRwdDir)
}

func CfgFile(homePath string) string {
	return filepath.Join(homePath, defaultConfigFileName)
}

func LogDir(homePath string) string {
	return filepath.Join(homePath, defaultLogDirname)
}

func LogFile(homePath string) string {
	return filepath.Join(LogDir(homePath), defaultLogFilename)
}

func DataDir(homePath string) string {
	return filepath.Join(homePath, defaultDataDirname)
}

// LoadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
func LoadConfig(homePath string) (*Config, error) {
	// The home directory is required to have a configuration file with a specific name
	// under it.
	cfgFile := CfgFile(homePath)
	if !util.FileExists(cfgFile) {
		return nil, fmt.Errorf("specified config file does "+
			"not exist in %s", cfgFile)
	}

	// Next, load any additional configuration options from the file.
	var cfg Config
	fileParser := flags.NewParser(&cfg, flags.Default)
	err := flags.NewIniParser(fileParser).ParseFile(cfgFile)
	if err != nil {
		return nil, err
	}

	// Make sure everything we just loaded makes sense.
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the given configuration to be sane. This makes sure no
// illegal values or a combination of values are set.
func (cfg *Config) Validate() error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if _, err := cfg.NetParams(); err != nil {
		return err
	}

	if cfg.AdminPubKey != "" {
		if _, err := cfg.AdminKey(); err != nil {
			return fmt.Errorf("admin key validation failed: %w", err)
		}
	}

	if cfg.ConsensusConfig == nil {
		return fmt.Errorf("consensus config cannot be empty")
	}
	if err := cfg.ConsensusConfig.Validate(); err != nil {
		return fmt.Errorf("consensus configuration validation failed: %w", err)
	}

	if cfg.RelayConfig == nil {
		return fmt.Errorf("relay config cannot be empty")
	}
	if err := cfg.RelayConfig.Validate(); err != nil {
		return fmt.Errorf("relay configuration validation failed: %w", err)
	}

	if cfg.Metrics == nil {
		return fmt.Errorf("metrics configuration cannot be empty")
	}
	if err := cfg.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics configuration validation failed: %w", err)
	}

	return nil
}

// NetParams resolves the configured network name into chain parameters.
func (cfg *Config) NetParams() (*chaincfg.Params, error) {
	switch cfg.Network {
	case "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "simnet":
		return &chaincfg.SimNetParams, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	default:
		return nil, fmt.Errorf("unsupported network: %s", cfg.Network)
	}
}

// AdminKey decodes the configured administrator public key.
func (cfg *Config) AdminKey() (*btcec.PublicKey, error) {
	raw, err := hex.DecodeString(cfg.AdminPubKey)
	if err != nil {
		return nil, fmt.Errorf("admin key is not valid hex: %w", err)
	}
	if len(raw) != schnorr.PubKeyBytesLen {
		return nil, fmt.Errorf("admin key must be %d bytes, got %d", schnorr.PubKeyBytesLen, len(raw))
	}

	return schnorr.ParsePubKey(raw)
}
