package daemon

import (
	"fmt"
	"math/big"
	"path/filepath"

	"github.com/btcsuite/btcd/rpcclient"
	"github.com/juju/fslock"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reservelabs/reserve-watchdog/log"
	"github.com/reservelabs/reserve-watchdog/metrics"
	"github.com/reservelabs/reserve-watchdog/spv"
	"github.com/reservelabs/reserve-watchdog/types"
	"github.com/reservelabs/reserve-watchdog/util"
	wdcfg "github.com/reservelabs/reserve-watchdog/watchdog/config"
	"github.com/reservelabs/reserve-watchdog/watchdog/service"
)

// lockFileName is the file lock guarding against concurrent daemons on
// the same home directory.
const lockFileName = "rwd.lock"

// CommandStart returns the start command of rwd daemon.
func CommandStart(binaryName string) *cobra.Command {
	var cmd = &cobra.Command{
		Use:     "start",
		Short:   "Start the reserve-watchdog daemon.",
		Long:    `Start the reserve-watchdog daemon. Note that the home directory should be initialized beforehand`,
		Example: fmt.Sprintf(`%s start --home /home/user/.rwd`, binaryName),
		Args:    cobra.NoArgs,
		RunE:    runStartCmd,
	}

	return cmd
}

func runStartCmd(cmd *cobra.Command, _ []string) error {
	home, err := cmd.Flags().GetString(HomeFlag)
	if err != nil {
		return fmt.Errorf("failed to read flag %s: %w", HomeFlag, err)
	}
	homePath, err := filepath.Abs(home)
	if err != nil {
		return fmt.Errorf("failed to get home path: %w", err)
	}
	homePath = util.CleanAndExpandPath(homePath)

	cfg, err := wdcfg.LoadConfig(homePath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.AdminPubKey == "" {
		return fmt.Errorf("adminpubkey must be set to start the daemon")
	}

	lock := fslock.New(filepath.Join(homePath, lockFileName))
	if err := lock.TryLock(); err != nil {
		return fmt.Errorf("another rwd daemon already holds %s: %w", homePath, err)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	logger, err := log.NewRootLoggerWithFile(wdcfg.LogFile(homePath), cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize the logger: %w", err)
	}

	dbBackend, err := cfg.DatabaseConfig.GetDBBackend()
	if err != nil {
		return fmt.Errorf("failed to create db backend: %w", err)
	}
	defer func() {
		_ = dbBackend.Close()
	}()

	relay, chain, err := buildRelay(cfg.RelayConfig)
	if err != nil {
		return fmt.Errorf("failed to build difficulty relay: %w", err)
	}

	netParams, err := cfg.NetParams()
	if err != nil {
		return err
	}
	verifier := spv.NewVerifier(relay, netParams, uint64(cfg.RelayConfig.DifficultyFactor))

	adminKey, err := cfg.AdminKey()
	if err != nil {
		return err
	}

	initialParams := types.DefaultConsensusParams()
	initialParams.Threshold = cfg.ConsensusConfig.Threshold
	initialParams.SetBasePeriod(cfg.ConsensusConfig.BaseChallengePeriod)

	wdMetrics := metrics.NewWatchdogMetrics()
	engine, err := service.NewEngine(dbBackend, verifier, chain, adminKey, initialParams, wdMetrics, logger)
	if err != nil {
		return fmt.Errorf("failed to create consensus engine: %w", err)
	}

	params, err := engine.Params()
	if err != nil {
		return err
	}
	roster, err := engine.Watchdogs()
	if err != nil {
		return err
	}
	wdMetrics.SetActiveWatchdogs(uint32(len(roster)))
	logger.Info("consensus engine ready",
		zap.Uint32("threshold", params.Threshold),
		zap.Duration("base_period", params.BasePeriod),
		zap.Int("active_watchdogs", len(roster)))

	metricsAddr, err := cfg.Metrics.Address()
	if err != nil {
		return err
	}
	metricsServer := metrics.Start(metricsAddr, logger)
	defer metricsServer.Stop(cmd.Context())

	logger.Info("reserve-watchdog daemon is running")
	<-cmd.Context().Done()
	logger.Info("shutting down")

	return nil
}

// buildRelay wires the configured difficulty source and the matching
// chain-tip source for proposer rotation.
func buildRelay(cfg *wdcfg.RelayConfig) (spv.Relay, service.ChainInfo, error) {
	if cfg.Static {
		relay := spv.NewStaticRelay(
			new(big.Int).SetUint64(cfg.StaticCurrentDifficulty),
			new(big.Int).SetUint64(cfg.StaticPrevDifficulty),
		)

		return relay, relay, nil
	}

	client, err := rpcclient.New(&rpcclient.ConnConfig{
		Host:         cfg.BitcoindRPCHost,
		User:         cfg.BitcoindRPCUser,
		Pass:         cfg.BitcoindRPCPass,
		HTTPPostMode: true,
		DisableTLS:   true,
	}, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to bitcoind: %w", err)
	}

	relay := spv.NewBitcoindRelay(client, cfg.RetryAttempts)

	return relay, relay, nil
}
