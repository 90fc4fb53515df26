package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/casks-mutters/event-soundness/internal/common"
	"github.com/casks-mutters/event-soundness/internal/config"
	"github.com/casks-mutters/event-soundness/internal/fetcher"
	"github.com/casks-mutters/event-soundness/internal/logger"
	"github.com/casks-mutters/event-soundness/internal/metrics"
	"github.com/casks-mutters/event-soundness/internal/report"
	"github.com/casks-mutters/event-soundness/internal/rpc"
	"github.com/casks-mutters/event-soundness/internal/sigmap"
)

const version = "1.0.0"

// defaultLookback is how many blocks behind the head the audit starts when
// --from-block is not given.
const defaultLookback = 5000

// errUnsound signals a completed run that found unknown topics or missing
// required events. It maps to exit code 2; every other error maps to 1.
var errUnsound = errors.New("soundness check failed")

var (
	configPath     string
	rpcURL         string
	address        string
	abiPath        string
	fromBlockStr   string
	toBlockStr     string
	step           uint64
	expectedEvents string
	jsonOutput     bool
	timeoutSec     uint64
	concurrency    int
	logLevel       string
	logJSON        bool
	metricsAddr    string
)

var rootCmd = &cobra.Command{
	Use:   "soundness",
	Short: "event-soundness - contract event topic auditor",
	Long: `event-soundness verifies that the event topics emitted by a contract over a
block range match the events declared in its ABI, and optionally that a set
of required events was observed at least once.

Exit codes: 0 = sound, 1 = fatal error, 2 = unknown topics or missing
required events.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runAudit,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errUnsound) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func init() {
	fl := rootCmd.Flags()
	fl.StringVarP(&configPath, "config", "c", "", "path to an optional configuration file (.yaml, .json or .toml)")
	fl.StringVar(&rpcURL, "rpc", "", "EVM RPC URL (default from "+config.EnvRPCURL+")")
	fl.StringVar(&address, "address", "", "contract address to audit")
	fl.StringVar(&abiPath, "abi", "", "path to ABI JSON file containing event definitions")
	fl.StringVar(&fromBlockStr, "from-block", "", "start block, inclusive, decimal or 0x hex (default: latest-5000)")
	fl.StringVar(&toBlockStr, "to-block", "", "end block, inclusive, decimal or 0x hex (default: latest)")
	fl.Uint64Var(&step, "step", 2000, "block chunk size for log queries")
	fl.StringVar(&expectedEvents, "expected-events", "", "JSON file with required event names (array of strings)")
	fl.BoolVar(&jsonOutput, "json", false, "also emit a machine-readable JSON summary")
	fl.Uint64Var(&timeoutSec, "timeout", 30, "RPC timeout in seconds")
	fl.IntVar(&concurrency, "concurrency", 1, "maximum chunk fetches in flight (1 = sequential)")
	fl.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	fl.BoolVar(&logJSON, "log-json", false, "emit structured JSON logs instead of console output")
	fl.StringVar(&metricsAddr, "metrics-addr", "", "expose Prometheus metrics on this address during the run")
}

// buildConfig merges the optional config file, the flags and the environment
// into one validated Config. Explicit flags win over the file.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := &config.Config{}
	if configPath != "" {
		loaded, err := config.LoadFromFile(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	fl := cmd.Flags()
	if fl.Changed("rpc") {
		cfg.RPCURL = rpcURL
	}
	if fl.Changed("address") {
		cfg.Address = address
	}
	if fl.Changed("abi") {
		cfg.ABIPath = abiPath
	}
	if fl.Changed("step") {
		// an explicit zero means "smallest chunk", not "use the default"
		cfg.Step = max(step, 1)
	}
	if fl.Changed("expected-events") {
		cfg.ExpectedEventsPath = expectedEvents
	}
	if fl.Changed("json") {
		cfg.JSONOutput = jsonOutput
	}
	if fl.Changed("timeout") {
		cfg.Timeout = common.NewDuration(time.Duration(timeoutSec) * time.Second)
	}
	if fl.Changed("concurrency") {
		cfg.Concurrency = concurrency
	}
	if fl.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if fl.Changed("log-json") || configPath == "" {
		cfg.Logging.Development = !logJSON
	}
	if fl.Changed("metrics-addr") {
		cfg.Metrics = &config.MetricsConfig{Enabled: true, ListenAddress: metricsAddr}
	}

	if fromBlockStr != "" {
		from, err := common.ParseUint64orHex(&fromBlockStr)
		if err != nil {
			return nil, fmt.Errorf("invalid --from-block %q: %w", fromBlockStr, err)
		}
		cfg.FromBlock = &from
	}
	if toBlockStr != "" {
		to, err := common.ParseUint64orHex(&toBlockStr)
		if err != nil {
			return nil, fmt.Errorf("invalid --to-block %q: %w", toBlockStr, err)
		}
		cfg.ToBlock = &to
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runAudit(cmd *cobra.Command, args []string) error {
	startTime := time.Now()

	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	log, err := logger.NewLogger(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close() //nolint:errcheck

	if cmd.Flags().Changed("step") && step == 0 {
		log.Warnf("--step 0 coerced to 1")
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\ninterrupted, shutting down...")
		cancel()
	}()

	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(cfg.Metrics, log.WithComponent(common.ComponentMetrics))
		if err := metricsServer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer func() {
			if err := metricsServer.Stop(context.Background()); err != nil {
				log.Warnf("failed to stop metrics server: %v", err)
			}
		}()
		log.Infof("metrics server listening on %s%s", cfg.Metrics.ListenAddress, cfg.Metrics.Path)
	}

	client, err := rpc.NewClient(ctx, cfg.RPCURL, cfg.Timeout.Duration)
	if err != nil {
		return fmt.Errorf("RPC connection failed, check %s or --rpc: %w", config.EnvRPCURL, err)
	}
	defer client.Close()

	fmt.Println("🔧 event-soundness (event topic interface auditor)")
	fmt.Printf("🔗 RPC: %s\n", cfg.RPCURL)

	// The latest-block query doubles as the connectivity check.
	latest, err := client.LatestBlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("RPC connection failed, check %s or --rpc: %w", config.EnvRPCURL, err)
	}

	// Chain-id retrieval failure is tolerated; the summary reports null.
	chainID, err := client.ChainID(ctx)
	if err != nil {
		log.Warnf("could not retrieve chain id: %v", err)
		chainID = nil
	} else {
		fmt.Printf("🧭 Chain ID: %s\n", chainID)
	}

	fromBlock := max(0, int64(latest)-defaultLookback)
	if cfg.FromBlock != nil {
		fromBlock = int64(*cfg.FromBlock)
	}
	toBlock := latest
	if cfg.ToBlock != nil {
		toBlock = *cfg.ToBlock
	}
	if uint64(fromBlock) > toBlock {
		return config.ErrInvalidRange
	}

	checksummed := ethcommon.HexToAddress(cfg.Address)
	fmt.Printf("🏷️ Address: %s\n", checksummed.Hex())
	fmt.Printf("🧱 Blocks: %d → %d (step=%d)\n", fromBlock, toBlock, cfg.Step)

	sigMap, err := sigmap.LoadFile(cfg.ABIPath, log.WithComponent(common.ComponentSigMap))
	if err != nil {
		return fmt.Errorf("failed to load ABI: %w", err)
	}
	if len(sigMap) == 0 {
		fmt.Println("⚠️ No events found in ABI; nothing to verify against.")
	}

	var requiredEvents []string
	if cfg.ExpectedEventsPath != "" {
		requiredEvents, err = report.LoadRequiredEvents(cfg.ExpectedEventsPath)
		if err != nil {
			return fmt.Errorf("failed to load expected events: %w", err)
		}
	}

	lf := fetcher.New(fetcher.Config{
		Address:     checksummed,
		Step:        cfg.Step,
		Concurrency: cfg.Concurrency,
	}, client, log.WithComponent(common.ComponentFetcher))

	logs, err := lf.FetchAll(ctx, uint64(fromBlock), toBlock)
	if err != nil {
		return fmt.Errorf("failed to fetch logs: %w", err)
	}

	rep := report.New(report.Params{
		RPCURL:         cfg.RPCURL,
		ChainID:        chainID,
		Address:        checksummed,
		FromBlock:      uint64(fromBlock),
		ToBlock:        toBlock,
		SigMap:         sigMap,
		Logs:           logs,
		RequiredEvents: requiredEvents,
		Elapsed:        time.Since(startTime),
	})

	rep.WriteText(os.Stdout)
	if cfg.JSONOutput {
		if err := rep.WriteJSON(os.Stdout); err != nil {
			return fmt.Errorf("failed to emit JSON summary: %w", err)
		}
	}

	if !rep.Sound() {
		return errUnsound
	}
	return nil
}
