// Command oracled runs the price oracle daemon: it polls every enabled
// exchange on an interval, aggregates and batches the results, submits
// dual-signed transactions to the configured contract, and records an
// attestation for every confirmed batch.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/r3e-network/price-oracle/internal/aggregator"
	"github.com/r3e-network/price-oracle/internal/attestation"
	"github.com/r3e-network/price-oracle/internal/batch"
	"github.com/r3e-network/price-oracle/internal/cache"
	"github.com/r3e-network/price-oracle/internal/config"
	"github.com/r3e-network/price-oracle/internal/cycledriver"
	"github.com/r3e-network/price-oracle/internal/resilience"
	"github.com/r3e-network/price-oracle/internal/rpcclient"
	"github.com/r3e-network/price-oracle/internal/source"
	"github.com/r3e-network/price-oracle/internal/submitter"
	"github.com/r3e-network/price-oracle/internal/sweeper"
	"github.com/r3e-network/price-oracle/internal/symbolmap"
	"github.com/r3e-network/price-oracle/internal/wallet"
)

func main() {
	var configPath string
	var interval time.Duration
	var attestPath string

	root := &cobra.Command{
		Use:   "oracled",
		Short: "Run the off-chain price oracle collection and submission daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath, interval, attestPath)
		},
	}
	root.Flags().StringVar(&configPath, "config", "config.json", "path to the configuration document")
	root.Flags().DurationVar(&interval, "interval", 30*time.Second, "time between collection cycles")
	root.Flags().StringVar(&attestPath, "attestation-db", "attestations.db", "path to the attestation store")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := root.ExecuteContext(ctx); err != nil {
		zerolog.New(os.Stderr).With().Timestamp().Logger().Fatal().Err(err).Msg("oracled exited")
	}
}

func run(ctx context.Context, configPath string, interval time.Duration, attestPath string) error {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("component", "oracled").Logger()

	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	symbols := symbolmap.New(cfg.SymbolMappings)
	registry := buildAdapterRegistry(cfg, symbols, log)

	priceCache := cache.New(30*time.Second, time.Hour)
	agg := aggregator.New()
	builder := batch.New(cfg.BatchProcessing.MaxBatchSize)

	signer, err := wallet.NewDualSigner(cfg.BatchProcessing.TeeAccountPrivateKey, cfg.BatchProcessing.MasterAccountPrivateKey)
	if err != nil {
		return err
	}

	rpc, err := rpcclient.Dial(ctx, cfg.BatchProcessing.RPCEndpoint, log)
	if err != nil {
		return err
	}
	defer rpc.Close()

	status := submitter.NewStatusTable()
	sub := submitter.New(submitter.DefaultConfig(cfg.BatchProcessing.ContractScriptHash), rpc, signer, status, log)

	var sw *sweeper.Sweeper
	if cfg.BatchProcessing.CheckAndTransferTeeAssets {
		sweepCfg := sweeper.DefaultConfig("0x0000000000000000000000000000000000000000", cfg.BatchProcessing.TeeAccountAddress, cfg.BatchProcessing.MasterAccountAddress)
		sw = sweeper.New(sweepCfg, rpc, log)
	}

	attestStore, err := attestation.Open(attestPath, signer.Attester, log)
	if err != nil {
		return err
	}
	defer attestStore.Close()

	driver := cycledriver.New(registry, priceCache, agg, builder, sw, sub, attestStore, log)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Int("symbols", len(cfg.Symbols)).Msg("oracled starting cycle loop")
	for {
		results, err := driver.RunCycle(ctx, cfg.Symbols)
		if err != nil {
			log.Error().Err(err).Msg("cycle failed")
		} else {
			log.Info().Int("batches", len(results)).Msg("cycle complete")
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("oracled shutting down")
			return nil
		case <-ticker.C:
		}
	}
}

func buildAdapterRegistry(cfg *config.Config, symbols *symbolmap.SymbolMap, log zerolog.Logger) *source.Registry {
	resilient := resilience.NewRegistry(resilience.DefaultProductionProfile(), log)

	toSourceConfig := func(s config.SourceConfig) source.Config {
		return source.Config{
			BaseURL:        s.BaseURL,
			TimeoutSeconds: s.TimeoutSeconds,
			APIKey:         s.APIKey,
			APISecret:      s.APISecret,
			Passphrase:     s.Passphrase,
			Enabled:        s.Enabled,
		}
	}

	binanceCfg := toSourceConfig(cfg.Sources["Binance"])
	coinbaseCfg := toSourceConfig(cfg.Sources["Coinbase"])
	krakenCfg := toSourceConfig(cfg.Sources["Kraken"])
	okexCfg := toSourceConfig(cfg.Sources["OKEx"])
	cmcCfg := toSourceConfig(cfg.Sources["CoinMarketCap"])
	cgCfg := toSourceConfig(cfg.Sources["CoinGecko"])

	return source.NewRegistry(
		source.NewBinanceAdapter(binanceCfg, resilient.For("binance"), symbols),
		source.NewCoinbaseAdapter(coinbaseCfg, resilient.For("coinbase"), symbols),
		source.NewKrakenAdapter(krakenCfg, resilient.For("kraken"), symbols),
		source.NewOKExAdapter(okexCfg, resilient.For("okex"), symbols),
		source.NewCoinMarketCapAdapter(cmcCfg, resilient.For("coinmarketcap"), symbols),
		source.NewCoinGeckoAdapter(cgCfg, resilient.For("coingecko"), symbols),
	)
}
