// Package config loads the oracle daemon's configuration document and the
// environment-variable overrides layered on top of it, per the external
// interfaces section of the system design.
package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/viper"

	"github.com/r3e-network/price-oracle/internal/oerrors"
)

// SourceConfig mirrors one per-exchange configuration section.
type SourceConfig struct {
	BaseURL        string
	TimeoutSeconds int
	APIKey         string
	APISecret      string
	Passphrase     string
	Enabled        bool
}

// BatchProcessing mirrors the `BatchProcessing` configuration section.
type BatchProcessing struct {
	RPCEndpoint             string
	ContractScriptHash      string
	TeeAccountAddress       string
	TeeAccountPrivateKey    string
	MasterAccountAddress    string
	MasterAccountPrivateKey string
	MaxBatchSize            int
	CheckAndTransferTeeAssets bool
}

// Config is the fully-resolved configuration document.
type Config struct {
	Symbols         []string
	SymbolMappings  map[string]map[string]string
	Sources         map[string]SourceConfig
	BatchProcessing BatchProcessing
}

var scriptHashPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Load reads configPath (a JSON document, per §6) via viper, then applies
// environment-variable overrides — env always wins over the file.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: read config: %v", oerrors.ErrConfig, err)
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	bindOverrides(v)

	cfg := &Config{
		Symbols:        v.GetStringSlice("Symbols"),
		SymbolMappings: parseMappings(v),
		Sources:        parseSources(v),
		BatchProcessing: BatchProcessing{
			RPCEndpoint:               v.GetString("BatchProcessing.RpcEndpoint"),
			ContractScriptHash:        v.GetString("BatchProcessing.ContractScriptHash"),
			TeeAccountAddress:         v.GetString("BatchProcessing.TeeAccountAddress"),
			TeeAccountPrivateKey:      v.GetString("BatchProcessing.TeeAccountPrivateKey"),
			MasterAccountAddress:      v.GetString("BatchProcessing.MasterAccountAddress"),
			MasterAccountPrivateKey:   v.GetString("BatchProcessing.MasterAccountPrivateKey"),
			MaxBatchSize:              v.GetInt("BatchProcessing.MaxBatchSize"),
			CheckAndTransferTeeAssets: v.GetBool("BatchProcessing.CheckAndTransferTeeAssets"),
		},
	}

	if env := v.GetString("SYMBOLS"); env != "" {
		cfg.Symbols = strings.Split(env, ",")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindOverrides wires the recognised environment variables from §6 onto
// their configuration keys. AutomaticEnv alone would require an exact
// (underscored) key match; these explicit binds cover the documented
// names that don't follow that convention.
func bindOverrides(v *viper.Viper) {
	v.BindEnv("BatchProcessing.RpcEndpoint", "NEO_RPC_ENDPOINT")
	v.BindEnv("BatchProcessing.ContractScriptHash", "CONTRACT_SCRIPT_HASH")
	v.BindEnv("BatchProcessing.TeeAccountAddress", "TEE_ACCOUNT_ADDRESS")
	v.BindEnv("BatchProcessing.TeeAccountPrivateKey", "TEE_ACCOUNT_PRIVATE_KEY")
	v.BindEnv("BatchProcessing.MasterAccountAddress", "MASTER_ACCOUNT_ADDRESS")
	v.BindEnv("BatchProcessing.MasterAccountPrivateKey", "MASTER_ACCOUNT_PRIVATE_KEY")
	v.BindEnv("BatchProcessing.CheckAndTransferTeeAssets", "CHECK_AND_TRANSFER_TEE_ASSETS")
	v.BindEnv("Sources.CoinMarketCap.ApiKey", "COINMARKETCAP_API_KEY")
	v.BindEnv("Sources.CoinGecko.ApiKey", "COINGECKO_API_KEY")
	v.BindEnv("Sources.Kraken.ApiKey", "KRAKEN_API_KEY")
	v.BindEnv("Sources.Kraken.ApiSecret", "KRAKEN_API_SECRET")
	v.BindEnv("SYMBOLS")
}

func parseMappings(v *viper.Viper) map[string]map[string]string {
	raw := v.GetStringMap("SymbolMappings.Mappings")
	out := make(map[string]map[string]string, len(raw))
	for canonical, val := range raw {
		bySource := make(map[string]string)
		if m, ok := val.(map[string]interface{}); ok {
			for source, sym := range m {
				if s, ok := sym.(string); ok {
					bySource[source] = s
				}
			}
		}
		out[canonical] = bySource
	}
	return out
}

var sourceNames = []string{"Binance", "OKEx", "Coinbase", "CoinMarketCap", "CoinGecko", "Kraken"}

func parseSources(v *viper.Viper) map[string]SourceConfig {
	out := make(map[string]SourceConfig, len(sourceNames))
	for _, name := range sourceNames {
		prefix := "Sources." + name + "."
		cfg := SourceConfig{
			BaseURL:        v.GetString(prefix + "BaseUrl"),
			TimeoutSeconds: v.GetInt(prefix + "TimeoutSeconds"),
			APIKey:         v.GetString(prefix + "ApiKey"),
			APISecret:      v.GetString(prefix + "ApiSecret"),
			Passphrase:     v.GetString(prefix + "Passphrase"),
		}
		if cfg.TimeoutSeconds == 0 {
			cfg.TimeoutSeconds = 10
		}
		cfg.Enabled = cfg.BaseURL != ""
		out[name] = cfg
	}
	return out
}

// Validate enforces the external-interface validation rules: contract hash
// shape, address prefixes, WIF key length, and batch size bounds.
func (c *Config) Validate() error {
	if len(sourcesEnabled(c.Sources)) == 0 {
		return fmt.Errorf("%w: no data source is enabled", oerrors.ErrConfig)
	}
	bp := c.BatchProcessing
	if !scriptHashPattern.MatchString(bp.ContractScriptHash) {
		return fmt.Errorf("%w: ContractScriptHash must be 0x-prefixed and 40 hex characters", oerrors.ErrConfig)
	}
	if !strings.HasPrefix(bp.TeeAccountAddress, "N") || !strings.HasPrefix(bp.MasterAccountAddress, "N") {
		return fmt.Errorf("%w: account addresses must start with 'N'", oerrors.ErrConfig)
	}
	if len(bp.TeeAccountPrivateKey) < 52 || len(bp.MasterAccountPrivateKey) < 52 {
		return fmt.Errorf("%w: private keys must be WIF-encoded (>= 52 characters)", oerrors.ErrConfig)
	}
	if bp.MaxBatchSize < 1 || bp.MaxBatchSize > 100 {
		return fmt.Errorf("%w: MaxBatchSize must be in [1, 100]", oerrors.ErrConfig)
	}
	if !isLocalOrHTTPS(bp.RPCEndpoint) {
		return fmt.Errorf("%w: RpcEndpoint must be HTTPS unless localhost", oerrors.ErrConfig)
	}
	return nil
}

func sourcesEnabled(sources map[string]SourceConfig) []string {
	var enabled []string
	for name, s := range sources {
		if s.Enabled {
			enabled = append(enabled, name)
		}
	}
	return enabled
}

func isLocalOrHTTPS(endpoint string) bool {
	if endpoint == "" {
		return false
	}
	if strings.Contains(endpoint, "localhost") || strings.Contains(endpoint, "127.0.0.1") {
		return true
	}
	return strings.HasPrefix(endpoint, "https://")
}
