package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"eci-results-crawler/internal/classifier"
	"eci-results-crawler/internal/crawler"
	"eci-results-crawler/internal/fetcher"
	"eci-results-crawler/internal/models"
	"eci-results-crawler/internal/parser"
)

type Config struct {
	Sweep  SweepConfig  `mapstructure:"sweep" yaml:"sweep"`
	Fetch  FetchConfig  `mapstructure:"fetch" yaml:"fetch"`
	Site   SiteConfig   `mapstructure:"site" yaml:"site"`
	Output OutputConfig `mapstructure:"output" yaml:"output"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
	Server ServerConfig `mapstructure:"server" yaml:"server"`
}

type SweepConfig struct {
	MaxStateRegionCode    int      `mapstructure:"max_state_region_code" yaml:"max_state_region_code"`
	MaxUTRegionCode       int      `mapstructure:"max_ut_region_code" yaml:"max_ut_region_code"`
	MaxConstituencyNumber int      `mapstructure:"max_constituency_number" yaml:"max_constituency_number"`
	Order                 []string `mapstructure:"order" yaml:"order"`
}

type FetchConfig struct {
	Driver                   string  `mapstructure:"driver" yaml:"driver"`
	Headless                 bool    `mapstructure:"headless" yaml:"headless"`
	ChromePath               string  `mapstructure:"chrome_path" yaml:"chrome_path"`
	SettleDelaySeconds       float64 `mapstructure:"settle_delay_seconds" yaml:"settle_delay_seconds"`
	ScrapeSettleDelaySeconds float64 `mapstructure:"scrape_settle_delay_seconds" yaml:"scrape_settle_delay_seconds"`
	NavigationTimeoutSeconds float64 `mapstructure:"navigation_timeout_seconds" yaml:"navigation_timeout_seconds"`
	Retries                  uint    `mapstructure:"retries" yaml:"retries"`
	RetryDelaySeconds        float64 `mapstructure:"retry_delay_seconds" yaml:"retry_delay_seconds"`
}

type SiteConfig struct {
	StateBase      string `mapstructure:"state_base" yaml:"state_base"`
	UTBase         string `mapstructure:"ut_base" yaml:"ut_base"`
	ValidityMarker string `mapstructure:"validity_marker" yaml:"validity_marker"`
	TableSelector  string `mapstructure:"table_selector" yaml:"table_selector"`
	HeaderSelector string `mapstructure:"header_selector" yaml:"header_selector"`
}

type OutputConfig struct {
	AcceptedKeys string `mapstructure:"accepted_keys" yaml:"accepted_keys"`
	Dataset      string `mapstructure:"dataset" yaml:"dataset"`
	Checkpoint   string `mapstructure:"checkpoint" yaml:"checkpoint"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

func DefaultConfig() Config {
	return Config{
		Sweep: SweepConfig{
			MaxStateRegionCode:    29,
			MaxUTRegionCode:       19,
			MaxConstituencyNumber: 80,
			Order:                 []string{string(models.State), string(models.UnionTerritory)},
		},
		Fetch: FetchConfig{
			Driver:                   fetcher.DriverChrome,
			SettleDelaySeconds:       2,
			ScrapeSettleDelaySeconds: 5,
			NavigationTimeoutSeconds: 30,
			Retries:                  2,
			RetryDelaySeconds:        1,
		},
		Site: SiteConfig{
			StateBase:      fetcher.DefaultStateBase,
			UTBase:         fetcher.DefaultUTBase,
			ValidityMarker: classifier.DefaultMarker,
			TableSelector:  parser.DefaultTableSelector,
			HeaderSelector: parser.DefaultHeaderSelector,
		},
		Output: OutputConfig{
			AcceptedKeys: "valid_urls.csv",
			Dataset:      "election_results.csv",
		},
		Log:    LogConfig{Level: "info", Format: "text"},
		Server: ServerConfig{Addr: ":8080"},
	}
}

// Load reads defaults, then the config file (optional unless cfgFile is
// set), then ECI_* environment variables, into a fresh viper instance.
// Flags bound on v by the caller take precedence over all of them.
func Load(v *viper.Viper, cfgFile string) (Config, error) {
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix("ECI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, cfg.Validate()
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("sweep.max_state_region_code", d.Sweep.MaxStateRegionCode)
	v.SetDefault("sweep.max_ut_region_code", d.Sweep.MaxUTRegionCode)
	v.SetDefault("sweep.max_constituency_number", d.Sweep.MaxConstituencyNumber)
	v.SetDefault("sweep.order", d.Sweep.Order)
	v.SetDefault("fetch.driver", d.Fetch.Driver)
	v.SetDefault("fetch.headless", d.Fetch.Headless)
	v.SetDefault("fetch.chrome_path", d.Fetch.ChromePath)
	v.SetDefault("fetch.settle_delay_seconds", d.Fetch.SettleDelaySeconds)
	v.SetDefault("fetch.scrape_settle_delay_seconds", d.Fetch.ScrapeSettleDelaySeconds)
	v.SetDefault("fetch.navigation_timeout_seconds", d.Fetch.NavigationTimeoutSeconds)
	v.SetDefault("fetch.retries", d.Fetch.Retries)
	v.SetDefault("fetch.retry_delay_seconds", d.Fetch.RetryDelaySeconds)
	v.SetDefault("site.state_base", d.Site.StateBase)
	v.SetDefault("site.ut_base", d.Site.UTBase)
	v.SetDefault("site.validity_marker", d.Site.ValidityMarker)
	v.SetDefault("site.table_selector", d.Site.TableSelector)
	v.SetDefault("site.header_selector", d.Site.HeaderSelector)
	v.SetDefault("output.accepted_keys", d.Output.AcceptedKeys)
	v.SetDefault("output.dataset", d.Output.Dataset)
	v.SetDefault("output.checkpoint", d.Output.Checkpoint)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("server.addr", d.Server.Addr)
}

func (c Config) Validate() error {
	var errs []error
	if c.Sweep.MaxStateRegionCode < 0 || c.Sweep.MaxUTRegionCode < 0 {
		errs = append(errs, errors.New("sweep: region code bounds must not be negative"))
	}
	if c.Sweep.MaxConstituencyNumber < 1 {
		errs = append(errs, errors.New("sweep.max_constituency_number must be at least 1"))
	}
	if _, err := c.Sweeps(); err != nil {
		errs = append(errs, err)
	}
	if c.Fetch.SettleDelaySeconds < 0 || c.Fetch.ScrapeSettleDelaySeconds < 0 {
		errs = append(errs, errors.New("fetch: settle delays must not be negative"))
	}
	switch strings.ToLower(c.Fetch.Driver) {
	case fetcher.DriverChrome, fetcher.DriverHTTP:
	default:
		errs = append(errs, fmt.Errorf("fetch.driver %q must be chrome or http", c.Fetch.Driver))
	}
	if c.Site.ValidityMarker == "" {
		errs = append(errs, errors.New("site.validity_marker must not be empty"))
	}
	if c.Site.StateBase == "" || c.Site.UTBase == "" {
		errs = append(errs, errors.New("site: both base URLs are required"))
	}
	return errors.Join(errs...)
}

// Sweeps turns the configured order into enumerator sweeps.
func (c Config) Sweeps() ([]crawler.Sweep, error) {
	var out []crawler.Sweep
	seen := map[models.RegionKind]bool{}
	for _, s := range c.Sweep.Order {
		kind, err := models.ParseRegionKind(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("sweep.order: %w", err)
		}
		if seen[kind] {
			return nil, fmt.Errorf("sweep.order: %s listed twice", kind)
		}
		seen[kind] = true
		maxCode := c.Sweep.MaxStateRegionCode
		if kind == models.UnionTerritory {
			maxCode = c.Sweep.MaxUTRegionCode
		}
		out = append(out, crawler.Sweep{Kind: kind, MaxRegionCode: maxCode})
	}
	return out, nil
}

func seconds(s float64) time.Duration { return time.Duration(s * float64(time.Second)) }

func (f FetchConfig) Settle() time.Duration { return seconds(f.SettleDelaySeconds) }

func (f FetchConfig) ScrapeSettle() time.Duration { return seconds(f.ScrapeSettleDelaySeconds) }

func (f FetchConfig) NavigationTimeout() time.Duration { return seconds(f.NavigationTimeoutSeconds) }

func (f FetchConfig) RetryDelay() time.Duration { return seconds(f.RetryDelaySeconds) }

func (s SiteConfig) Templates() fetcher.Templates {
	return fetcher.Templates{StateBase: s.StateBase, UTBase: s.UTBase}
}

// WriteDefault writes the default configuration to path.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	header := []byte(`# eci-results-crawler configuration
# Every key can be overridden with an ECI_ environment variable,
# e.g. ECI_FETCH_DRIVER=http or ECI_SWEEP_MAX_STATE_REGION_CODE=2

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
