// Package config loads the pipeline configuration from the environment using Viper
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"visits-pipeline/internal/model"
)

// ErrMissingVariable is returned when a required environment variable is unset
var ErrMissingVariable = errors.New("missing required environment variable")

// Environment variable names
const (
	EnvWarehouseCredentials = "WAREHOUSE_CREDENTIALS"
	EnvSheetCredentials     = "SHEET_CREDENTIALS"
	EnvSheetLink            = "SHEET_LINK"
	EnvWarehouseProject     = "WAREHOUSE_PROJECT"
	EnvTablePrefix          = "PIPELINE_TABLE_PREFIX"
	EnvStartDate            = "PIPELINE_START_DATE"
	EnvEndDate              = "PIPELINE_END_DATE"
	EnvFetchWorkers         = "PIPELINE_FETCH_WORKERS"
	EnvTaskTimeout          = "PIPELINE_TASK_TIMEOUT"
	EnvLogLevel             = "PIPELINE_LOG_LEVEL"
	EnvLogFile              = "PIPELINE_LOG_FILE"
	EnvRunDB                = "PIPELINE_RUN_DB"
	EnvExportDir            = "PIPELINE_EXPORT_DIR"
)

// Static defaults
const (
	DefaultTablePrefix  = "bigquery-public-data.google_analytics_sample.ga_sessions_"
	DefaultStartDate    = "2017-07-01"
	DefaultEndDate      = "2017-07-31"
	DefaultFetchWorkers = 8
	DefaultTaskTimeout  = 30 * time.Second
	DefaultLogLevel     = "info"
)

// DefaultColumns is the column selection of every per-day query
var DefaultColumns = []string{
	"visitNumber",
	"geoNetwork.country",
	"device.browser",
	"device.operatingSystem",
}

// DefaultSummaries are the three reductions and their destination tabs
var DefaultSummaries = []model.SummarySpec{
	{Title: "Visits per Country", Dimension: "country", Metric: "visitNumber"},
	{Title: "Visits per Operating System", Dimension: "operatingSystem", Metric: "visitNumber"},
	{Title: "Visits per Browser", Dimension: "browser", Metric: "visitNumber"},
}

// Config holds all configuration parameters for one run
type Config struct {
	WarehouseCredentials string        `mapstructure:"warehousecredentials"`
	SheetCredentials     string        `mapstructure:"sheetcredentials"`
	SheetLink            string        `mapstructure:"sheetlink"`
	WarehouseProject     string        `mapstructure:"warehouseproject"`
	TablePrefix          string        `mapstructure:"tableprefix"`
	StartDate            string        `mapstructure:"startdate"`
	EndDate              string        `mapstructure:"enddate"`
	FetchWorkers         int           `mapstructure:"fetchworkers"`
	TaskTimeout          time.Duration `mapstructure:"tasktimeout"`
	LogLevel             string        `mapstructure:"loglevel"`
	LogFile              string        `mapstructure:"logfile"`
	RunDB                string        `mapstructure:"rundb"`
	ExportDir            string        `mapstructure:"exportdir"`

	Columns   []string            `mapstructure:"-"`
	Summaries []model.SummarySpec `mapstructure:"-"`
	Dates     model.DateRange     `mapstructure:"-"`
}

// Load reads the configuration from the process environment
func Load() (Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (Config, error) {
	v.SetDefault("tableprefix", DefaultTablePrefix)
	v.SetDefault("startdate", DefaultStartDate)
	v.SetDefault("enddate", DefaultEndDate)
	v.SetDefault("fetchworkers", DefaultFetchWorkers)
	v.SetDefault("tasktimeout", DefaultTaskTimeout)
	v.SetDefault("loglevel", DefaultLogLevel)

	v.BindEnv("warehousecredentials", EnvWarehouseCredentials)
	v.BindEnv("sheetcredentials", EnvSheetCredentials)
	v.BindEnv("sheetlink", EnvSheetLink)
	v.BindEnv("warehouseproject", EnvWarehouseProject)
	v.BindEnv("tableprefix", EnvTablePrefix)
	v.BindEnv("startdate", EnvStartDate)
	v.BindEnv("enddate", EnvEndDate)
	v.BindEnv("fetchworkers", EnvFetchWorkers)
	v.BindEnv("tasktimeout", EnvTaskTimeout)
	v.BindEnv("loglevel", EnvLogLevel)
	v.BindEnv("logfile", EnvLogFile)
	v.BindEnv("rundb", EnvRunDB)
	v.BindEnv("exportdir", EnvExportDir)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	if cfg.SheetCredentials == "" {
		cfg.SheetCredentials = cfg.WarehouseCredentials
	}
	cfg.Columns = append([]string(nil), DefaultColumns...)
	cfg.Summaries = append([]model.SummarySpec(nil), DefaultSummaries...)

	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("config: invalid configuration: %w", err)
	}
	return cfg, nil
}

// validate checks the configuration for errors and derives the date range
func (c *Config) validate() error {
	if strings.TrimSpace(c.WarehouseCredentials) == "" {
		return fmt.Errorf("%w: %s", ErrMissingVariable, EnvWarehouseCredentials)
	}
	if strings.TrimSpace(c.SheetLink) == "" {
		return fmt.Errorf("%w: %s", ErrMissingVariable, EnvSheetLink)
	}
	if c.TablePrefix == "" {
		return errors.New("table prefix must not be empty")
	}
	if c.FetchWorkers <= 0 {
		return fmt.Errorf("fetch workers must be positive, got %d", c.FetchWorkers)
	}
	if c.TaskTimeout <= 0 {
		return fmt.Errorf("task timeout must be positive, got %s", c.TaskTimeout)
	}

	dates, err := model.ParseDateRange(c.StartDate, c.EndDate)
	if err != nil {
		return err
	}
	c.Dates = dates
	return nil
}
