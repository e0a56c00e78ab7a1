package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Warehouse WarehouseConfig `mapstructure:"warehouse"`
	Harvest   HarvestConfig   `mapstructure:"harvest"`
	Outreach  OutreachConfig  `mapstructure:"outreach"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds the run ledger connection. The ledger is optional.
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// FeedConfig holds the social feed credentials and list settings
type FeedConfig struct {
	ConsumerKey       string `mapstructure:"consumer_key"`
	ConsumerSecret    string `mapstructure:"consumer_secret"`
	AccessToken       string `mapstructure:"access_token"`
	AccessTokenSecret string `mapstructure:"access_token_secret"`
	BaseURL           string `mapstructure:"base_url"`
	ListID            string `mapstructure:"list_id"`
	MaxRetries        int    `mapstructure:"max_retries"`
}

// WarehouseConfig identifies the warehouse project, datasets and tables
type WarehouseConfig struct {
	CredentialsFile string        `mapstructure:"credentials_file"`
	ProjectID       string        `mapstructure:"project_id"`
	Location        string        `mapstructure:"location"`
	Dataset         string        `mapstructure:"dataset"`
	PostsTable      string        `mapstructure:"posts_table"`
	ActivityTable   string        `mapstructure:"activity_table"`
	AnalysisDataset string        `mapstructure:"analysis_dataset"`
	ActionsTable    string        `mapstructure:"actions_table"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
}

// HarvestConfig bounds a harvest run
type HarvestConfig struct {
	MemberLimit     int `mapstructure:"member_limit"`
	PageSize        int `mapstructure:"page_size"`
	MaxPostsPerUser int `mapstructure:"max_posts_per_user"`
}

// OutreachConfig controls how outreach messages are sent.
// DryRun is a pointer so that an unset toggle can be rejected.
type OutreachConfig struct {
	DryRun        *bool         `mapstructure:"dry_run"`
	SendDelay     time.Duration `mapstructure:"send_delay"`
	ReferenceLink string        `mapstructure:"reference_link"`
}

// SchedulerConfig holds the cron specs used in serve mode
type SchedulerConfig struct {
	HarvestSpec string `mapstructure:"harvest_spec"`
	ActionSpec  string `mapstructure:"action_spec"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// envFiles are loaded into the process environment before viper reads it
var envFiles = []string{".env", ".env.local"}

// LoadConfig loads configuration from env files, an optional config file and environment variables
func LoadConfig(configFile string) (*Config, error) {
	for _, file := range envFiles {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Overload(file); err != nil {
			return nil, fmt.Errorf("error loading %s: %w", file, err)
		}
	}

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.AutomaticEnv()
	bindEnvVars(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "15m")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)

	v.SetDefault("feed.base_url", "https://api.twitter.com/1.1/")
	v.SetDefault("feed.max_retries", 3)

	v.SetDefault("warehouse.location", "US")
	v.SetDefault("warehouse.poll_interval", "2s")

	v.SetDefault("harvest.member_limit", 1000)
	v.SetDefault("harvest.page_size", 100)
	v.SetDefault("harvest.max_posts_per_user", 500)

	v.SetDefault("outreach.send_delay", "1s")
	v.SetDefault("outreach.reference_link", "https://twitter.com/clairebcarroll/status/1423628154065899525")

	v.SetDefault("scheduler.harvest_spec", "0 0 */6 * * *")
	v.SetDefault("scheduler.action_spec", "0 30 9 * * *")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// bindEnvVars binds environment variables to configuration keys
func bindEnvVars(v *viper.Viper) {
	// Server
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	v.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")

	// Database
	v.BindEnv("database.enabled", "DB_ENABLED")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME")

	// Feed
	v.BindEnv("feed.consumer_key", "TWITTER_CONSUMER_KEY")
	v.BindEnv("feed.consumer_secret", "TWITTER_CONSUMER_SECRET")
	v.BindEnv("feed.access_token", "TWITTER_ACCESS_TOKEN")
	v.BindEnv("feed.access_token_secret", "TWITTER_ACCESS_TOKEN_SECRET")
	v.BindEnv("feed.base_url", "TWITTER_BASE_URL")
	v.BindEnv("feed.list_id", "TWITTER_LIST_ID")
	v.BindEnv("feed.max_retries", "TWITTER_MAX_RETRIES")

	// Warehouse
	v.BindEnv("warehouse.credentials_file", "BQ_CREDENTIALS_FILE", "GOOGLE_APPLICATION_CREDENTIALS")
	v.BindEnv("warehouse.project_id", "BQ_PROJECT_ID")
	v.BindEnv("warehouse.location", "BQ_LOCATION")
	v.BindEnv("warehouse.dataset", "BQ_DATASET_ID")
	v.BindEnv("warehouse.posts_table", "BQ_TABLE_ID")
	v.BindEnv("warehouse.activity_table", "BQ_TABLE_ACTIVITY_ID")
	v.BindEnv("warehouse.analysis_dataset", "BQ_DATASET_ANALYSIS_ID")
	v.BindEnv("warehouse.actions_table", "BQ_TABLE_ACTIONS_ID")
	v.BindEnv("warehouse.poll_interval", "BQ_POLL_INTERVAL")

	// Harvest
	v.BindEnv("harvest.member_limit", "HARVEST_MEMBER_LIMIT")
	v.BindEnv("harvest.page_size", "HARVEST_PAGE_SIZE")
	v.BindEnv("harvest.max_posts_per_user", "HARVEST_MAX_POSTS_PER_USER")

	// Outreach
	v.BindEnv("outreach.dry_run", "OUTREACH_DRY_RUN")
	v.BindEnv("outreach.send_delay", "OUTREACH_SEND_DELAY")
	v.BindEnv("outreach.reference_link", "OUTREACH_REFERENCE_LINK")

	// Scheduler
	v.BindEnv("scheduler.harvest_spec", "SCHEDULER_HARVEST_SPEC")
	v.BindEnv("scheduler.action_spec", "SCHEDULER_ACTION_SPEC")

	// Log
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("log.format", "LOG_FORMAT")
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}

// IsDryRun reports whether outreach sending is disabled
func (c *OutreachConfig) IsDryRun() bool {
	return c.DryRun != nil && *c.DryRun
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Feed.ConsumerKey == "" || c.Feed.ConsumerSecret == "" {
		return fmt.Errorf("feed consumer key and secret are required")
	}
	if c.Feed.AccessToken == "" || c.Feed.AccessTokenSecret == "" {
		return fmt.Errorf("feed access token and secret are required")
	}
	if c.Feed.ListID == "" {
		return fmt.Errorf("feed list id is required")
	}

	if c.Warehouse.CredentialsFile == "" {
		return fmt.Errorf("warehouse credentials file is required")
	}
	if c.Warehouse.Dataset == "" || c.Warehouse.PostsTable == "" || c.Warehouse.ActivityTable == "" {
		return fmt.Errorf("warehouse dataset, posts table, and activity table are required")
	}
	if c.Warehouse.AnalysisDataset == "" || c.Warehouse.ActionsTable == "" {
		return fmt.Errorf("warehouse analysis dataset and actions table are required")
	}
	if c.Warehouse.PollInterval <= 0 {
		return fmt.Errorf("warehouse poll interval must be greater than 0")
	}

	if c.Outreach.DryRun == nil {
		return fmt.Errorf("outreach dry_run must be set explicitly")
	}
	if c.Outreach.SendDelay < 0 {
		return fmt.Errorf("outreach send delay must not be negative")
	}

	if c.Harvest.MemberLimit <= 0 || c.Harvest.MaxPostsPerUser <= 0 {
		return fmt.Errorf("harvest member limit and max posts per user must be greater than 0")
	}
	if c.Harvest.PageSize <= 0 || c.Harvest.PageSize > 200 {
		return fmt.Errorf("harvest page size must be between 1 and 200")
	}

	if c.Database.Enabled {
		if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
			return fmt.Errorf("database host, user, and dbname are required when the run ledger is enabled")
		}
	}

	return nil
}
