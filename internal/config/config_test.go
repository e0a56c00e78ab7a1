package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	dryRun := true
	return &Config{
		Feed: FeedConfig{
			ConsumerKey:       "ck",
			ConsumerSecret:    "cs",
			AccessToken:       "at",
			AccessTokenSecret: "as",
			ListID:            "42",
		},
		Warehouse: WarehouseConfig{
			CredentialsFile: "/secrets/key.json",
			Dataset:         "social",
			PostsTable:      "tweets",
			ActivityTable:   "activity",
			AnalysisDataset: "analysis",
			ActionsTable:    "pending_actions",
			PollInterval:    time.Second,
		},
		Harvest: HarvestConfig{
			MemberLimit:     1000,
			PageSize:        100,
			MaxPostsPerUser: 500,
		},
		Outreach: OutreachConfig{
			DryRun:    &dryRun,
			SendDelay: time.Second,
		},
	}
}

func TestConfigValidation(t *testing.T) {
	assert.NoError(t, validConfig().Validate())

	invalid := validConfig()
	invalid.Feed.AccessToken = ""
	assert.Error(t, invalid.Validate())

	invalid = validConfig()
	invalid.Warehouse.ActionsTable = ""
	assert.Error(t, invalid.Validate())

	invalid = validConfig()
	invalid.Harvest.PageSize = 500
	assert.Error(t, invalid.Validate())

	invalid = validConfig()
	invalid.Database.Enabled = true
	assert.Error(t, invalid.Validate())
}

func TestConfigValidationRequiresExplicitDryRun(t *testing.T) {
	cfg := validConfig()
	cfg.Outreach.DryRun = nil

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dry_run")
}

func TestDatabaseDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     3306,
		User:     "testuser",
		Password: "testpass",
		DBName:   "testdb",
	}

	expected := "testuser:testpass@tcp(localhost:3306)/testdb?charset=utf8mb4&parseTime=True&loc=UTC"
	assert.Equal(t, expected, cfg.GetDSN())
}

func TestLoadConfigFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
feed:
  consumer_key: file-key
  list_id: "1234"
warehouse:
  dataset: social
outreach:
  dry_run: false
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv("TWITTER_CONSUMER_KEY", "env-key")
	t.Setenv("BQ_TABLE_ID", "tweets")
	t.Setenv("OUTREACH_SEND_DELAY", "3s")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.Feed.ConsumerKey)
	assert.Equal(t, "1234", cfg.Feed.ListID)
	assert.Equal(t, "social", cfg.Warehouse.Dataset)
	assert.Equal(t, "tweets", cfg.Warehouse.PostsTable)
	require.NotNil(t, cfg.Outreach.DryRun)
	assert.False(t, cfg.Outreach.IsDryRun())
	assert.Equal(t, 3*time.Second, cfg.Outreach.SendDelay)
	assert.Equal(t, 500, cfg.Harvest.MaxPostsPerUser)
	assert.Equal(t, 100, cfg.Harvest.PageSize)
	assert.Equal(t, "https://api.twitter.com/1.1/", cfg.Feed.BaseURL)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
