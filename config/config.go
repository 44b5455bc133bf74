package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"usage-reports/utils"

	"gopkg.in/yaml.v3"
)

// Fenêtre de rétention des rapports, en jours. Seule source de vérité pour le sweeper.
const DefaultRetentionDays = 5

const (
	DefaultInteractivePageSize = 50
	DefaultExportPageSize      = 20000
	DefaultSheetRowCeiling     = 1048570
	DefaultSignedURLExpiry     = time.Hour
	DefaultWorkers             = 4
)

type Config struct {
	Server struct {
		Listen    string `yaml:"listen"`
		LogDir    string `yaml:"log_dir"`
		LogFormat string `yaml:"log_format"` // "text" ou "json"
	} `yaml:"server"`
	JWT struct {
		Secret string `yaml:"secret"`
	} `yaml:"jwt"`
	Database  DatabaseConfig  `yaml:"database"`
	Reports   ReportsConfig   `yaml:"reports"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Mail      MailConfig      `yaml:"mail"`
	Summary   SummaryConfig   `yaml:"summary"`
	Billing   BillingConfig   `yaml:"billing"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
}

type DatabaseConfig struct {
	Driver       string `yaml:"driver"` // postgres, pgx, mysql, sqlite3
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	AutoMigrate  bool   `yaml:"auto_migrate"`
}

type ReportsConfig struct {
	InteractivePageSize int               `yaml:"interactive_page_size"`
	ExportPageSize      int               `yaml:"export_page_size"`
	SheetRowCeiling     int               `yaml:"sheet_row_ceiling"`
	RetentionDays       int               `yaml:"retention_days"`
	SignedURLExpiry     time.Duration     `yaml:"signed_url_expiry"`
	WorkDir             string            `yaml:"work_dir"`
	Workers             int               `yaml:"workers"`
	Environments        map[string]string `yaml:"environments"` // sélecteur -> table de logs
	DefaultEnvironment  string            `yaml:"default_environment"`
}

// RetentionWindow convertit retention_days en durée.
func (r ReportsConfig) RetentionWindow() time.Duration {
	return time.Duration(r.RetentionDays) * 24 * time.Hour
}

type ArtifactsConfig struct {
	Provider      string `yaml:"provider"` // minio, s3, filesystem
	Bucket        string `yaml:"bucket"`
	Endpoint      string `yaml:"endpoint"`
	Region        string `yaml:"region"`
	ID            string `yaml:"id"`
	Secret        string `yaml:"secret"`
	UseSSL        bool   `yaml:"use_ssl"`
	Prefix        string `yaml:"prefix"`
	BaseDir       string `yaml:"base_dir"`        // filesystem uniquement
	PublicBaseURL string `yaml:"public_base_url"` // filesystem uniquement
	SigningKey    string `yaml:"signing_key"`     // filesystem uniquement
}

type MailConfig struct {
	Provider string `yaml:"provider"` // mailgun, sendgrid, log
	From     string `yaml:"from"`
	Mailgun  struct {
		Domain string `yaml:"domain"`
		Key    string `yaml:"key"`
	} `yaml:"mailgun"`
	SendGrid struct {
		Key string `yaml:"key"`
	} `yaml:"sendgrid"`
}

type SummaryConfig struct {
	DistributionListKey string `yaml:"distribution_list_key"`
	Subject             string `yaml:"subject"`
	Environment         string `yaml:"environment"`
}

type BillingConfig struct {
	WalletRefreshURL string        `yaml:"wallet_refresh_url"`
	Timeout          time.Duration `yaml:"timeout"`
}

type ScheduleConfig struct {
	RetentionSweep string `yaml:"retention_sweep"`
	MTDRefresh     string `yaml:"mtd_refresh"`
	FYRefresh      string `yaml:"fy_refresh"`
	DailySummary   string `yaml:"daily_summary"`
}

// Load lit le fichier de config relatif à la racine du projet.
func Load(file string) (*Config, error) {
	data, err := os.ReadFile(utils.ResolvePath(file))
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse décode un document YAML, applique les valeurs par défaut puis valide.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Server.LogDir == "" {
		c.Server.LogDir = "./logs"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 20
	}
	r := &c.Reports
	if r.InteractivePageSize <= 0 {
		r.InteractivePageSize = DefaultInteractivePageSize
	}
	if r.ExportPageSize <= 0 {
		r.ExportPageSize = DefaultExportPageSize
	}
	if r.SheetRowCeiling <= 0 {
		r.SheetRowCeiling = DefaultSheetRowCeiling
	}
	if r.RetentionDays <= 0 {
		r.RetentionDays = DefaultRetentionDays
	}
	if r.SignedURLExpiry <= 0 {
		r.SignedURLExpiry = DefaultSignedURLExpiry
	}
	if r.WorkDir == "" {
		r.WorkDir = "./tmp/reports"
	}
	if r.Workers <= 0 {
		r.Workers = DefaultWorkers
	}
	if len(r.Environments) == 0 {
		r.Environments = map[string]string{"production": "api_logs", "sandbox": "sandbox_api_logs"}
	}
	if r.DefaultEnvironment == "" {
		r.DefaultEnvironment = "production"
	}
	if c.Artifacts.Provider == "" {
		c.Artifacts.Provider = "filesystem"
	}
	if c.Artifacts.Prefix == "" {
		c.Artifacts.Prefix = "reports"
	}
	if c.Mail.Provider == "" {
		c.Mail.Provider = "log"
	}
	if c.Summary.DistributionListKey == "" {
		c.Summary.DistributionListKey = "daily_usage_summary"
	}
	if c.Summary.Subject == "" {
		c.Summary.Subject = "Daily API usage summary"
	}
	if c.Summary.Environment == "" {
		c.Summary.Environment = r.DefaultEnvironment
	}
	if c.Billing.Timeout <= 0 {
		c.Billing.Timeout = 10 * time.Second
	}
	s := &c.Schedule
	if s.RetentionSweep == "" {
		s.RetentionSweep = "0 1 * * *"
	}
	if s.MTDRefresh == "" {
		s.MTDRefresh = "*/30 * * * *"
	}
	if s.FYRefresh == "" {
		s.FYRefresh = "15 * * * *"
	}
	if s.DailySummary == "" {
		s.DailySummary = "0 9 * * *"
	}
}

// Validate vérifie les champs sans valeur par défaut possible.
func (c *Config) Validate() error {
	if c.Database.Driver == "" || c.Database.DSN == "" {
		return errors.New("database.driver and database.dsn are required")
	}
	if _, ok := c.Reports.Environments[c.Reports.DefaultEnvironment]; !ok {
		return fmt.Errorf("reports.default_environment %q is not declared in reports.environments", c.Reports.DefaultEnvironment)
	}
	if _, ok := c.Reports.Environments[c.Summary.Environment]; !ok {
		return fmt.Errorf("summary.environment %q is not declared in reports.environments", c.Summary.Environment)
	}
	switch c.Artifacts.Provider {
	case "minio", "s3":
		if c.Artifacts.Bucket == "" {
			return fmt.Errorf("artifacts.bucket is required for provider %s", c.Artifacts.Provider)
		}
	case "filesystem":
	default:
		return fmt.Errorf("unknown artifacts.provider %q", c.Artifacts.Provider)
	}
	switch c.Mail.Provider {
	case "mailgun", "sendgrid", "log":
	default:
		return fmt.Errorf("unknown mail.provider %q", c.Mail.Provider)
	}
	return nil
}
