package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultListen       = "127.0.0.1:8080"
	defaultTimezone     = "Asia/Ho_Chi_Minh"
	defaultDatabasePath = "/var/lib/tkbcal/tkbcal.db"
	defaultCacheDir     = "/var/lib/tkbcal/source-cache"
	defaultLogLevel     = "info"
	defaultRefresh      = "0 */6 * * *"
	defaultNotifyCron   = "* * * * *"
	defaultLeadMinutes  = 15
	defaultHeaderRow    = 9
	defaultSubjectCol   = 3
	defaultDateKey      = "02/01/2006"
)

// SourceConfig is a spreadsheet published at a URL.
type SourceConfig struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// TimetableConfig tunes column inference.
type TimetableConfig struct {
	// SubjectColumn is the positional index of the subject name column.
	// Exports from older terms use 4.
	SubjectColumn int `yaml:"subject_column" json:"subject_column"`
	// SubjectLabels are label substrings used when the row is too short
	// for SubjectColumn.
	SubjectLabels []string `yaml:"subject_labels" json:"subject_labels"`
	// DateKeyLayout is a Go time layout for schedule date keys.
	DateKeyLayout string `yaml:"date_key_layout" json:"date_key_layout"`
}

// SheetConfig tunes spreadsheet decoding.
type SheetConfig struct {
	// HeaderRow is the zero-based row holding column labels.
	HeaderRow int `yaml:"header_row" json:"header_row"`
	// Charset is used for legacy .xls files.
	Charset string `yaml:"charset" json:"charset"`
}

// NotifyConfig controls class reminders.
type NotifyConfig struct {
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	LeadMinutes int    `yaml:"lead_minutes" json:"lead_minutes"`
	Cron        string `yaml:"cron" json:"cron"`
	// SlackWebhookURL, if set, also posts reminders to Slack.
	SlackWebhookURL string `yaml:"slack_webhook_url,omitempty" json:"slack_webhook_url,omitempty"`
}

// Config is the top-level application configuration.
type Config struct {
	Listen       string `yaml:"listen" json:"listen"`
	Timezone     string `yaml:"timezone" json:"timezone"`
	LogLevel     string `yaml:"log_level" json:"log_level"`
	DatabasePath string `yaml:"database_path" json:"database_path"`
	CacheDir     string `yaml:"cache_dir" json:"cache_dir"`

	// RefreshCron re-fetches Sources on this cron schedule.
	RefreshCron string         `yaml:"refresh" json:"refresh"`
	Sources     []SourceConfig `yaml:"sources" json:"sources"`

	Timetable TimetableConfig `yaml:"timetable" json:"timetable"`
	Sheet     SheetConfig     `yaml:"sheet" json:"sheet"`
	Notify    NotifyConfig    `yaml:"notify" json:"notify"`

	// BasicAuth, if set, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Listen:       defaultListen,
		Timezone:     defaultTimezone,
		LogLevel:     defaultLogLevel,
		DatabasePath: defaultDatabasePath,
		CacheDir:     defaultCacheDir,
		RefreshCron:  defaultRefresh,
		Sources:      []SourceConfig{},
		Timetable: TimetableConfig{
			SubjectColumn: defaultSubjectCol,
			SubjectLabels: []string{"tên", "môn"},
			DateKeyLayout: defaultDateKey,
		},
		Sheet: SheetConfig{
			HeaderRow: defaultHeaderRow,
			Charset:   "utf-8",
		},
		Notify: NotifyConfig{
			Enabled:     true,
			LeadMinutes: defaultLeadMinutes,
			Cron:        defaultNotifyCron,
		},
	}
}

// Normalize fills zero values with defaults so partial files still work.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.DatabasePath == "" {
		c.DatabasePath = defaultDatabasePath
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefresh
	}
	if c.Sources == nil {
		c.Sources = []SourceConfig{}
	}
	if c.Timetable.SubjectColumn <= 0 {
		c.Timetable.SubjectColumn = defaultSubjectCol
	}
	if len(c.Timetable.SubjectLabels) == 0 {
		c.Timetable.SubjectLabels = []string{"tên", "môn"}
	}
	if c.Timetable.DateKeyLayout == "" {
		c.Timetable.DateKeyLayout = defaultDateKey
	}
	if c.Sheet.HeaderRow < 0 {
		c.Sheet.HeaderRow = defaultHeaderRow
	}
	if c.Sheet.Charset == "" {
		c.Sheet.Charset = "utf-8"
	}
	if c.Notify.LeadMinutes <= 0 {
		c.Notify.LeadMinutes = defaultLeadMinutes
	}
	if c.Notify.Cron == "" {
		c.Notify.Cron = defaultNotifyCron
	}
}

// Load reads the YAML config at path. On first run the file does not exist
// yet; a default config is written there (0600) and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	// Start from defaults so keys missing from the file keep them; the
	// header row in particular has a meaningful zero.
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}
	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tkbcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local, err
	}
	return loc, nil
}
