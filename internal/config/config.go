package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultReportTime       = "11:00"
	DefaultReminderInterval = 3 // hours
	DefaultTimezoneOffset   = 7 // GMT+7
	DefaultValidatorModel   = "google/gemini-flash-1.5"
	DefaultValidatorBaseURL = "https://openrouter.ai/api/v1"
	DefaultValidatorTimeout = 30 // seconds
	DefaultHost             = "0.0.0.0"
	DefaultPort             = 18791
	DefaultBotUsername      = "scrum-bot"
)

const DefaultPromptMessage = `Please reply to this thread with your daily report including:
1. What did you accomplish yesterday?
2. What are you planning to do today?
3. Any blockers or challenges?`

const DefaultReminderMessage = `Hey, it seems you missed the daily report today, please submit your report as soon as possible.
Even if you have done nothing, it's ok to report.
Failure to report will affect your work performance and affect the whole team, please be advised!
Let's do it together!`

type Config struct {
	Mattermost MattermostConfig `json:"mattermost"`
	Report     ReportConfig     `json:"report"`
	Validator  ValidatorConfig  `json:"validator"`
	Store      StoreConfig      `json:"store"`
	Web        WebConfig        `json:"web"`
}

type MattermostConfig struct {
	URL         string `json:"url"`
	Token       string `json:"token"`
	BotUsername string `json:"botUsername"`
	TeamName    string `json:"teamName"`
}

type ReportConfig struct {
	// Time is the daily report time in 24h "HH:MM" format, local to TimezoneOffset.
	Time                  string   `json:"time"`
	ReminderIntervalHours int      `json:"reminderIntervalHours"`
	TimezoneOffsetHours   int      `json:"timezoneOffsetHours"`
	Days                  []string `json:"days"`
	ExcludedUsers         []string `json:"excludedUsers"`
	PromptMessage         string   `json:"promptMessage,omitempty"`
	ReminderMessage       string   `json:"reminderMessage,omitempty"`
}

type ValidatorConfig struct {
	Enabled        bool   `json:"enabled"`
	APIKey         string `json:"apiKey,omitempty"`
	BaseURL        string `json:"baseUrl,omitempty"`
	Model          string `json:"model,omitempty"`
	SiteURL        string `json:"siteUrl,omitempty"`
	SiteName       string `json:"siteName,omitempty"`
	TimeoutSeconds int    `json:"timeoutSeconds,omitempty"`
}

type StoreConfig struct {
	DBPath string `json:"dbPath,omitempty"`
}

type WebConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func DefaultConfig() *Config {
	return &Config{
		Mattermost: MattermostConfig{
			URL:         "http://localhost:8065",
			BotUsername: DefaultBotUsername,
		},
		Report: ReportConfig{
			Time:                  DefaultReportTime,
			ReminderIntervalHours: DefaultReminderInterval,
			TimezoneOffsetHours:   DefaultTimezoneOffset,
			Days:                  []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday"},
		},
		Validator: ValidatorConfig{
			Enabled:        true,
			BaseURL:        DefaultValidatorBaseURL,
			Model:          DefaultValidatorModel,
			TimeoutSeconds: DefaultValidatorTimeout,
		},
		Web: WebConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".scrumbot")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func LoadConfig() (*Config, error) {
	// The original deployment shipped its secrets in a dotenv file; keep
	// honoring one from the working directory.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if url := os.Getenv("MATTERMOST_URL"); url != "" {
		cfg.Mattermost.URL = url
	}
	if token := os.Getenv("MATTERMOST_TOKEN"); token != "" {
		cfg.Mattermost.Token = token
	}
	if token := os.Getenv("BOT_TOKEN"); token != "" && cfg.Mattermost.Token == "" {
		cfg.Mattermost.Token = token
	}
	if name := os.Getenv("SCRUMBOT_USERNAME"); name != "" {
		cfg.Mattermost.BotUsername = name
	}
	if team := os.Getenv("SCRUMBOT_TEAM"); team != "" {
		cfg.Mattermost.TeamName = team
	}
	if t := os.Getenv("SCRUMBOT_REPORT_TIME"); t != "" {
		cfg.Report.Time = t
	}
	if v := os.Getenv("SCRUMBOT_REMINDER_INTERVAL"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Report.ReminderIntervalHours = parsed
		}
	}
	if v := os.Getenv("EXCLUDED_USERS"); v != "" {
		cfg.Report.ExcludedUsers = splitList(v)
	}
	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
		cfg.Validator.APIKey = key
	}
	if v := os.Getenv("SCRUMBOT_VALIDATOR_ENABLED"); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			cfg.Validator.Enabled = parsed
		}
	}
	if dbPath := os.Getenv("SCRUMBOT_DB_PATH"); dbPath != "" {
		cfg.Store.DBPath = dbPath
	}

	if cfg.Report.Time == "" {
		cfg.Report.Time = DefaultReportTime
	}
	if cfg.Report.ReminderIntervalHours <= 0 {
		cfg.Report.ReminderIntervalHours = DefaultReminderInterval
	}
	if len(cfg.Report.Days) == 0 {
		cfg.Report.Days = DefaultConfig().Report.Days
	}
	if cfg.Validator.BaseURL == "" {
		cfg.Validator.BaseURL = DefaultValidatorBaseURL
	}
	if cfg.Validator.Model == "" {
		cfg.Validator.Model = DefaultValidatorModel
	}
	if cfg.Validator.TimeoutSeconds <= 0 {
		cfg.Validator.TimeoutSeconds = DefaultValidatorTimeout
	}
	if cfg.Store.DBPath == "" {
		cfg.Store.DBPath = filepath.Join(ConfigDir(), "data", "reports.db")
	}

	return cfg, nil
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}

// Location returns the fixed-offset timezone all calendar-day decisions use.
func (r ReportConfig) Location() *time.Location {
	return time.FixedZone(fmt.Sprintf("UTC%+d", r.TimezoneOffsetHours), r.TimezoneOffsetHours*3600)
}

// ReminderInterval returns the configured nudge spacing as a duration.
func (r ReportConfig) ReminderInterval() time.Duration {
	return time.Duration(r.ReminderIntervalHours) * time.Hour
}

// ReportClock parses the "HH:MM" report time. Falls back to the default on
// malformed input so a bad config cannot silence the bot entirely.
func (r ReportConfig) ReportClock() (hour, minute int) {
	if h, m, ok := parseClock(r.Time); ok {
		return h, m
	}
	h, m, _ := parseClock(DefaultReportTime)
	return h, m
}

func parseClock(s string) (hour, minute int, ok bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}

// IsReportingDay reports whether sessions open on the given weekday.
func (r ReportConfig) IsReportingDay(day time.Weekday) bool {
	name := strings.ToLower(day.String())
	for _, d := range r.Days {
		if strings.ToLower(strings.TrimSpace(d)) == name {
			return true
		}
	}
	return false
}

// IsExcluded reports whether the username never owes a report.
func (r ReportConfig) IsExcluded(username string) bool {
	for _, u := range r.ExcludedUsers {
		if strings.TrimSpace(u) == username {
			return true
		}
	}
	return false
}

// PromptText returns the configured daily prompt body, or the default.
func (r ReportConfig) PromptText() string {
	if strings.TrimSpace(r.PromptMessage) != "" {
		return r.PromptMessage
	}
	return DefaultPromptMessage
}

// ReminderText returns the configured reminder body, or the default.
func (r ReportConfig) ReminderText() string {
	if strings.TrimSpace(r.ReminderMessage) != "" {
		return r.ReminderMessage
	}
	return DefaultReminderMessage
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
