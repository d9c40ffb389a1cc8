package config

// Config is the full on-disk configuration (JSON or YAML).
//
// All durations are Go duration strings (e.g. "500ms", "10s", "30m").
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  *StorageConfig `json:"storage,omitempty"`
	Bank     BankConfig     `json:"bank"`
	Oracle   OracleConfig   `json:"oracle"`
	Quiz     QuizConfig     `json:"quiz"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// ChatID is the group/channel that receives quiz sessions.
	ChatID   int64 `json:"chat_id"`
	ThreadID int   `json:"thread_id,omitempty"`
	// RatePerSec caps outgoing sends across the whole gateway (default 20).
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

type LoggingConfig struct {
	Level   string        `json:"level"`
	Console bool          `json:"console"`
	File    FileLogConfig `json:"file"`
}

type FileLogConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the persistent key-value layer.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./quizbot_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// BankConfig points at the external question repository service.
type BankConfig struct {
	BaseURL string `json:"base_url"`
	APIKey  string `json:"api_key,omitempty"`
	Timeout string `json:"timeout,omitempty"` // default 15s
}

// OracleConfig controls the quality-gate oracle.
//
// FailOpen is a pointer so an omitted field defaults to true (best-effort
// moderation); an explicit false switches the gate to fail-closed.
type OracleConfig struct {
	Enabled  bool   `json:"enabled"`
	APIKey   string `json:"api_key,omitempty"`
	Model    string `json:"model,omitempty"` // default gpt-4o
	FailOpen *bool  `json:"fail_open,omitempty"`
}

// QuizConfig controls scheduling, selection, and delivery pacing.
//
// Defaults (when fields are omitted/zero):
//   - timezone: "Asia/Kolkata"
//   - slots: ["08:00", "20:00"]
//   - notify_lead: "30m"
//   - question_count: 10
//   - difficulty_ratio: 0.3 / 0.5 / 0.2
//   - used_window_days: 7, retention_days: 30
//   - fetch_multiplier: 5, fetch_hard_cap: 200
//   - attempt_budget: 3
//   - language_gap: "3s", question_gap: "10s"
type QuizConfig struct {
	Timezone        string      `json:"timezone,omitempty"`
	Slots           []string    `json:"slots,omitempty"`
	NotifyLead      string      `json:"notify_lead,omitempty"`
	QuestionCount   int         `json:"question_count,omitempty"`
	DifficultyRatio RatioConfig `json:"difficulty_ratio,omitempty"`
	UsedWindowDays  int         `json:"used_window_days,omitempty"`
	RetentionDays   int         `json:"retention_days,omitempty"`
	FetchMultiplier int         `json:"fetch_multiplier,omitempty"`
	FetchHardCap    int         `json:"fetch_hard_cap,omitempty"`
	AttemptBudget   int         `json:"attempt_budget,omitempty"`
	LanguageGap     string      `json:"language_gap,omitempty"`
	QuestionGap     string      `json:"question_gap,omitempty"`
}

type RatioConfig struct {
	Easy   float64 `json:"easy"`
	Medium float64 `json:"medium"`
	Hard   float64 `json:"hard"`
}

// IsZero reports whether no ratio was configured at all.
func (r RatioConfig) IsZero() bool { return r.Easy == 0 && r.Medium == 0 && r.Hard == 0 }
