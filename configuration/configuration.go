package configuration

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

const (
	defaultHAURL         = "http://homeassistant.local:8123"
	defaultGitHubAPIURL  = "https://api.github.com"
	defaultGitHubBranch  = "main"
	defaultSecretsFile   = "/config/secrets.yaml"
	defaultExcludeFile   = "/config/text_files/excluded_files.txt"
	defaultHTMLDir       = "/config/www/community"
	defaultScriptsDir    = "/config/python_scripts"
	defaultUpdateList    = "/config/tmp/z2m_update_list.txt"
	defaultZ2MLogDir     = "/config/zigbee2mqtt/log"
	defaultHATokenKey    = "ha_access_token"
	defaultGitTokenKey   = "github_token"
	defaultGitRepoKey    = "github_repo"
	defaultAttempts      = 3
	defaultRetryDelay    = 5 * time.Second
	defaultPollInterval  = time.Minute
	defaultMaxPolls      = 60
	defaultProgressEvery = 5
	defaultTriggerDelay  = 5 * time.Second
	defaultUploadPause   = 5 * time.Second
	defaultReportTTL     = 24 * time.Hour
	defaultBackupEvery   = 6 * time.Hour
)

// Duration is a time.Duration that reads from JSON strings such as "5s".
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	HAURL       string `json:"ha_url"`
	SecretsFile string `json:"secrets_file"`

	// Keys looked up in the secrets file.
	HATokenSecret     string `json:"ha_token_secret"`
	GitHubTokenSecret string `json:"github_token_secret"`
	GitHubRepoSecret  string `json:"github_repo_secret"`

	GitHubAPIURL string `json:"github_api_url"`
	GitHubBranch string `json:"github_branch"`

	Upload Upload `json:"upload"`
	Update Update `json:"update"`
	Backup Backup `json:"backup"`

	ReportTTL   Duration `json:"report_ttl"`
	BackupEvery Duration `json:"backup_every"`
}

type Upload struct {
	Attempts   int      `json:"attempts"`
	RetryDelay Duration `json:"retry_delay"`
}

type Update struct {
	ListFile      string   `json:"list_file"`
	Z2MLogDir     string   `json:"z2m_log_dir"`
	PollInterval  Duration `json:"poll_interval"`
	MaxPolls      int      `json:"max_polls"`
	ProgressEvery int      `json:"progress_every"`
	TriggerDelay  Duration `json:"trigger_delay"`
}

type Backup struct {
	ExcludeFile string   `json:"exclude_file"`
	HTMLDir     string   `json:"html_dir"`
	YAMLDirs    []string `json:"yaml_dirs"`
	ScriptsDir  string   `json:"scripts_dir"`
	UploadPause Duration `json:"upload_pause"`
}

// Default returns the configuration used for a stock Home Assistant OS install.
func Default() Config {
	return Config{
		HAURL:             defaultHAURL,
		SecretsFile:       defaultSecretsFile,
		HATokenSecret:     defaultHATokenKey,
		GitHubTokenSecret: defaultGitTokenKey,
		GitHubRepoSecret:  defaultGitRepoKey,
		GitHubAPIURL:      defaultGitHubAPIURL,
		GitHubBranch:      defaultGitHubBranch,
		Upload: Upload{
			Attempts:   defaultAttempts,
			RetryDelay: Duration(defaultRetryDelay),
		},
		Update: Update{
			ListFile:      defaultUpdateList,
			Z2MLogDir:     defaultZ2MLogDir,
			PollInterval:  Duration(defaultPollInterval),
			MaxPolls:      defaultMaxPolls,
			ProgressEvery: defaultProgressEvery,
			TriggerDelay:  Duration(defaultTriggerDelay),
		},
		Backup: Backup{
			ExcludeFile: defaultExcludeFile,
			HTMLDir:     defaultHTMLDir,
			YAMLDirs:    []string{"/config", "/config/esphome"},
			ScriptsDir:  defaultScriptsDir,
			UploadPause: Duration(defaultUploadPause),
		},
		ReportTTL:   Duration(defaultReportTTL),
		BackupEvery: Duration(defaultBackupEvery),
	}
}

// Read loads the JSON config at path on top of Default. An empty path
// returns the defaults.
func Read(path string) (*Config, error) {
	conf := Default()
	if path != "" {
		f, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(f, &conf); err != nil {
			return nil, err
		}
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.HAURL == "" {
		errs = append(errs, errors.New("ha_url must be set"))
	}
	if c.GitHubAPIURL == "" {
		errs = append(errs, errors.New("github_api_url must be set"))
	}
	if c.Upload.Attempts < 1 {
		errs = append(errs, fmt.Errorf("upload.attempts must be at least 1, got %d", c.Upload.Attempts))
	}
	if c.Update.MaxPolls < 1 {
		errs = append(errs, fmt.Errorf("update.max_polls must be at least 1, got %d", c.Update.MaxPolls))
	}
	if c.Update.PollInterval < 0 || c.Upload.RetryDelay < 0 || c.Update.TriggerDelay < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}
	if c.BackupEvery <= 0 {
		errs = append(errs, fmt.Errorf("backup_every must be positive, got %s", c.BackupEvery.Std()))
	}
	if c.ReportTTL <= 0 {
		errs = append(errs, fmt.Errorf("report_ttl must be positive, got %s", c.ReportTTL.Std()))
	}
	return errors.Join(errs...)
}
