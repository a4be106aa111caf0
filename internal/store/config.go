package store

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const configFileName = "config.yaml"

type GlobalConfig struct {
	CurrentWorkspace string `yaml:"currentWorkspace,omitempty"`

	Assistant AssistantConfig `yaml:"assistant,omitempty"`
	Alerts    AlertsConfig    `yaml:"alerts,omitempty"`
	Web       WebConfig       `yaml:"web,omitempty"`
	TUI       TUIConfig       `yaml:"tui,omitempty"`
}

type AssistantConfig struct {
	// Model is the chat model id sent to the API (default gpt-4o-mini).
	Model string `yaml:"model,omitempty"`
	// BaseURL overrides the API endpoint for OpenAI-compatible servers.
	BaseURL string `yaml:"baseURL,omitempty"`
	// APIKeyEnv names the environment variable holding the API key (default OPENAI_API_KEY).
	APIKeyEnv string `yaml:"apiKeyEnv,omitempty"`
	// CurrentProjectOnly restricts assistant lookups to the selected project.
	CurrentProjectOnly bool `yaml:"currentProjectOnly,omitempty"`
	MaxTokens          int  `yaml:"maxTokens,omitempty"`
	RequestsPerMinute  int  `yaml:"requestsPerMinute,omitempty"`
}

type AlertsConfig struct {
	WebhookTimeout    time.Duration `yaml:"webhookTimeout,omitempty"`
	WebhooksPerMinute int           `yaml:"webhooksPerMinute,omitempty"`
}

type WebConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

type TUIConfig struct {
	// Theme is "light", "dark" or "auto" (default).
	Theme string `yaml:"theme,omitempty"`
}

func (c AssistantConfig) ModelOrDefault() string {
	if m := strings.TrimSpace(c.Model); m != "" {
		return m
	}
	return "gpt-4o-mini"
}

func (c AssistantConfig) APIKey() string {
	env := strings.TrimSpace(c.APIKeyEnv)
	if env == "" {
		env = "OPENAI_API_KEY"
	}
	return strings.TrimSpace(os.Getenv(env))
}

func (c AlertsConfig) WebhookTimeoutOrDefault() time.Duration {
	if c.WebhookTimeout > 0 {
		return c.WebhookTimeout
	}
	return 10 * time.Second
}

func (c WebConfig) AddrOrDefault() string {
	if a := strings.TrimSpace(c.Addr); a != "" {
		return a
	}
	return "127.0.0.1:3340"
}

func ConfigDir() (string, error) {
	// Test/advanced override (keeps unit tests from touching ~/.tareas).
	if v := strings.TrimSpace(os.Getenv("TAREAS_CONFIG_DIR")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, storeDirName), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

func LoadConfig() (*GlobalConfig, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &GlobalConfig{}, nil
		}
		return nil, err
	}
	var cfg GlobalConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func SaveConfig(cfg *GlobalConfig) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return atomicWriteFile(dir, "config.yaml.*.tmp", path, b, 0o600)
}

func atomicWriteFile(dir, tmpPattern, path string, b []byte, perm os.FileMode) error {
	f, err := os.CreateTemp(dir, tmpPattern)
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	_ = os.Chmod(tmp, perm)
	return os.Rename(tmp, path)
}

// WriteFileAtomic writes b to path through a temp file in the same directory.
func WriteFileAtomic(path string, b []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return atomicWriteFile(dir, filepath.Base(path)+".*.tmp", path, b, 0o644)
}

func NormalizeWorkspaceName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("workspace name is empty")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", errors.New("workspace name must be a plain directory name")
	}
	return name, nil
}

func ListWorkspaces() ([]string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	out := []string{}
	ents, err := os.ReadDir(filepath.Join(dir, "workspaces"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return out, nil
		}
		return nil, err
	}
	for _, e := range ents {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}
