package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Specification 服务配置
// 带 envconfig 标签的字段同时接受不带前缀的旧变量名 (例如 GITHUB_TOKEN、VERCEL_TOKEN)
type Specification struct {
	Port         int      `yaml:"port" envconfig:"PORT"`
	LogLevel     string   `yaml:"logLevel" split_words:"true"`
	LogPretty    bool     `yaml:"logPretty" split_words:"true"`
	AllowOrigins []string `yaml:"allowOrigins" split_words:"true"`

	HTTPTimeout   time.Duration `yaml:"httpTimeout" envconfig:"HTTP_TIMEOUT"`
	ReadmeTimeout time.Duration `yaml:"readmeTimeout" split_words:"true"`

	CacheTTL        time.Duration `yaml:"cacheTTL" envconfig:"CACHE_TTL"`
	CacheMaxEntries int           `yaml:"cacheMaxEntries" split_words:"true"`

	GithubToken   string `yaml:"githubToken" envconfig:"GITHUB_TOKEN"`
	GithubPerPage int    `yaml:"githubPerPage" split_words:"true"`
	HFMaxItems    int    `yaml:"hfMaxItems" envconfig:"HF_MAX_ITEMS"`

	VercelToken       string        `yaml:"vercelToken" envconfig:"VERCEL_TOKEN"`
	VercelProject     string        `yaml:"vercelProject" envconfig:"VERCEL_PROJECT_NAME"`
	VercelGitOrg      string        `yaml:"vercelGitOrg" envconfig:"VERCEL_GIT_ORG"`
	VercelGitRepo     string        `yaml:"vercelGitRepo" envconfig:"VERCEL_GIT_REPO"`
	VercelAPIURL      string        `yaml:"vercelApiURL" envconfig:"VERCEL_API_URL"`
	DeployMinInterval time.Duration `yaml:"deployMinInterval" split_words:"true"`

	flags *pflag.FlagSet `ignored:"true"`
}

const envPrefix = "TRENDS"

func (s *Specification) Usage() {
	fmt.Fprint(os.Stderr, s.flags.FlagUsages())
}

// Load => defaults < YAML < env < flags.
// configPath may be ""; if so we auto-discover. args 通常是 os.Args[1:]
func Load(configPath string, fs *pflag.FlagSet, args []string) (Specification, error) {
	var cfg Specification

	// set defaults (lowest precedence)
	setDefaults(&cfg)
	bindFlags(fs, &cfg)

	// config file
	path := configPath
	if path == "" {
		path = configFromArgs(args)
	}
	if path == "" {
		if v := os.Getenv(envPrefix + "_CONFIG"); v != "" {
			path = v
		} else {
			for _, cand := range []string{
				"config/ai-trend-radar.yaml",
				"config/config.yaml",
				"./ai-trend-radar.yaml",
			} {
				if fileExists(cand) {
					path = cand
					break
				}
			}
		}
	}

	if path != "" {
		if !fileExists(path) {
			return Specification{}, fmt.Errorf("config file not found: %s", path)
		}
		if err := loadYAML(path, &cfg); err != nil {
			return Specification{}, fmt.Errorf("load yaml %s: %w", path, err)
		}
	}

	// env overrides config file
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Specification{}, fmt.Errorf("env override: %w", err)
	}

	// flags override everything
	if err := fs.Parse(args); err != nil {
		return Specification{}, err
	}
	applyChangedFlags(fs, &cfg)

	if err := cfg.validate(); err != nil {
		return Specification{}, err
	}
	return cfg, nil
}

// DeployConfigured 是否配置了部署所需的全部字段
func (s Specification) DeployConfigured() bool {
	return s.VercelToken != "" && s.VercelProject != "" && s.VercelGitOrg != "" && s.VercelGitRepo != ""
}

func (s *Specification) validate() error {
	if strings.TrimSpace(s.LogLevel) == "" {
		s.LogLevel = "info"
	}
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("invalid port %d", s.Port)
	}
	if s.HTTPTimeout <= 0 || s.ReadmeTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive (http=%s readme=%s)", s.HTTPTimeout, s.ReadmeTimeout)
	}
	if s.CacheTTL <= 0 {
		return fmt.Errorf("cache ttl must be positive, got %s", s.CacheTTL)
	}
	if s.CacheMaxEntries < 0 {
		return fmt.Errorf("cache max entries must not be negative, got %d", s.CacheMaxEntries)
	}
	if s.GithubPerPage < 1 || s.GithubPerPage > 100 {
		return fmt.Errorf("github per page must be within 1..100, got %d", s.GithubPerPage)
	}
	if s.HFMaxItems < 1 {
		return fmt.Errorf("hf max items must be positive, got %d", s.HFMaxItems)
	}
	return nil
}

// ---------- helpers ----------

func loadYAML(path string, into any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, into)
}

func fileExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}

// configFromArgs 在解析 flag 之前先取出 --config，供配置文件发现使用
func configFromArgs(args []string) string {
	for i, a := range args {
		if a == "--config" {
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				return args[i+1]
			}
		} else if strings.HasPrefix(a, "--config=") {
			return strings.SplitN(a, "=", 2)[1]
		}
	}
	return ""
}

func bindFlags(fs *pflag.FlagSet, c *Specification) {
	fs.String("config", "", "Path to config file")

	fs.Int("port", c.Port, "HTTP server port")
	fs.String("log-level", c.LogLevel, "Log level (debug|info|warn|error)")
	fs.Bool("log-pretty", c.LogPretty, "Human readable console logs")
	fs.StringSlice("allow-origins", c.AllowOrigins, "CORS allowed origins")

	fs.Duration("http-timeout", c.HTTPTimeout, "Timeout for outbound HTTP calls")
	fs.Duration("readme-timeout", c.ReadmeTimeout, "Timeout for README fetches")

	fs.Duration("cache-ttl", c.CacheTTL, "TTL of listing and summary caches")
	fs.Int("cache-max-entries", c.CacheMaxEntries, "Max entries per summary cache (0 = unbounded)")

	fs.String("github-token", c.GithubToken, "Optional GitHub API token")
	fs.Int("github-per-page", c.GithubPerPage, "Repositories fetched per GitHub search")
	fs.Int("hf-max-items", c.HFMaxItems, "Models kept after merging Hugging Face categories")

	fs.String("vercel-token", c.VercelToken, "Vercel API token")
	fs.String("vercel-project", c.VercelProject, "Vercel project name")
	fs.String("vercel-git-org", c.VercelGitOrg, "Git organization deployed by Vercel")
	fs.String("vercel-git-repo", c.VercelGitRepo, "Git repository deployed by Vercel")
	fs.String("vercel-api-url", c.VercelAPIURL, "Vercel deployments endpoint")
	fs.Duration("deploy-min-interval", c.DeployMinInterval, "Minimum interval between deploy triggers (0 = unlimited)")

	// Used later for usage/help
	copied := pflag.NewFlagSet("temp", pflag.ContinueOnError)
	*copied = *fs
	c.flags = copied
}

func applyChangedFlags(fs *pflag.FlagSet, c *Specification) {
	setStr := func(name string, dst *string) {
		if fs.Changed(name) {
			v, _ := fs.GetString(name)
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if fs.Changed(name) {
			v, _ := fs.GetInt(name)
			*dst = v
		}
	}
	setBool := func(name string, dst *bool) {
		if fs.Changed(name) {
			v, _ := fs.GetBool(name)
			*dst = v
		}
	}
	setDur := func(name string, dst *time.Duration) {
		if fs.Changed(name) {
			v, _ := fs.GetDuration(name)
			*dst = v
		}
	}

	// (We ignore --config here; it's for discovery.)
	setInt("port", &c.Port)
	setStr("log-level", &c.LogLevel)
	setBool("log-pretty", &c.LogPretty)
	if fs.Changed("allow-origins") {
		c.AllowOrigins, _ = fs.GetStringSlice("allow-origins")
	}

	setDur("http-timeout", &c.HTTPTimeout)
	setDur("readme-timeout", &c.ReadmeTimeout)

	setDur("cache-ttl", &c.CacheTTL)
	setInt("cache-max-entries", &c.CacheMaxEntries)

	setStr("github-token", &c.GithubToken)
	setInt("github-per-page", &c.GithubPerPage)
	setInt("hf-max-items", &c.HFMaxItems)

	setStr("vercel-token", &c.VercelToken)
	setStr("vercel-project", &c.VercelProject)
	setStr("vercel-git-org", &c.VercelGitOrg)
	setStr("vercel-git-repo", &c.VercelGitRepo)
	setStr("vercel-api-url", &c.VercelAPIURL)
	setDur("deploy-min-interval", &c.DeployMinInterval)
}

func setDefaults(c *Specification) {
	c.Port = 8080
	c.LogLevel = "info"
	c.AllowOrigins = []string{"*"}
	c.HTTPTimeout = 15 * time.Second
	c.ReadmeTimeout = 8 * time.Second
	c.CacheTTL = 5 * time.Minute
	c.CacheMaxEntries = 512
	c.GithubPerPage = 24
	c.HFMaxItems = 24
	c.VercelAPIURL = "https://api.vercel.com/v13/deployments"
	c.DeployMinInterval = time.Minute
}
