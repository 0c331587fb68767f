package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEnvKeys = []string{
	"TRENDS_CONFIG", "TRENDS_PORT", "PORT", "TRENDS_LOG_LEVEL", "TRENDS_LOG_PRETTY", "TRENDS_ALLOW_ORIGINS",
	"TRENDS_HTTP_TIMEOUT", "HTTP_TIMEOUT", "TRENDS_README_TIMEOUT", "TRENDS_CACHE_TTL", "CACHE_TTL",
	"TRENDS_CACHE_MAX_ENTRIES", "TRENDS_GITHUB_TOKEN", "GITHUB_TOKEN", "TRENDS_GITHUB_PER_PAGE",
	"TRENDS_HF_MAX_ITEMS", "HF_MAX_ITEMS",
	"TRENDS_VERCEL_TOKEN", "VERCEL_TOKEN", "TRENDS_VERCEL_PROJECT_NAME", "VERCEL_PROJECT_NAME",
	"TRENDS_VERCEL_GIT_ORG", "VERCEL_GIT_ORG", "TRENDS_VERCEL_GIT_REPO", "VERCEL_GIT_REPO",
	"TRENDS_VERCEL_API_URL", "VERCEL_API_URL", "TRENDS_DEPLOY_MIN_INTERVAL",
}

// clearTestEnv 清掉可能干扰测试的环境变量，测试结束后自动恢复
func clearTestEnv(t *testing.T) {
	t.Helper()
	for _, k := range testEnvKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func newFlagSet() *pflag.FlagSet {
	return pflag.NewFlagSet("test", pflag.ContinueOnError)
}

func TestSpecificationDefaults(t *testing.T) {
	clearTestEnv(t)

	cfg, err := Load("", newFlagSet(), nil)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.LogPretty)
	assert.Equal(t, []string{"*"}, cfg.AllowOrigins)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 8*time.Second, cfg.ReadmeTimeout)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 512, cfg.CacheMaxEntries)
	assert.Equal(t, 24, cfg.GithubPerPage)
	assert.Equal(t, 24, cfg.HFMaxItems)
	assert.Empty(t, cfg.GithubToken)
	assert.Equal(t, "https://api.vercel.com/v13/deployments", cfg.VercelAPIURL)
	assert.Equal(t, time.Minute, cfg.DeployMinInterval)
	assert.False(t, cfg.DeployConfigured())
}

func TestLoadFromYAMLFile(t *testing.T) {
	clearTestEnv(t)

	configFile := filepath.Join(t.TempDir(), "radar.yaml")
	yamlContent := `
port: 9090
logLevel: "debug"
logPretty: true
httpTimeout: "20s"
readmeTimeout: "5s"
cacheTTL: "10m"
cacheMaxEntries: 100
githubToken: "ghp_yaml"
githubPerPage: 50
hfMaxItems: 12
vercelToken: "vt"
vercelProject: "radar"
vercelGitOrg: "acme"
vercelGitRepo: "radar-web"
deployMinInterval: "30s"
`
	require.NoError(t, os.WriteFile(configFile, []byte(yamlContent), 0644))

	cfg, err := Load(configFile, newFlagSet(), nil)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.LogPretty)
	assert.Equal(t, 20*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 5*time.Second, cfg.ReadmeTimeout)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 100, cfg.CacheMaxEntries)
	assert.Equal(t, "ghp_yaml", cfg.GithubToken)
	assert.Equal(t, 50, cfg.GithubPerPage)
	assert.Equal(t, 12, cfg.HFMaxItems)
	assert.Equal(t, 30*time.Second, cfg.DeployMinInterval)
	assert.True(t, cfg.DeployConfigured())
}

func TestPrecedence(t *testing.T) {
	clearTestEnv(t)

	configFile := filepath.Join(t.TempDir(), "radar.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("port: 9090\ngithubToken: from-yaml\nlogLevel: warn\n"), 0644))

	// env 覆盖 YAML
	t.Setenv("TRENDS_GITHUB_TOKEN", "from-env")
	t.Setenv("TRENDS_PORT", "7070")

	// flag 覆盖 env
	args := []string{"--port", "6060", "--cache-ttl", "1m"}
	cfg, err := Load(configFile, newFlagSet(), args)
	require.NoError(t, err)

	assert.Equal(t, 6060, cfg.Port)
	assert.Equal(t, "from-env", cfg.GithubToken)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, time.Minute, cfg.CacheTTL)
}

func TestLegacyEnvNames(t *testing.T) {
	clearTestEnv(t)
	t.Setenv("GITHUB_TOKEN", "legacy-token")
	t.Setenv("VERCEL_TOKEN", "vt")
	t.Setenv("VERCEL_PROJECT_NAME", "radar")
	t.Setenv("VERCEL_GIT_ORG", "acme")
	t.Setenv("VERCEL_GIT_REPO", "radar-web")

	cfg, err := Load("", newFlagSet(), nil)
	require.NoError(t, err)

	assert.Equal(t, "legacy-token", cfg.GithubToken)
	assert.Equal(t, "radar", cfg.VercelProject)
	assert.True(t, cfg.DeployConfigured())

	// 带前缀的变量优先
	t.Setenv("TRENDS_GITHUB_TOKEN", "prefixed")
	cfg, err = Load("", newFlagSet(), nil)
	require.NoError(t, err)
	assert.Equal(t, "prefixed", cfg.GithubToken)
}

func TestConfigFlagDiscovery(t *testing.T) {
	clearTestEnv(t)

	configFile := filepath.Join(t.TempDir(), "radar.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("port: 9191\n"), 0644))

	cfg, err := Load("", newFlagSet(), []string{"--config=" + configFile})
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Port)

	cfg, err = Load("", newFlagSet(), []string{"--config", configFile})
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Port)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T) (string, []string)
		wantErr string
	}{
		{
			name: "配置文件不存在",
			setup: func(t *testing.T) (string, []string) {
				return filepath.Join(t.TempDir(), "missing.yaml"), nil
			},
			wantErr: "config file not found",
		},
		{
			name: "YAML 格式错误",
			setup: func(t *testing.T) (string, []string) {
				p := filepath.Join(t.TempDir(), "bad.yaml")
				require.NoError(t, os.WriteFile(p, []byte("port: [1, 2"), 0644))
				return p, nil
			},
			wantErr: "load yaml",
		},
		{
			name: "环境变量类型错误",
			setup: func(t *testing.T) (string, []string) {
				t.Setenv("TRENDS_PORT", "not-a-number")
				return "", nil
			},
			wantErr: "env override",
		},
		{
			name: "每页数量越界",
			setup: func(t *testing.T) (string, []string) {
				return "", []string{"--github-per-page", "500"}
			},
			wantErr: "github per page",
		},
		{
			name: "超时为零",
			setup: func(t *testing.T) (string, []string) {
				return "", []string{"--http-timeout", "0s"}
			},
			wantErr: "timeouts must be positive",
		},
		{
			name: "未知 flag",
			setup: func(t *testing.T) (string, []string) {
				return "", []string{"--nope"}
			},
			wantErr: "unknown flag",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearTestEnv(t)
			path, args := tt.setup(t)

			_, err := Load(path, newFlagSet(), args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
