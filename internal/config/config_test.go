package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetenv clears a variable for the duration of the test, restoring it after.
func unsetenv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	unsetenv(t,
		"CDK_DEFAULT_ACCOUNT", "CDK_DEFAULT_REGION",
		"SONIC_DEPLOYMENT_TYPE", "SONIC_NOVA_TABLE_NAME",
		"SONIC_DAILY_TABLE_NAME", "SONIC_CREATE_NEW_TABLES",
	)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", cfg.Region)
	assert.Equal(t, DeploymentTypeECS, cfg.DeploymentType)
	assert.Equal(t, "SonicNovaTranscripts", cfg.NovaTableName)
	assert.Equal(t, "SonicDailyTranscripts", cfg.DailyTableName)
	assert.True(t, cfg.CreateNewTables)
	assert.False(t, cfg.HTTPS())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CDK_DEFAULT_ACCOUNT", "123456789012")
	t.Setenv("CDK_DEFAULT_REGION", "eu-west-1")
	t.Setenv("SONIC_DEPLOYMENT_TYPE", "ec2")
	t.Setenv("SONIC_NOVA_TABLE_NAME", "MyNova")
	t.Setenv("SONIC_CREATE_NEW_TABLES", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "123456789012", cfg.Account)
	assert.Equal(t, "eu-west-1", cfg.Region)
	assert.Equal(t, DeploymentTypeEC2, cfg.DeploymentType)
	assert.Equal(t, "MyNova", cfg.NovaTableName)
	assert.False(t, cfg.CreateNewTables)
}

func TestLoadRejectsUnknownDeploymentType(t *testing.T) {
	t.Setenv("SONIC_DEPLOYMENT_TYPE", "kubernetes")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported deployment type")
}

func TestLoadDNS(t *testing.T) {
	dir := t.TempDir()
	content := `{
	  "domainName": "example.com",
	  "webappSubdomain": "talk",
	  "apiSubdomain": "api",
	  "webappCertificateArn": "arn:aws:acm:us-east-1:123456789012:certificate/web",
	  "apiCertificateArn": "arn:aws:acm:us-east-1:123456789012:certificate/api"
	}`
	path := filepath.Join(dir, "dns.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	dns, err := LoadDNS(path)
	require.NoError(t, err)
	require.NotNil(t, dns)
	assert.Equal(t, "talk.example.com", dns.WebappFQDN())
	assert.Equal(t, "api.example.com", dns.APIFQDN())
}

func TestLoadDNSMissingFileIsNotAnError(t *testing.T) {
	dns, err := LoadDNS(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Nil(t, dns)
}

func TestLoadDNSMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dns.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := LoadDNS(path)
	assert.Error(t, err)
}

func TestLoadDNSMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dns.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"domainName": "example.com"}`), 0o644))

	_, err := LoadDNS(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apiSubdomain")
}
