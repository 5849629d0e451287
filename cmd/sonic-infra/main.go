// sonic-infra synthesizes the CDK deployment manifest for the Sonic
// speech-to-speech application. It is invoked by the CDK toolkit (see
// cdk.json); it never applies anything itself.
package main

import (
	"context"
	"os"
	"strconv"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/jsii-runtime-go"

	"github.com/dwsmith1983/sonic-infra/internal/config"
	"github.com/dwsmith1983/sonic-infra/internal/logging"
	"github.com/dwsmith1983/sonic-infra/internal/stacks"
	"github.com/dwsmith1983/sonic-infra/internal/tables"
)

func main() {
	defer jsii.Close()

	cfg, err := config.Load()
	if err != nil {
		logging.New(os.Stderr, logging.ParseLevel("info")).Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(os.Stderr, logging.ParseLevel(cfg.LogLevel))

	app := awscdk.NewApp(nil)
	applyContext(app, cfg)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	dns, err := config.LoadDNS(cfg.DNSConfigPath)
	if err != nil {
		logger.Warn("DNS configuration unusable, deploying HTTP-only", "error", err)
	}
	cfg.DNS = dns
	if dns == nil {
		logger.Info("no DNS configuration, deploying HTTP-only")
	} else {
		logger.Info("custom domain enabled",
			"webapp", dns.WebappFQDN(), "api", dns.APIFQDN())
	}

	ctx := context.Background()
	resolver, err := tables.NewResolver(ctx, cfg.Account, cfg.Region, logger)
	if err != nil {
		logger.Error("building table resolver", "error", err)
		os.Exit(1)
	}

	nova, err := resolver.Resolve(ctx, cfg.NovaTableName, cfg.CreateNewTables, tables.NovaFallbackTimestamp)
	if err != nil {
		logger.Error("resolving nova table", "error", err)
		os.Exit(1)
	}
	daily, err := resolver.Resolve(ctx, cfg.DailyTableName, cfg.CreateNewTables, tables.DailyFallbackTimestamp)
	if err != nil {
		logger.Error("resolving daily table", "error", err)
		os.Exit(1)
	}
	logger.Info("table references resolved",
		"nova", nova.Source.String(), "daily", daily.Source.String())

	stacks.BuildApp(app, stacks.DefaultProps(cfg, nova, daily))
	app.Synth(nil)
}

// applyContext lets cdk -c flags override the environment-resolved values,
// matching the deploy scripts' calling convention.
func applyContext(app awscdk.App, cfg *config.Config) {
	if v := stringContext(app, "deploymentType"); v != "" {
		cfg.DeploymentType = v
	}
	if v := stringContext(app, "novaTableName"); v != "" {
		cfg.NovaTableName = v
	}
	if v := stringContext(app, "dailyTableName"); v != "" {
		cfg.DailyTableName = v
	}
	if v := stringContext(app, "createNewTables"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.CreateNewTables = b
		}
	}
	if v := stringContext(app, "dnsConfig"); v != "" {
		cfg.DNSConfigPath = v
	}
}

func stringContext(app awscdk.App, key string) string {
	if v := app.Node().TryGetContext(jsii.String(key)); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
