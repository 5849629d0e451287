// Package stacks declares the CDK resource groups for the Sonic
// speech-to-speech deployment and the ordering edges between them.
//
// Declaration order matters independently of the dependency edges: a stack
// may only reference constructs from stacks declared before it. The edges
// added in Build are metadata for the CDK apply order.
package stacks

import (
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/jsii-runtime-go"

	"github.com/dwsmith1983/sonic-infra/internal/config"
	"github.com/dwsmith1983/sonic-infra/internal/tables"
)

// ECR repositories the API and webapp images are pushed to out of band.
const (
	apiRepositoryName    = "sonic-api"
	webappRepositoryName = "sonic-webapp"
)

// Props carries everything stack construction needs. It is assembled once
// in main; stacks never consult the process environment.
type Props struct {
	Cfg   *config.Config
	Nova  tables.Reference
	Daily tables.Reference

	// ForwarderDistDir holds the compiled transcript-forwarder bootstrap.
	ForwarderDistDir string
}

// DefaultProps returns Props with the standard asset locations.
func DefaultProps(cfg *config.Config, nova, daily tables.Reference) *Props {
	return &Props{
		Cfg:              cfg,
		Nova:             nova,
		Daily:            daily,
		ForwarderDistDir: "dist/lambda/transcript-forwarder",
	}
}

// Build holds the constructed stacks, in declaration order.
type Build struct {
	Network         *NetworkStack
	Data            *DataStack
	API             *APIStack
	Events          *EventsStack
	WebApp          *WebAppStack
	StreamProcessor *StreamProcessorStack
}

// BuildApp constructs all six stacks on app and wires their dependency
// edges. Synthesis is left to the caller.
func BuildApp(app awscdk.App, props *Props) *Build {
	env := cdkEnv(props.Cfg)

	network := NewNetworkStack(app, "SonicNetwork", env, props)
	data := NewDataStack(app, "SonicData", env, props)
	api := NewAPIStack(app, "SonicAPI", env, props, network, data)
	events := NewEventsStack(app, "SonicEvents", env, props)
	webapp := NewWebAppStack(app, "SonicWebApp", env, props, network, api, events)
	sp := NewStreamProcessorStack(app, "SonicStreamProcessor", env, props, data, events)

	api.Stack.AddDependency(network.Stack, jsii.String("API compute runs inside the shared VPC"))
	api.Stack.AddDependency(data.Stack, jsii.String("API containers write transcripts to the tables"))
	events.Stack.AddDependency(data.Stack, jsii.String("channel namespaces are named after the tables"))
	webapp.Stack.AddDependency(network.Stack, jsii.String("webapp service runs inside the shared VPC"))
	webapp.Stack.AddDependency(api.Stack, jsii.String("webapp container config points at the API endpoint"))
	webapp.Stack.AddDependency(events.Stack, jsii.String("webapp container config carries the events endpoints"))
	sp.Stack.AddDependency(data.Stack, jsii.String("forwarder consumes the table streams"))
	sp.Stack.AddDependency(events.Stack, jsii.String("forwarder publishes to the events API"))

	return &Build{
		Network:         network,
		Data:            data,
		API:             api,
		Events:          events,
		WebApp:          webapp,
		StreamProcessor: sp,
	}
}

// cdkEnv pins the stacks to the resolved account and region. With no
// account the synth stays environment-agnostic, which rules out hosted
// zone lookups but keeps plain HTTP deployments working anywhere.
func cdkEnv(cfg *config.Config) *awscdk.Environment {
	if cfg.Account == "" {
		return nil
	}
	return &awscdk.Environment{
		Account: jsii.String(cfg.Account),
		Region:  jsii.String(cfg.Region),
	}
}

func newStack(scope awscdk.App, id string, env *awscdk.Environment) awscdk.Stack {
	return awscdk.NewStack(scope, jsii.String(id), &awscdk.StackProps{Env: env})
}
