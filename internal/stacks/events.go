package stacks

import (
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsappsync"
	"github.com/aws/jsii-runtime-go"
)

// Channel namespaces, one per transcript table.
const (
	NovaChannelNamespace  = "nova"
	DailyChannelNamespace = "daily"
)

// EventsStack is the AppSync Events API that fans transcript updates out
// to connected web clients. API-key auth for both publish and subscribe.
type EventsStack struct {
	Stack awscdk.Stack
	// HTTPEndpoint receives publishes from the stream processor.
	HTTPEndpoint *string
	// RealtimeEndpoint is the WebSocket endpoint web clients subscribe to.
	RealtimeEndpoint *string
	APIKey           *string
}

// NewEventsStack builds the events API and its channel namespaces. The
// namespaces mirror the transcript tables the channels carry updates for,
// which is why the builder orders this stack after the Data stack.
func NewEventsStack(scope awscdk.App, id string, env *awscdk.Environment, props *Props) *EventsStack {
	stack := newStack(scope, id, env)

	apiKeyAuth := []interface{}{
		&awsappsync.CfnApi_AuthModeProperty{AuthType: jsii.String("API_KEY")},
	}
	api := awsappsync.NewCfnApi(stack, jsii.String("EventsApi"), &awsappsync.CfnApiProps{
		Name: jsii.String("sonic-events"),
		EventConfig: &awsappsync.CfnApi_EventConfigProperty{
			AuthProviders: []interface{}{
				&awsappsync.CfnApi_AuthProviderProperty{AuthType: jsii.String("API_KEY")},
			},
			ConnectionAuthModes:       apiKeyAuth,
			DefaultPublishAuthModes:   apiKeyAuth,
			DefaultSubscribeAuthModes: apiKeyAuth,
		},
	})

	apiKey := awsappsync.NewCfnApiKey(stack, jsii.String("EventsApiKey"), &awsappsync.CfnApiKeyProps{
		ApiId:       api.AttrApiId(),
		Description: jsii.String("publish/subscribe key for transcript channels"),
	})

	for _, ns := range []string{NovaChannelNamespace, DailyChannelNamespace} {
		awsappsync.NewCfnChannelNamespace(stack, jsii.String("Namespace-"+ns), &awsappsync.CfnChannelNamespaceProps{
			ApiId: api.AttrApiId(),
			Name:  jsii.String(ns),
		})
	}

	httpEndpoint := jsii.String("https://" + *api.AttrDnsHttp() + "/event")
	realtimeEndpoint := jsii.String("wss://" + *api.AttrDnsRealtime() + "/event/realtime")

	awscdk.NewCfnOutput(stack, jsii.String("EventsHttpEndpoint"), &awscdk.CfnOutputProps{
		Value: httpEndpoint,
	})
	awscdk.NewCfnOutput(stack, jsii.String("EventsRealtimeEndpoint"), &awscdk.CfnOutputProps{
		Value: realtimeEndpoint,
	})
	awscdk.NewCfnOutput(stack, jsii.String("EventsApiKeyOutput"), &awscdk.CfnOutputProps{
		Value: apiKey.AttrApiKey(),
	})

	return &EventsStack{
		Stack:            stack,
		HTTPEndpoint:     httpEndpoint,
		RealtimeEndpoint: realtimeEndpoint,
		APIKey:           apiKey.AttrApiKey(),
	}
}
