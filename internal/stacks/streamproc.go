package stacks

import (
	"fmt"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsdynamodb"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslambda"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslambdaeventsources"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslogs"
	"github.com/aws/jsii-runtime-go"
)

// StreamProcessorStack runs the transcript-forwarder Lambda: DynamoDB
// stream records in, AppSync Events publishes out.
type StreamProcessorStack struct {
	Stack     awscdk.Stack
	Forwarder awslambda.Function
}

// NewStreamProcessorStack builds the forwarder and subscribes it to both
// table streams. Imported tables work the same as owned ones here; the
// event source only needs the stream ARN the table handle carries.
func NewStreamProcessorStack(scope awscdk.App, id string, env *awscdk.Environment, props *Props, data *DataStack, events *EventsStack) *StreamProcessorStack {
	stack := newStack(scope, id, env)

	channelMap := fmt.Sprintf("%s=%s,%s=%s",
		props.Nova.Name, NovaChannelNamespace,
		props.Daily.Name, DailyChannelNamespace)

	fn := awslambda.NewFunction(stack, jsii.String("TranscriptForwarder"), &awslambda.FunctionProps{
		FunctionName: jsii.String("sonic-transcript-forwarder"),
		Runtime:      awslambda.Runtime_PROVIDED_AL2023(),
		Handler:      jsii.String("bootstrap"),
		Code:         awslambda.Code_FromAsset(jsii.String(props.ForwarderDistDir), nil),
		Architecture: awslambda.Architecture_ARM_64(),
		MemorySize:   jsii.Number(128),
		Timeout:      awscdk.Duration_Seconds(jsii.Number(30)),
		Environment: &map[string]*string{
			"EVENTS_HTTP_ENDPOINT": events.HTTPEndpoint,
			"EVENTS_API_KEY":       events.APIKey,
			"SONIC_CHANNEL_MAP":    jsii.String(channelMap),
		},
		LogRetention: awslogs.RetentionDays_ONE_WEEK,
	})

	for _, table := range []awsdynamodb.ITable{data.Nova, data.Daily} {
		fn.AddEventSource(awslambdaeventsources.NewDynamoEventSource(table, &awslambdaeventsources.DynamoEventSourceProps{
			StartingPosition: awslambda.StartingPosition_LATEST,
			BatchSize:        jsii.Number(10),
		}))
	}

	awscdk.NewCfnOutput(stack, jsii.String("ForwarderFunctionName"), &awscdk.CfnOutputProps{
		Value: fn.FunctionName(),
	})

	return &StreamProcessorStack{Stack: stack, Forwarder: fn}
}
