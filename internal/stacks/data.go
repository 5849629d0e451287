package stacks

import (
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsdynamodb"
	"github.com/aws/jsii-runtime-go"

	"github.com/dwsmith1983/sonic-infra/internal/tables"
)

// DataStack holds the transcript tables. Owned references become fresh
// table constructs; resolved and fallback references are imported by name
// and stream ARN so downstream stacks treat both shapes the same way.
type DataStack struct {
	Stack awscdk.Stack
	Nova  awsdynamodb.ITable
	Daily awsdynamodb.ITable
}

// NewDataStack materializes the resolved table references.
func NewDataStack(scope awscdk.App, id string, env *awscdk.Environment, props *Props) *DataStack {
	stack := newStack(scope, id, env)

	nova := tableConstruct(stack, "NovaTable", props.Nova)
	daily := tableConstruct(stack, "DailyTable", props.Daily)

	awscdk.NewCfnOutput(stack, jsii.String("NovaTableName"), &awscdk.CfnOutputProps{
		Value: nova.TableName(),
	})
	awscdk.NewCfnOutput(stack, jsii.String("NovaTableStreamArn"), &awscdk.CfnOutputProps{
		Value: nova.TableStreamArn(),
	})
	awscdk.NewCfnOutput(stack, jsii.String("DailyTableName"), &awscdk.CfnOutputProps{
		Value: daily.TableName(),
	})
	awscdk.NewCfnOutput(stack, jsii.String("DailyTableStreamArn"), &awscdk.CfnOutputProps{
		Value: daily.TableStreamArn(),
	})

	return &DataStack{Stack: stack, Nova: nova, Daily: daily}
}

// tableConstruct creates or imports one transcript table. The item shape is
// the backends' single-attribute key: conversation_id.
func tableConstruct(stack awscdk.Stack, id string, ref tables.Reference) awsdynamodb.ITable {
	if ref.Owned() {
		return awsdynamodb.NewTableV2(stack, jsii.String(id), &awsdynamodb.TablePropsV2{
			TableName: jsii.String(ref.Name),
			PartitionKey: &awsdynamodb.Attribute{
				Name: jsii.String("conversation_id"),
				Type: awsdynamodb.AttributeType_STRING,
			},
			Billing:             awsdynamodb.Billing_OnDemand(nil),
			DynamoStream:        awsdynamodb.StreamViewType_NEW_AND_OLD_IMAGES,
			TimeToLiveAttribute: jsii.String("ttl"),
			RemovalPolicy:       awscdk.RemovalPolicy_DESTROY,
		})
	}

	return awsdynamodb.Table_FromTableAttributes(stack, jsii.String(id), &awsdynamodb.TableAttributes{
		TableName:      jsii.String(ref.Name),
		TableStreamArn: jsii.String(ref.StreamARN),
	})
}
