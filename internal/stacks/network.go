package stacks

import (
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsec2"
	"github.com/aws/jsii-runtime-go"
)

// NetworkStack provides the VPC shared by the API and webapp services.
type NetworkStack struct {
	Stack awscdk.Stack
	Vpc   awsec2.IVpc
}

// NewNetworkStack builds a two-AZ VPC without NAT gateways; the services
// run in public subnets and reach ECR/S3 through VPC endpoints instead.
func NewNetworkStack(scope awscdk.App, id string, env *awscdk.Environment, props *Props) *NetworkStack {
	stack := newStack(scope, id, env)

	vpc := awsec2.NewVpc(stack, jsii.String("SonicVpc"), &awsec2.VpcProps{
		MaxAzs:      jsii.Number(2),
		NatGateways: jsii.Number(0),
	})

	vpc.AddGatewayEndpoint(jsii.String("S3Endpoint"), &awsec2.GatewayVpcEndpointOptions{
		Service: awsec2.GatewayVpcEndpointAwsService_S3(),
	})
	vpc.AddInterfaceEndpoint(jsii.String("EcrApiEndpoint"), &awsec2.InterfaceVpcEndpointOptions{
		Service: awsec2.InterfaceVpcEndpointAwsService_ECR(),
	})
	vpc.AddInterfaceEndpoint(jsii.String("EcrDockerEndpoint"), &awsec2.InterfaceVpcEndpointOptions{
		Service: awsec2.InterfaceVpcEndpointAwsService_ECR_DOCKER(),
	})

	awscdk.NewCfnOutput(stack, jsii.String("VpcId"), &awscdk.CfnOutputProps{
		Value: vpc.VpcId(),
	})

	return &NetworkStack{Stack: stack, Vpc: vpc}
}
