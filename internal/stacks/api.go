package stacks

import (
	"fmt"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscertificatemanager"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsec2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsecr"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsecs"
	"github.com/aws/aws-cdk-go/awscdk/v2/awselasticloadbalancingv2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsroute53"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsroute53targets"
	"github.com/aws/jsii-runtime-go"

	"github.com/dwsmith1983/sonic-infra/internal/config"
)

const apiPort = 8000

// APIStack runs the speech-to-speech backend. Topology branches on the
// deployment type: a load-balanced Fargate service, or a single public EC2
// instance running the containers directly.
type APIStack struct {
	Stack awscdk.Stack
	// Endpoint is the base URL clients and the webapp use to reach the API.
	Endpoint *string
}

// NewAPIStack builds the compute for the signaling backend.
func NewAPIStack(scope awscdk.App, id string, env *awscdk.Environment, props *Props, network *NetworkStack, data *DataStack) *APIStack {
	stack := newStack(scope, id, env)

	var endpoint *string
	switch props.Cfg.DeploymentType {
	case config.DeploymentTypeEC2:
		endpoint = newAPIInstance(stack, props, network, data)
	default:
		endpoint = newAPIService(stack, props, network, data)
	}

	awscdk.NewCfnOutput(stack, jsii.String("ApiEndpoint"), &awscdk.CfnOutputProps{
		Value: endpoint,
	})

	return &APIStack{Stack: stack, Endpoint: endpoint}
}

// newAPIService is the load-balanced topology: Fargate behind an ALB, with
// an HTTPS listener and Route53 record when DNS configuration is present.
func newAPIService(stack awscdk.Stack, props *Props, network *NetworkStack, data *DataStack) *string {
	cfg := props.Cfg

	albSG := awsec2.NewSecurityGroup(stack, jsii.String("ApiAlbSG"), &awsec2.SecurityGroupProps{
		Vpc:              network.Vpc,
		AllowAllOutbound: jsii.Bool(true),
	})
	albSG.AddIngressRule(awsec2.Peer_AnyIpv4(), awsec2.Port_Tcp(jsii.Number(80)),
		jsii.String("http from anywhere"), jsii.Bool(false))
	if cfg.HTTPS() {
		albSG.AddIngressRule(awsec2.Peer_AnyIpv4(), awsec2.Port_Tcp(jsii.Number(443)),
			jsii.String("https from anywhere"), jsii.Bool(false))
	}

	serviceSG := awsec2.NewSecurityGroup(stack, jsii.String("ApiServiceSG"), &awsec2.SecurityGroupProps{
		Vpc:              network.Vpc,
		AllowAllOutbound: jsii.Bool(true),
	})
	serviceSG.AddIngressRule(albSG, awsec2.Port_Tcp(jsii.Number(apiPort)),
		jsii.String("alb to api"), jsii.Bool(false))

	cluster := awsecs.NewCluster(stack, jsii.String("ApiCluster"), &awsecs.ClusterProps{
		Vpc: network.Vpc,
	})

	taskDef := awsecs.NewFargateTaskDefinition(stack, jsii.String("ApiTaskDef"), &awsecs.FargateTaskDefinitionProps{
		MemoryLimitMiB: jsii.Number(2048),
		Cpu:            jsii.Number(1024),
	})

	repository := awsecr.Repository_FromRepositoryName(stack, jsii.String("ApiRepo"), jsii.String(apiRepositoryName))
	taskDef.AddContainer(jsii.String("ApiContainer"), &awsecs.ContainerDefinitionOptions{
		ContainerName: jsii.String("sonic-api"),
		Image:         awsecs.ContainerImage_FromEcrRepository(repository, jsii.String("latest")),
		PortMappings: &[]*awsecs.PortMapping{
			{ContainerPort: jsii.Number(apiPort)},
		},
		Environment: apiEnvironment(cfg),
		Logging: awsecs.LogDrivers_AwsLogs(&awsecs.AwsLogDriverProps{
			StreamPrefix: jsii.String("sonic-api"),
		}),
	})
	grantBackendAccess(taskDef.TaskRole(), data)

	service := awsecs.NewFargateService(stack, jsii.String("ApiService"), &awsecs.FargateServiceProps{
		Cluster:        cluster,
		TaskDefinition: taskDef,
		DesiredCount:   jsii.Number(1),
		AssignPublicIp: jsii.Bool(true),
		SecurityGroups: &[]awsec2.ISecurityGroup{serviceSG},
	})

	alb := awselasticloadbalancingv2.NewApplicationLoadBalancer(stack, jsii.String("ApiAlb"), &awselasticloadbalancingv2.ApplicationLoadBalancerProps{
		Vpc:            network.Vpc,
		InternetFacing: jsii.Bool(true),
		SecurityGroup:  albSG,
	})

	targets := &[]awselasticloadbalancingv2.IApplicationLoadBalancerTarget{
		service.LoadBalancerTarget(&awsecs.LoadBalancerTargetOptions{
			ContainerName: jsii.String("sonic-api"),
			ContainerPort: jsii.Number(apiPort),
		}),
	}
	targetProps := &awselasticloadbalancingv2.AddApplicationTargetsProps{
		Port:     jsii.Number(apiPort),
		Protocol: awselasticloadbalancingv2.ApplicationProtocol_HTTP,
		Targets:  targets,
		HealthCheck: &awselasticloadbalancingv2.HealthCheck{
			Path:             jsii.String("/"),
			HealthyHttpCodes: jsii.String("200-399"),
		},
	}

	if !cfg.HTTPS() {
		httpListener := alb.AddListener(jsii.String("ApiHttpListener"), &awselasticloadbalancingv2.BaseApplicationListenerProps{
			Port: jsii.Number(80),
		})
		httpListener.AddTargets(jsii.String("ApiTargets"), targetProps)
		return jsii.String("http://" + *alb.LoadBalancerDnsName())
	}

	dns := cfg.DNS
	alb.AddListener(jsii.String("ApiHttpListener"), &awselasticloadbalancingv2.BaseApplicationListenerProps{
		Port: jsii.Number(80),
		DefaultAction: awselasticloadbalancingv2.ListenerAction_Redirect(&awselasticloadbalancingv2.RedirectOptions{
			Protocol: jsii.String("HTTPS"),
			Port:     jsii.String("443"),
		}),
	})

	certificate := awscertificatemanager.Certificate_FromCertificateArn(stack,
		jsii.String("ApiCertificate"), jsii.String(dns.APICertificateArn))
	httpsListener := alb.AddListener(jsii.String("ApiHttpsListener"), &awselasticloadbalancingv2.BaseApplicationListenerProps{
		Port:     jsii.Number(443),
		Protocol: awselasticloadbalancingv2.ApplicationProtocol_HTTPS,
		Certificates: &[]awselasticloadbalancingv2.IListenerCertificate{
			awselasticloadbalancingv2.ListenerCertificate_FromCertificateManager(certificate),
		},
	})
	httpsListener.AddTargets(jsii.String("ApiTargets"), targetProps)

	zone := awsroute53.HostedZone_FromLookup(stack, jsii.String("ApiZone"), &awsroute53.HostedZoneProviderProps{
		DomainName: jsii.String(dns.DomainName),
	})
	awsroute53.NewARecord(stack, jsii.String("ApiARecord"), &awsroute53.ARecordProps{
		Zone:       zone,
		RecordName: jsii.String(dns.APIFQDN()),
		Target:     awsroute53.RecordTarget_FromAlias(awsroute53targets.NewLoadBalancerTarget(alb, nil)),
	})

	return jsii.String("https://" + dns.APIFQDN())
}

// newAPIInstance is the direct topology: one public EC2 instance running
// the backend containers, no load balancer.
func newAPIInstance(stack awscdk.Stack, props *Props, network *NetworkStack, data *DataStack) *string {
	cfg := props.Cfg

	sg := awsec2.NewSecurityGroup(stack, jsii.String("ApiInstanceSG"), &awsec2.SecurityGroupProps{
		Vpc:              network.Vpc,
		AllowAllOutbound: jsii.Bool(true),
	})
	sg.AddIngressRule(awsec2.Peer_AnyIpv4(), awsec2.Port_Tcp(jsii.Number(80)),
		jsii.String("http from anywhere"), jsii.Bool(false))
	sg.AddIngressRule(awsec2.Peer_AnyIpv4(), awsec2.Port_Tcp(jsii.Number(apiPort)),
		jsii.String("api from anywhere"), jsii.Bool(false))
	if cfg.HTTPS() {
		sg.AddIngressRule(awsec2.Peer_AnyIpv4(), awsec2.Port_Tcp(jsii.Number(443)),
			jsii.String("https from anywhere"), jsii.Bool(false))
	}

	role := awsiam.NewRole(stack, jsii.String("ApiInstanceRole"), &awsiam.RoleProps{
		AssumedBy: awsiam.NewServicePrincipal(jsii.String("ec2.amazonaws.com"), nil),
	})
	grantBackendAccess(role, data)
	role.AddManagedPolicy(awsiam.ManagedPolicy_FromAwsManagedPolicyName(
		jsii.String("AmazonEC2ContainerRegistryReadOnly")))

	userData := awsec2.UserData_ForLinux(nil)
	userData.AddCommands(
		jsii.String("dnf install -y docker"),
		jsii.String("systemctl enable --now docker"),
		jsii.String(fmt.Sprintf(
			"docker run -d --restart unless-stopped -p %d:%d"+
				" -e DYNAMODB_TABLE_NAME=%s -e DAILY_TABLE_NAME=%s -e HOST=0.0.0.0 -e PORT=%d"+
				" $(aws sts get-caller-identity --query Account --output text).dkr.ecr.%s.amazonaws.com/%s:latest",
			apiPort, apiPort, cfg.NovaTableName, cfg.DailyTableName, apiPort, cfg.Region, apiRepositoryName)),
	)

	instance := awsec2.NewInstance(stack, jsii.String("ApiInstance"), &awsec2.InstanceProps{
		Vpc:           network.Vpc,
		InstanceType:  awsec2.InstanceType_Of(awsec2.InstanceClass_BURSTABLE3, awsec2.InstanceSize_LARGE),
		MachineImage:  awsec2.MachineImage_LatestAmazonLinux2023(nil),
		SecurityGroup: sg,
		Role:          role,
		UserData:      userData,
		VpcSubnets: &awsec2.SubnetSelection{
			SubnetType: awsec2.SubnetType_PUBLIC,
		},
		AssociatePublicIpAddress: jsii.Bool(true),
	})

	if cfg.HTTPS() {
		dns := cfg.DNS
		zone := awsroute53.HostedZone_FromLookup(stack, jsii.String("ApiZone"), &awsroute53.HostedZoneProviderProps{
			DomainName: jsii.String(dns.DomainName),
		})
		awsroute53.NewARecord(stack, jsii.String("ApiARecord"), &awsroute53.ARecordProps{
			Zone:       zone,
			RecordName: jsii.String(dns.APIFQDN()),
			Target:     awsroute53.RecordTarget_FromIpAddresses(instance.InstancePublicIp()),
		})
		return jsii.String("https://" + dns.APIFQDN())
	}

	return jsii.String("http://" + *instance.InstancePublicDnsName() + fmt.Sprintf(":%d", apiPort))
}

// apiEnvironment is the backend container environment. The backends read
// DYNAMODB_TABLE_NAME; the region comes from the task metadata.
func apiEnvironment(cfg *config.Config) *map[string]*string {
	return &map[string]*string{
		"DYNAMODB_TABLE_NAME": jsii.String(cfg.NovaTableName),
		"DAILY_TABLE_NAME":    jsii.String(cfg.DailyTableName),
		"HOST":                jsii.String("0.0.0.0"),
		"PORT":                jsii.String(fmt.Sprintf("%d", apiPort)),
		"LOGLEVEL":            jsii.String(cfg.LogLevel),
	}
}

// grantBackendAccess gives the backend compute write access to the
// transcript tables and bidirectional-stream access to Bedrock.
func grantBackendAccess(grantee awsiam.IRole, data *DataStack) {
	data.Nova.GrantReadWriteData(grantee)
	data.Daily.GrantReadWriteData(grantee)

	grantee.AddToPrincipalPolicy(awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
		Actions: &[]*string{
			jsii.String("bedrock:InvokeModel"),
			jsii.String("bedrock:InvokeModelWithResponseStream"),
			jsii.String("bedrock:InvokeModelWithBidirectionalStream"),
		},
		Resources: &[]*string{jsii.String("*")},
	}))
}
