package stacks

import (
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscertificatemanager"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsec2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsecr"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsecs"
	"github.com/aws/aws-cdk-go/awscdk/v2/awselasticloadbalancingv2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsroute53"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsroute53targets"
	"github.com/aws/jsii-runtime-go"
)

const webappPort = 80

// WebAppStack serves the static web client from an nginx container behind
// its own load balancer. The container entrypoint substitutes the
// SONIC_APP_* variables into the served files before nginx starts, so the
// environment below is the complete runtime configuration of the client.
type WebAppStack struct {
	Stack awscdk.Stack
	URL   *string
}

// NewWebAppStack builds the web frontend service.
func NewWebAppStack(scope awscdk.App, id string, env *awscdk.Environment, props *Props, network *NetworkStack, api *APIStack, events *EventsStack) *WebAppStack {
	stack := newStack(scope, id, env)
	cfg := props.Cfg

	albSG := awsec2.NewSecurityGroup(stack, jsii.String("WebAlbSG"), &awsec2.SecurityGroupProps{
		Vpc:              network.Vpc,
		AllowAllOutbound: jsii.Bool(true),
	})
	albSG.AddIngressRule(awsec2.Peer_AnyIpv4(), awsec2.Port_Tcp(jsii.Number(80)),
		jsii.String("http from anywhere"), jsii.Bool(false))
	if cfg.HTTPS() {
		albSG.AddIngressRule(awsec2.Peer_AnyIpv4(), awsec2.Port_Tcp(jsii.Number(443)),
			jsii.String("https from anywhere"), jsii.Bool(false))
	}

	serviceSG := awsec2.NewSecurityGroup(stack, jsii.String("WebServiceSG"), &awsec2.SecurityGroupProps{
		Vpc:              network.Vpc,
		AllowAllOutbound: jsii.Bool(true),
	})
	serviceSG.AddIngressRule(albSG, awsec2.Port_Tcp(jsii.Number(webappPort)),
		jsii.String("alb to nginx"), jsii.Bool(false))

	cluster := awsecs.NewCluster(stack, jsii.String("WebCluster"), &awsecs.ClusterProps{
		Vpc: network.Vpc,
	})

	taskDef := awsecs.NewFargateTaskDefinition(stack, jsii.String("WebTaskDef"), &awsecs.FargateTaskDefinitionProps{
		MemoryLimitMiB: jsii.Number(512),
		Cpu:            jsii.Number(256),
	})

	repository := awsecr.Repository_FromRepositoryName(stack, jsii.String("WebRepo"), jsii.String(webappRepositoryName))
	taskDef.AddContainer(jsii.String("WebContainer"), &awsecs.ContainerDefinitionOptions{
		ContainerName: jsii.String("sonic-webapp"),
		Image:         awsecs.ContainerImage_FromEcrRepository(repository, jsii.String("latest")),
		PortMappings: &[]*awsecs.PortMapping{
			{ContainerPort: jsii.Number(webappPort)},
		},
		Environment: &map[string]*string{
			"SONIC_APP_API_BASE_URL":        api.Endpoint,
			"SONIC_APP_EVENTS_HTTP_URL":     events.HTTPEndpoint,
			"SONIC_APP_EVENTS_REALTIME_URL": events.RealtimeEndpoint,
			"SONIC_APP_EVENTS_API_KEY":      events.APIKey,
		},
		Logging: awsecs.LogDrivers_AwsLogs(&awsecs.AwsLogDriverProps{
			StreamPrefix: jsii.String("sonic-webapp"),
		}),
	})

	service := awsecs.NewFargateService(stack, jsii.String("WebService"), &awsecs.FargateServiceProps{
		Cluster:        cluster,
		TaskDefinition: taskDef,
		DesiredCount:   jsii.Number(1),
		AssignPublicIp: jsii.Bool(true),
		SecurityGroups: &[]awsec2.ISecurityGroup{serviceSG},
	})

	alb := awselasticloadbalancingv2.NewApplicationLoadBalancer(stack, jsii.String("WebAlb"), &awselasticloadbalancingv2.ApplicationLoadBalancerProps{
		Vpc:            network.Vpc,
		InternetFacing: jsii.Bool(true),
		SecurityGroup:  albSG,
	})

	targetProps := &awselasticloadbalancingv2.AddApplicationTargetsProps{
		Port:     jsii.Number(webappPort),
		Protocol: awselasticloadbalancingv2.ApplicationProtocol_HTTP,
		Targets: &[]awselasticloadbalancingv2.IApplicationLoadBalancerTarget{
			service.LoadBalancerTarget(&awsecs.LoadBalancerTargetOptions{
				ContainerName: jsii.String("sonic-webapp"),
				ContainerPort: jsii.Number(webappPort),
			}),
		},
		HealthCheck: &awselasticloadbalancingv2.HealthCheck{
			Path: jsii.String("/"),
		},
	}

	var url *string
	if cfg.HTTPS() {
		dns := cfg.DNS
		alb.AddListener(jsii.String("WebHttpListener"), &awselasticloadbalancingv2.BaseApplicationListenerProps{
			Port: jsii.Number(80),
			DefaultAction: awselasticloadbalancingv2.ListenerAction_Redirect(&awselasticloadbalancingv2.RedirectOptions{
				Protocol: jsii.String("HTTPS"),
				Port:     jsii.String("443"),
			}),
		})
		certificate := awscertificatemanager.Certificate_FromCertificateArn(stack,
			jsii.String("WebCertificate"), jsii.String(dns.WebappCertificateArn))
		httpsListener := alb.AddListener(jsii.String("WebHttpsListener"), &awselasticloadbalancingv2.BaseApplicationListenerProps{
			Port:     jsii.Number(443),
			Protocol: awselasticloadbalancingv2.ApplicationProtocol_HTTPS,
			Certificates: &[]awselasticloadbalancingv2.IListenerCertificate{
				awselasticloadbalancingv2.ListenerCertificate_FromCertificateManager(certificate),
			},
		})
		httpsListener.AddTargets(jsii.String("WebTargets"), targetProps)

		zone := awsroute53.HostedZone_FromLookup(stack, jsii.String("WebZone"), &awsroute53.HostedZoneProviderProps{
			DomainName: jsii.String(dns.DomainName),
		})
		awsroute53.NewARecord(stack, jsii.String("WebARecord"), &awsroute53.ARecordProps{
			Zone:       zone,
			RecordName: jsii.String(dns.WebappFQDN()),
			Target:     awsroute53.RecordTarget_FromAlias(awsroute53targets.NewLoadBalancerTarget(alb, nil)),
		})
		url = jsii.String("https://" + dns.WebappFQDN())
	} else {
		httpListener := alb.AddListener(jsii.String("WebHttpListener"), &awselasticloadbalancingv2.BaseApplicationListenerProps{
			Port: jsii.Number(80),
		})
		httpListener.AddTargets(jsii.String("WebTargets"), targetProps)
		url = jsii.String("http://" + *alb.LoadBalancerDnsName())
	}

	awscdk.NewCfnOutput(stack, jsii.String("WebappURL"), &awscdk.CfnOutputProps{
		Value: url,
	})

	return &WebAppStack{Stack: stack, URL: url}
}
