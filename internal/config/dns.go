package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// DNSConfig describes the custom domain and pre-provisioned ACM certificates
// for an HTTPS deployment. Loaded once from a JSON file; absence of the file
// is a supported state meaning HTTP-only.
type DNSConfig struct {
	DomainName           string `json:"domainName"`
	WebappSubdomain      string `json:"webappSubdomain"`
	APISubdomain         string `json:"apiSubdomain"`
	WebappCertificateArn string `json:"webappCertificateArn"`
	APICertificateArn    string `json:"apiCertificateArn"`
}

// WebappFQDN returns the fully qualified domain for the web frontend.
func (d *DNSConfig) WebappFQDN() string {
	return d.WebappSubdomain + "." + d.DomainName
}

// APIFQDN returns the fully qualified domain for the API.
func (d *DNSConfig) APIFQDN() string {
	return d.APISubdomain + "." + d.DomainName
}

// LoadDNS reads the DNS configuration file at path. A missing file returns
// (nil, nil): the deployment proceeds HTTP-only. A malformed or incomplete
// file returns an error; the caller downgrades it to a warning rather than
// aborting, since a working HTTP deployment is always possible.
func LoadDNS(path string) (*DNSConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading DNS config %s: %w", path, err)
	}

	var dns DNSConfig
	if err := json.Unmarshal(data, &dns); err != nil {
		return nil, fmt.Errorf("parsing DNS config %s: %w", path, err)
	}

	if err := dns.validate(); err != nil {
		return nil, fmt.Errorf("invalid DNS config %s: %w", path, err)
	}
	return &dns, nil
}

func (d *DNSConfig) validate() error {
	if d.DomainName == "" {
		return fmt.Errorf("domainName is required")
	}
	if d.WebappSubdomain == "" || d.APISubdomain == "" {
		return fmt.Errorf("webappSubdomain and apiSubdomain are required")
	}
	if d.WebappCertificateArn == "" || d.APICertificateArn == "" {
		return fmt.Errorf("webappCertificateArn and apiCertificateArn are required")
	}
	return nil
}
