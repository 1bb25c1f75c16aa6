package storage

import (
	"fmt"
	"net/url"
	"strings"
)

// S3ProviderConfig holds provider-specific defaults for an S3-compatible
// endpoint.
type S3ProviderConfig struct {
	Name              string
	DefaultEndpoint   string
	RequiresRegion    bool
	RequiresPathStyle bool
	SupportedRegions  []string
	DefaultRegion     string
	EndpointTemplate  string
	ForcePathStyle    bool
}

// KnownS3Providers catalogs the S3-compatible providers BAR ships
// presets for, keyed by lower-case name.
var KnownS3Providers = map[string]S3ProviderConfig{
	"aws": {
		Name:              "AWS S3",
		DefaultEndpoint:   "https://s3.amazonaws.com",
		RequiresRegion:    true,
		RequiresPathStyle: false,
		SupportedRegions: []string{
			"us-east-1", "us-east-2", "us-west-1", "us-west-2",
			"eu-west-1", "eu-west-2", "eu-west-3", "eu-central-1",
			"ap-southeast-1", "ap-southeast-2", "ap-northeast-1",
			"ap-northeast-2", "sa-east-1", "ca-central-1",
		},
		DefaultRegion: "us-east-1",
	},
	"minio": {
		Name:              "MinIO",
		DefaultEndpoint:   "http://localhost:9000",
		RequiresRegion:    false,
		RequiresPathStyle: true,
		DefaultRegion:     "us-east-1",
	},
	"wasabi": {
		Name:              "Wasabi",
		DefaultEndpoint:   "https://s3.wasabisys.com",
		RequiresRegion:    true,
		RequiresPathStyle: false,
		SupportedRegions: []string{
			"us-east-1", "us-east-2", "us-west-1", "eu-central-1",
			"ap-northeast-1", "ap-northeast-2",
		},
		DefaultRegion: "us-east-1",
	},
	"hetzner": {
		Name:              "Hetzner Storage Box",
		DefaultEndpoint:   "https://your-storagebox.your-server.de",
		RequiresRegion:    false,
		RequiresPathStyle: true,
		DefaultRegion:     "nbg1",
	},
	"digitalocean": {
		Name:              "DigitalOcean Spaces",
		DefaultEndpoint:   "https://nyc3.digitaloceanspaces.com",
		RequiresRegion:    true,
		RequiresPathStyle: false,
		SupportedRegions:  []string{"nyc3", "ams3", "sgp1", "sfo3", "fra1", "blr1"},
		DefaultRegion:     "nyc3",
		EndpointTemplate:  "https://%s.digitaloceanspaces.com",
	},
	"backblaze": {
		Name:              "Backblaze B2",
		DefaultEndpoint:   "https://s3.us-west-000.backblazeb2.com",
		RequiresRegion:    true,
		RequiresPathStyle: true,
		SupportedRegions:  []string{"us-west-000", "us-west-001", "us-west-002", "us-west-004", "eu-central-003"},
		DefaultRegion:     "us-west-000",
		EndpointTemplate:  "https://s3.%s.backblazeb2.com",
	},
	"cloudflare": {
		Name:              "Cloudflare R2",
		DefaultEndpoint:   "https://<account-id>.r2.cloudflarestorage.com",
		RequiresRegion:    false,
		RequiresPathStyle: false,
		DefaultRegion:     "auto",
	},
	"linode": {
		Name:              "Linode Object Storage",
		DefaultEndpoint:   "https://us-east-1.linodeobjects.com",
		RequiresRegion:    true,
		RequiresPathStyle: false,
		SupportedRegions:  []string{"us-east-1", "eu-central-1", "ap-south-1"},
		DefaultRegion:     "us-east-1",
		EndpointTemplate:  "https://%s.linodeobjects.com",
	},
	"scaleway": {
		Name:              "Scaleway Object Storage",
		DefaultEndpoint:   "https://s3.fr-par.scw.cloud",
		RequiresRegion:    true,
		RequiresPathStyle: false,
		SupportedRegions:  []string{"fr-par", "nl-ams", "pl-waw", "ap-sg"},
		DefaultRegion:     "fr-par",
		EndpointTemplate:  "https://s3.%s.scw.cloud",
	},
	"oracle": {
		Name:              "Oracle Cloud Infrastructure",
		DefaultEndpoint:   "https://objectstorage.us-ashburn-1.oraclecloud.com",
		RequiresRegion:    true,
		RequiresPathStyle: false,
		SupportedRegions: []string{
			"us-ashburn-1", "us-phoenix-1", "eu-frankfurt-1",
			"uk-london-1", "ap-sydney-1", "ap-tokyo-1",
		},
		DefaultRegion:    "us-ashburn-1",
		EndpointTemplate: "https://objectstorage.%s.oraclecloud.com",
	},
	"idrive": {
		Name:              "IDrive e2",
		DefaultEndpoint:   "https://s3.us-west-2.idrivee2-29.com",
		RequiresRegion:    true,
		RequiresPathStyle: true,
		SupportedRegions:  []string{"us-west-2", "us-east-1", "eu-west-1", "ap-south-1"},
		DefaultRegion:     "us-west-2",
		EndpointTemplate:  "https://s3.%s.idrivee2-29.com",
	},
}

// GetS3ProviderConfig returns the preset for a given provider name.
func GetS3ProviderConfig(provider string) (S3ProviderConfig, error) {
	if provider == "" {
		return S3ProviderConfig{}, fmt.Errorf("storage: provider name is required")
	}
	cfg, ok := KnownS3Providers[strings.ToLower(provider)]
	if !ok {
		return S3ProviderConfig{}, fmt.Errorf("storage: unknown s3 provider %q (known: %s)",
			provider, strings.Join(s3ProviderNames(), ", "))
	}
	return cfg, nil
}

// ResolveS3Endpoint fills in a missing endpoint/region from the
// provider's preset and normalizes the result.
func ResolveS3Endpoint(endpoint, provider, region string) (string, string, error) {
	cfg, err := GetS3ProviderConfig(provider)
	if err != nil {
		return "", "", err
	}

	if endpoint == "" {
		if cfg.EndpointTemplate != "" && region != "" {
			endpoint = fmt.Sprintf(cfg.EndpointTemplate, region)
		} else {
			endpoint = cfg.DefaultEndpoint
		}
	}
	endpoint = normalizeS3Endpoint(endpoint)

	if region == "" && cfg.DefaultRegion != "" {
		region = cfg.DefaultRegion
	}
	return endpoint, region, nil
}

func normalizeS3Endpoint(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	return strings.TrimSuffix(endpoint, "/")
}

// ValidateS3Endpoint checks that an endpoint URL is well-formed.
func ValidateS3Endpoint(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("storage: invalid s3 endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("storage: s3 endpoint must use http:// or https://")
	}
	if u.Host == "" {
		return fmt.Errorf("storage: s3 endpoint must include a hostname")
	}
	return nil
}

func s3ProviderNames() []string {
	names := make([]string, 0, len(KnownS3Providers))
	for name := range KnownS3Providers {
		names = append(names, name)
	}
	return names
}

// RequiresPathStyleAddressing reports whether a provider needs
// path-style bucket addressing instead of virtual-hosted style.
func RequiresPathStyleAddressing(provider string) bool {
	cfg, err := GetS3ProviderConfig(provider)
	if err != nil {
		return false
	}
	return cfg.RequiresPathStyle || cfg.ForcePathStyle
}
