package probe

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/datalab/connectctl/internal/models"
)

// ErrMissingAccount is returned when neither an account nor a SAS URL is set.
var ErrMissingAccount = errors.New("azureblob needs an account or a sas_url")

// AzureOptions are the rclone azureblob options the probe understands.
type AzureOptions struct {
	Account  string `mapstructure:"account"`
	Key      string `mapstructure:"key"`
	SASURL   string `mapstructure:"sas_url"`
	Endpoint string `mapstructure:"endpoint"`
}

// DecodeAzureOptions decodes an azureblob option bag.
func DecodeAzureOptions(cfg models.Configuration) (AzureOptions, error) {
	var opts AzureOptions
	if err := decodeOptions(cfg, &opts); err != nil {
		return opts, err
	}
	if opts.Account == "" && opts.SASURL == "" {
		return opts, ErrMissingAccount
	}
	return opts, nil
}

// ServiceURL returns the blob service URL the probe connects to.
func (o AzureOptions) ServiceURL() string {
	switch {
	case o.SASURL != "":
		return o.SASURL
	case o.Endpoint != "":
		return withScheme(o.Endpoint)
	default:
		return fmt.Sprintf("https://%s.blob.core.windows.net/", o.Account)
	}
}

// AzureProber checks an azureblob configuration by reading the container
// properties, or listing containers when no container is named.
type AzureProber struct {
	HTTPClient *nethttp.Client
}

// Probe implements Prober.
func (p *AzureProber) Probe(ctx context.Context, cfg models.Configuration, sourcePath string) error {
	opts, err := DecodeAzureOptions(cfg)
	if err != nil {
		return err
	}
	if err := checkSecrets(map[string]string{"key": opts.Key, "sas_url": opts.SASURL}); err != nil {
		return err
	}

	client, err := p.newClient(opts)
	if err != nil {
		return err
	}

	containerName, _ := splitSourcePath(sourcePath)
	if containerName != "" {
		_, err = client.ServiceClient().NewContainerClient(containerName).GetProperties(ctx, nil)
		return probeError("azureblob", err)
	}

	maxResults := int32(1)
	pager := client.NewListContainersPager(&azblob.ListContainersOptions{MaxResults: &maxResults})
	_, err = pager.NextPage(ctx)
	return probeError("azureblob", err)
}

func (p *AzureProber) newClient(opts AzureOptions) (*azblob.Client, error) {
	clientOpts := &azblob.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			// A negative value means a single try
			Retry: policy.RetryOptions{MaxRetries: -1},
		},
	}
	if p.HTTPClient != nil {
		clientOpts.Transport = p.HTTPClient
	}

	var (
		client *azblob.Client
		err    error
	)
	serviceURL := opts.ServiceURL()
	if opts.Key != "" && opts.SASURL == "" {
		cred, credErr := azblob.NewSharedKeyCredential(opts.Account, strings.TrimSpace(opts.Key))
		if credErr != nil {
			return nil, fmt.Errorf("invalid azure account key: %w", credErr)
		}
		client, err = azblob.NewClientWithSharedKeyCredential(serviceURL, cred, clientOpts)
	} else {
		client, err = azblob.NewClientWithNoCredential(serviceURL, clientOpts)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}
	return client, nil
}
