package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	apperrors "github.com/anime-shed/plant-inspector-go/internal/errors"
)

const blobHostSuffix = ".blob.core.windows.net"

// AzureConfig configures the blob fetcher. Without an account key only
// public or SAS-signed blob URLs can be read.
type AzureConfig struct {
	AccountName string
	AccountKey  string
	MaxBytes    int64
}

// AzureBlobFetcher reads leaf photos stored in Azure Blob Storage
type AzureBlobFetcher struct {
	account  string
	shared   *azblob.Client
	maxBytes int64
}

// NewAzureBlobFetcher creates a blob fetcher, authenticating with a shared
// key when one is configured.
func NewAzureBlobFetcher(cfg AzureConfig) (*AzureBlobFetcher, error) {
	f := &AzureBlobFetcher{account: strings.ToLower(cfg.AccountName), maxBytes: cfg.MaxBytes}
	if f.maxBytes <= 0 {
		f.maxBytes = DefaultHTTPConfig().MaxBytes
	}
	if cfg.AccountName == "" || cfg.AccountKey == "" {
		return f, nil
	}

	credential, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("invalid azure storage credentials: %w", err)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s%s", cfg.AccountName, blobHostSuffix),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure blob client: %w", err)
	}
	f.shared = client
	return f, nil
}

// IsAzureBlobURL reports whether rawURL points at an Azure blob endpoint
func IsAzureBlobURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Hostname()), blobHostSuffix)
}

// FetchImage downloads the blob named by blobURL and decodes it
func (f *AzureBlobFetcher) FetchImage(ctx context.Context, blobURL string) (*FetchedImage, error) {
	parts, err := azblob.ParseURL(blobURL)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid blob URL", err)
	}
	if parts.ContainerName == "" || parts.BlobName == "" {
		return nil, apperrors.NewValidationError("blob URL must name a container and a blob", nil)
	}

	client, err := f.clientFor(parts)
	if err != nil {
		return nil, err
	}

	resp, err := client.DownloadStream(ctx, parts.ContainerName, parts.BlobName, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, apperrors.NewNotFoundError("image not found", err)
		}
		if ctx.Err() != nil {
			return nil, apperrors.NewTimeoutError("blob download timed out", err)
		}
		return nil, apperrors.NewNetworkError("blob download failed", err)
	}
	defer resp.Body.Close()

	if resp.ContentLength != nil && *resp.ContentLength > f.maxBytes {
		return nil, apperrors.NewValidationError(fmt.Sprintf("image exceeds %d bytes", f.maxBytes), nil)
	}

	img, err := DecodeImage(resp.Body, f.maxBytes)
	if err != nil {
		return nil, err
	}
	if resp.ContentType != nil {
		img.Metadata.ContentType = *resp.ContentType
	}
	return img, nil
}

// clientFor returns the shared-key client for the configured account and an
// anonymous (optionally SAS-signed) client for anything else.
func (f *AzureBlobFetcher) clientFor(parts azblob.URLParts) (*azblob.Client, error) {
	host := strings.ToLower(parts.Host)
	if f.shared != nil && host == f.account+blobHostSuffix && parts.SAS.Signature() == "" {
		return f.shared, nil
	}

	serviceURL := fmt.Sprintf("%s://%s/", parts.Scheme, parts.Host)
	if sas := parts.SAS.Encode(); sas != "" {
		serviceURL += "?" + sas
	}
	client, err := azblob.NewClientWithNoCredential(serviceURL, nil)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to create blob client", err)
	}
	return client, nil
}
