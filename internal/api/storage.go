package api

import (
	"context"
	nethttp "net/http"
	"net/url"

	"github.com/datalab/connectctl/internal/models"
)

const (
	schemaPath         = "/api/data/storage_schema"
	testConnectionPath = "/api/data/storage_schema/test_connection"
	storagePath        = "/api/data/storage"
)

func storageItemPath(storageID string) string {
	return storagePath + "/" + url.PathEscape(storageID)
}

func secretsPath(storageID string) string {
	return storageItemPath(storageID) + "/secrets"
}

// GetStorageSchemas fetches the catalog of storage backends.
func (c *Client) GetStorageSchemas(ctx context.Context) ([]models.StorageSchema, error) {
	var schemas []models.StorageSchema
	if err := c.do(ctx, "get storage schemas", nethttp.MethodGet, schemaPath, nil, &schemas); err != nil {
		return nil, err
	}
	return schemas, nil
}

// TestConnection asks the data API to connect with the given configuration.
// A 2xx answer means the connection works; anything else is an *APIError
// carrying the server's message.
func (c *Client) TestConnection(ctx context.Context, req models.TestConnectionRequest) error {
	return c.do(ctx, "test connection", nethttp.MethodPost, testConnectionPath, req, nil)
}

// ListStorages lists the storages of a project. An empty projectID lists
// every storage visible to the caller.
func (c *Client) ListStorages(ctx context.Context, projectID string) ([]models.Storage, error) {
	path := storagePath
	if projectID != "" {
		path += "?" + url.Values{"project_id": {projectID}}.Encode()
	}
	var storages []models.Storage
	if err := c.do(ctx, "list storages", nethttp.MethodGet, path, nil, &storages); err != nil {
		return nil, err
	}
	return storages, nil
}

// GetStorage fetches one storage definition.
func (c *Client) GetStorage(ctx context.Context, storageID string) (*models.Storage, error) {
	var storage models.Storage
	if err := c.do(ctx, "get storage", nethttp.MethodGet, storageItemPath(storageID), nil, &storage); err != nil {
		return nil, err
	}
	return &storage, nil
}

// CreateStorage creates a storage definition. Secrets in the payload must
// already be redacted.
func (c *Client) CreateStorage(ctx context.Context, payload models.StoragePayload) (*models.Storage, error) {
	var storage models.Storage
	if err := c.do(ctx, "create storage", nethttp.MethodPost, storagePath, payload, &storage,
		nethttp.StatusCreated, nethttp.StatusOK); err != nil {
		return nil, err
	}
	return &storage, nil
}

// UpdateStorage replaces the definition of an existing storage.
func (c *Client) UpdateStorage(ctx context.Context, storageID string, payload models.StoragePayload) (*models.Storage, error) {
	var storage models.Storage
	if err := c.do(ctx, "update storage", nethttp.MethodPatch, storageItemPath(storageID), payload, &storage,
		nethttp.StatusOK, nethttp.StatusCreated); err != nil {
		return nil, err
	}
	return &storage, nil
}

// DeleteStorage deletes a storage definition.
func (c *Client) DeleteStorage(ctx context.Context, storageID string) error {
	return c.do(ctx, "delete storage", nethttp.MethodDelete, storageItemPath(storageID), nil, nil,
		nethttp.StatusNoContent, nethttp.StatusOK)
}

// SaveSecrets stores credentials for a storage.
func (c *Client) SaveSecrets(ctx context.Context, storageID string, secrets []models.SecretValue) error {
	return c.do(ctx, "save storage secrets", nethttp.MethodPost, secretsPath(storageID), secrets, nil)
}

// DeleteSecrets removes every stored credential of a storage.
func (c *Client) DeleteSecrets(ctx context.Context, storageID string) error {
	return c.do(ctx, "delete storage secrets", nethttp.MethodDelete, secretsPath(storageID), nil, nil,
		nethttp.StatusNoContent, nethttp.StatusOK)
}

// ListSecrets lists the names of the stored credentials of a storage.
func (c *Client) ListSecrets(ctx context.Context, storageID string) ([]models.StorageSecret, error) {
	var secrets []models.StorageSecret
	if err := c.do(ctx, "list storage secrets", nethttp.MethodGet, secretsPath(storageID), nil, &secrets); err != nil {
		return nil, err
	}
	return secrets, nil
}
