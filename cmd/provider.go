package cmd

import (
	"context"

	"s3cleanup/config"
	"s3cleanup/internal/minioclient"
	"s3cleanup/internal/s3client"
	"s3cleanup/internal/storage"
)

// newClient builds the storage client for the configured provider.
var newClient = func(ctx context.Context) (storage.Client, error) {
	if cfg.Provider == config.ProviderMinIO {
		client, err := minioclient.New(cfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	client, err := s3client.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return client, nil
}
