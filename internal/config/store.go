package config

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/vango-dev/localstate/internal/errors"
	"github.com/vango-dev/localstate/pkg/storage"
)

// OpenStore opens the configured store. Stores that hold resources
// implement io.Closer; the caller closes them.
func (c *Config) OpenStore(logger *slog.Logger) (storage.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch c.Store.Kind {
	case KindMemory:
		return storage.NewMemory(), nil

	case KindNull:
		return storage.Null(), nil

	case KindFile:
		f, err := storage.OpenFile(c.DirPath(), storage.WithFileLogger(logger))
		if err != nil {
			return nil, err
		}
		return f, nil

	case KindSQLite:
		poll, err := c.PollInterval()
		if err != nil {
			return nil, err
		}
		db, err := storage.OpenSQLite(c.DBPath(),
			storage.WithSQLTable(c.Store.Table),
			storage.WithSQLPollInterval(poll),
			storage.WithSQLLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		return db, nil

	case KindS3:
		return storage.NewS3(c.s3Client(), c.Store.Bucket, storage.WithS3Prefix(c.Store.Prefix)), nil

	default:
		return nil, errors.New(errors.CodeUnknownStore).WithDetail("store.kind " + c.Store.Kind)
	}
}

// s3Client builds a client from the store settings. Credentials come from
// the standard AWS_* environment variables.
func (c *Config) s3Client() *s3.Client {
	opts := s3.Options{
		Region:       c.Store.Region,
		UsePathStyle: c.Store.PathStyle,
		Credentials:  aws.NewCredentialsCache(envCredentials{}),
	}
	if c.Store.Endpoint != "" {
		opts.BaseEndpoint = aws.String(c.Store.Endpoint)
	}
	return s3.New(opts)
}

// envCredentials reads static credentials from the environment.
type envCredentials struct{}

func (envCredentials) Retrieve(context.Context) (aws.Credentials, error) {
	creds := aws.Credentials{
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		Source:          "localstate-env",
	}
	if creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
		return aws.Credentials{}, errors.New(errors.CodeInvalidConfig).
			WithDetail("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set for the s3 store")
	}
	return creds, nil
}
