package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hupe1980/clusterfs/blobstore"
	minioblob "github.com/hupe1980/clusterfs/blobstore/minio"
	s3blob "github.com/hupe1980/clusterfs/blobstore/s3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// newStore builds the export target described by cfg.
func newStore(ctx context.Context, cfg ExportConfig) (blobstore.Store, error) {
	switch cfg.Target {
	case "local":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("local export needs --dir")
		}
		return blobstore.NewLocalStore(cfg.Dir), nil

	case "minio":
		if cfg.Bucket == "" || cfg.Endpoint == "" {
			return nil, fmt.Errorf("minio export needs --bucket and --endpoint")
		}
		client, err := minio.New(cfg.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: cfg.Secure,
			Region: cfg.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		return minioblob.NewStore(client, cfg.Bucket, ""), nil

	case "s3":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("s3 export needs --bucket")
		}
		var loadOpts []func(*awsconfig.LoadOptions) error
		if cfg.Region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("aws config: %w", err)
		}
		client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
				o.UsePathStyle = true
			}
		})
		return s3blob.NewStore(client, cfg.Bucket, ""), nil
	}
	return nil, fmt.Errorf("unknown export target %q", cfg.Target)
}
