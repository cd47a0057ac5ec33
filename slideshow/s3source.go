package slideshow

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/aouyang1/pckiosk/util"
)

// S3Source serves media straight from an S3 bucket, optionally under a key
// prefix.
type S3Source struct {
	client *s3.Client

	bucket string
	prefix string
}

func NewS3Source(ctx context.Context, profile, bucket, prefix string) (*S3Source, error) {
	var opts []func(*config.LoadOptions) error
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}

	// Load the Shared AWS Configuration (~/.aws/config)
	ctxCfg, cancelCfg := context.WithTimeout(ctx, 3*time.Second)
	cfg, err := config.LoadDefaultConfig(ctxCfg, opts...)
	cancelCfg()
	if err != nil {
		return nil, fmt.Errorf("unable to load aws config: %w", err)
	}

	return &S3Source{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
	}, nil
}

func (s *S3Source) List(ctx context.Context) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("unable to list s3 bucket %s: %w", s.bucket, err)
		}
		for object := range slices.Values(page.Contents) {
			keys = append(keys, aws.ToString(object.Key))
		}
	}
	return mediaNames(keys, s.prefix), nil
}

func (s *S3Source) Fetch(ctx context.Context, name string, dst io.WriterAt) error {
	downloader := manager.NewDownloader(s.client)
	if _, err := downloader.Download(ctx, dst, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + name),
	}); err != nil {
		return fmt.Errorf("unable to download object from s3, %s, %w", name, err)
	}
	return nil
}

// mediaNames strips the prefix from object keys and keeps flat, displayable
// names only.
func mediaNames(keys []string, prefix string) []string {
	var names []string
	for _, key := range keys {
		name := strings.TrimPrefix(key, prefix)
		if name == "" || strings.Contains(name, "/") {
			continue
		}
		if !util.SupportedExt.Contains(util.Ext(name)) {
			continue
		}
		names = append(names, name)
	}
	return names
}
