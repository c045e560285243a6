// Package s3 is the Amazon S3 attachment backend. Any S3-compatible
// endpoint works when Endpoint is set.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/upiiz/school-records-api/internal/attachment"
)

type Backend struct {
	client *s3.Client
	creds  aws.CredentialsProvider
	bucket string
}

// New loads the default AWS credential chain. Missing credentials are not
// an error here; every call reports them as attachment.ErrUnavailable.
func New(ctx context.Context, region, bucket, endpoint string) (*Backend, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("s3.New: load config: %w", err)
	}

	return NewFromConfig(cfg, bucket, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func NewFromConfig(cfg aws.Config, bucket string, optFns ...func(*s3.Options)) *Backend {
	return &Backend{
		client: s3.NewFromConfig(cfg, optFns...),
		creds:  cfg.Credentials,
		bucket: bucket,
	}
}

func (b *Backend) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := b.available(ctx); err != nil {
		return err
	}

	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return classify(err)
	}
	return nil
}

// Delete checks the key exists first, since S3 deletes missing keys
// without complaint.
func (b *Backend) Delete(ctx context.Context, key string) error {
	if err := b.available(ctx); err != nil {
		return err
	}

	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return classify(err)
	}

	_, err = b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return classify(err)
	}
	return nil
}

func (b *Backend) available(ctx context.Context) error {
	if b.creds == nil {
		return attachment.ErrUnavailable
	}
	creds, err := b.creds.Retrieve(ctx)
	if err != nil || !creds.HasKeys() {
		return attachment.ErrUnavailable
	}
	return nil
}

func classify(err error) error {
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		switch re.HTTPStatusCode() {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", attachment.ErrNotFound, err)
		case http.StatusForbidden, http.StatusUnauthorized:
			return fmt.Errorf("%w: %v", attachment.ErrUnavailable, err)
		}
	}
	return err
}
