package objectclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	cfg "github.com/exexexll/figwork-knowledge/internal/config"
	"github.com/exexexll/figwork-knowledge/internal/core"
)

// S3Client implements core.ObjectClient on AWS S3. Documents are uploaded by
// the external upload service; this client mostly fetches bytes for the
// ingestion pipeline.
type S3Client struct {
	client *s3.Client
	region string
	bucket string
	logger *zap.Logger
}

func NewS3Client(ctx context.Context, conf *cfg.Config, logger *zap.Logger) (*S3Client, error) {
	if conf.AwsAccessKey == "" || conf.AwsSecretKey == "" {
		return nil, fmt.Errorf("AWS credentials not set")
	}
	if conf.AwsRegion == "" {
		return nil, fmt.Errorf("AWS_REGION not set")
	}
	if conf.BucketName == "" {
		return nil, fmt.Errorf("S3 bucket name not set")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion(conf.AwsRegion),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(conf.AwsAccessKey, conf.AwsSecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	logger.Info("connected to s3", zap.String("region", conf.AwsRegion), zap.String("bucket", conf.BucketName))

	return &S3Client{
		client: s3.NewFromConfig(awsCfg),
		region: conf.AwsRegion,
		bucket: conf.BucketName,
		logger: logger,
	}, nil
}

// UploadFile uploads an object and returns its virtual-hosted URL.
func (c *S3Client) UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	uploader := manager.NewUploader(c.client)

	input := &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	}

	uploadCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	if _, err := uploader.Upload(uploadCtx, input); err != nil {
		return "", fmt.Errorf("s3 upload failed: %w", err)
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, c.region, key), nil
}

func (c *S3Client) DeleteFile(ctx context.Context, bucket, key string) error {
	delCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := c.client.DeleteObject(delCtx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 delete failed: %w", err)
	}
	return nil
}

func (c *S3Client) GetFile(ctx context.Context, bucket, key string) ([]byte, error) {
	getCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	resp, err := c.client.GetObject(getCtx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

var _ core.ObjectClient = (*S3Client)(nil)
