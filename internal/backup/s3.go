package backup

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dmitrijs2005/ballotkeeper/internal/common"
)

// S3Config holds the S3 connection settings. An empty AccessKey falls back
// to the default AWS credential chain.
type S3Config struct {
	Bucket       string
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
}

// objectAPI is the part of *s3.Client used here.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3Client = func(cfg aws.Config, optFns ...func(*s3.Options)) objectAPI {
		return s3.NewFromConfig(cfg, optFns...)
	}

	presignGetObject = func(ctx context.Context, c objectAPI, in *s3.GetObjectInput, ttl time.Duration) (*v4.PresignedHTTPRequest, error) {
		client, ok := c.(*s3.Client)
		if !ok {
			return nil, common.Validationf("presigning needs an s3 client")
		}
		return s3.NewPresignClient(client).PresignGetObject(ctx, in, s3.WithPresignExpires(ttl))
	}
)

// S3Destination is an object in an S3-compatible store.
type S3Destination struct {
	cfg    S3Config
	Bucket string
	Key    string
}

func (d *S3Destination) client(ctx context.Context) (objectAPI, error) {
	opts := []func(*config.LoadOptions) error{}
	if d.cfg.Region != "" {
		opts = append(opts, config.WithRegion(d.cfg.Region))
	}
	if d.cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(d.cfg.AccessKey, d.cfg.SecretKey, "")))
	}

	cfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, common.Storagef(err, "load aws config")
	}

	return newS3Client(cfg, func(o *s3.Options) {
		if d.cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(d.cfg.BaseEndpoint)
			// MinIO and friends address buckets by path
			o.UsePathStyle = true
		}
	}), nil
}

func (d *S3Destination) Write(ctx context.Context, data []byte) error {
	c, err := d.client(ctx)
	if err != nil {
		return err
	}
	_, err = c.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.Bucket),
		Key:         aws.String(d.Key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return common.Storagef(err, "put s3://%s/%s", d.Bucket, d.Key)
	}
	return nil
}

func (d *S3Destination) Read(ctx context.Context) ([]byte, error) {
	c, err := d.client(ctx)
	if err != nil {
		return nil, err
	}
	out, err := c.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.Bucket),
		Key:    aws.String(d.Key),
	})
	if err != nil {
		return nil, common.Storagef(err, "get s3://%s/%s", d.Bucket, d.Key)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, common.Storagef(err, "read s3://%s/%s", d.Bucket, d.Key)
	}
	return data, nil
}

// Presign returns a time-limited GET URL for the backup object, suitable
// for restoring on another machine.
func (d *S3Destination) Presign(ctx context.Context, ttl time.Duration) (string, error) {
	c, err := d.client(ctx)
	if err != nil {
		return "", err
	}
	req, err := presignGetObject(ctx, c, &s3.GetObjectInput{
		Bucket: aws.String(d.Bucket),
		Key:    aws.String(d.Key),
	}, ttl)
	if err != nil {
		return "", common.Storagef(err, "presign s3://%s/%s", d.Bucket, d.Key)
	}
	return req.URL, nil
}

func (d *S3Destination) String() string {
	return "s3://" + d.Bucket + "/" + d.Key
}
