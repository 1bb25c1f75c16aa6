package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3Backend implements Backend over an S3-compatible object storage
// bucket. S3 objects support neither in-place writes nor arbitrary
// random-access reads of an in-progress upload, so this backend stages
// the whole object in a local temp file: writes land there and are
// flushed to the bucket with one PutObject on Close, reads download the
// whole object once on Open and are served from the staged copy
// afterward.
type s3Backend struct {
	client *s3.Client
	bucket string
	key    string

	staging *os.File
	mode    s3Mode
	eof     bool
}

type s3Mode int

const (
	s3ModeClosed s3Mode = iota
	s3ModeWrite
	s3ModeRead
)

func newS3Backend(target Target) (*s3Backend, error) {
	provider := firstQueryValue(target.Query, "provider", "aws")
	region := firstQueryValue(target.Query, "region", "")
	accessKey := firstQueryValue(target.Query, "access_key", "")
	secretKey := firstQueryValue(target.Query, "secret_key", "")

	endpoint, region, err := ResolveS3Endpoint(firstQueryValue(target.Query, "endpoint", ""), provider, region)
	if err != nil {
		return nil, err
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if accessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("storage: loading aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if provider != "aws" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = RequiresPathStyleAddressing(provider)
		})
	}

	return &s3Backend{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		bucket: target.Host,
		key:    target.Path,
	}, nil
}

func firstQueryValue(q map[string][]string, key, fallback string) string {
	if q == nil {
		return fallback
	}
	if values, ok := q[key]; ok && len(values) > 0 {
		return values[0]
	}
	return fallback
}

func (b *s3Backend) Create(path string, sizeHint int64) error {
	b.key = path
	f, err := os.CreateTemp("", "bar-s3-write-*")
	if err != nil {
		return fmt.Errorf("storage: staging s3 write: %w", err)
	}
	b.staging = f
	b.mode = s3ModeWrite
	return nil
}

func (b *s3Backend) Open(path string) error {
	b.key = path
	out, err := b.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key),
	})
	if err != nil {
		return fmt.Errorf("storage: s3 GetObject %s/%s: %w", b.bucket, b.key, err)
	}
	defer out.Body.Close()

	f, err := os.CreateTemp("", "bar-s3-read-*")
	if err != nil {
		return fmt.Errorf("storage: staging s3 read: %w", err)
	}
	if _, err := io.Copy(f, out.Body); err != nil {
		f.Close()
		return fmt.Errorf("storage: downloading s3 object: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return err
	}
	b.staging = f
	b.mode = s3ModeRead
	return nil
}

func (b *s3Backend) Close() error {
	if b.staging == nil {
		return nil
	}
	defer func() {
		name := b.staging.Name()
		b.staging.Close()
		os.Remove(name)
		b.staging = nil
	}()

	if b.mode != s3ModeWrite {
		return nil
	}
	if _, err := b.staging.Seek(0, io.SeekStart); err != nil {
		return err
	}
	info, err := b.staging.Stat()
	if err != nil {
		return err
	}
	body := make([]byte, info.Size())
	if _, err := io.ReadFull(b.staging, body); err != nil {
		return fmt.Errorf("storage: reading staged upload: %w", err)
	}

	_, err = b.client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key),
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return fmt.Errorf("storage: s3 PutObject %s/%s: %w", b.bucket, b.key, err)
	}
	return nil
}

func (b *s3Backend) EOF() bool { return b.eof }

func (b *s3Backend) Read(buf []byte) error {
	n, err := io.ReadFull(b.staging, buf)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		b.eof = true
	}
	if n == len(buf) {
		return nil
	}
	return err
}

func (b *s3Backend) Write(buf []byte) error {
	_, err := b.staging.Write(buf)
	return err
}

func (b *s3Backend) Tell() (uint64, error) {
	pos, err := b.staging.Seek(0, io.SeekCurrent)
	return uint64(pos), err
}

func (b *s3Backend) Seek(offset uint64) error {
	b.eof = false
	_, err := b.staging.Seek(int64(offset), io.SeekStart)
	return err
}

func (b *s3Backend) GetSize() (int64, error) {
	info, err := b.staging.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
