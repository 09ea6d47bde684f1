package objstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3API is the subset of the S3 client used by the store.
// Narrowing the SDK surface keeps the adapter mockable.
type S3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3PresignAPI is the subset of the S3 presign client used by the store.
type S3PresignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3ClientConfig holds connection settings for an S3-compatible backend
// (AWS S3, MinIO, LocalStack, R2).
type S3ClientConfig struct {
	Region       string
	Endpoint     string // custom endpoint; empty for AWS S3
	UsePathStyle bool   // required by MinIO/LocalStack default setups
	AccessKey    string // static credentials; default chain when empty
	SecretKey    string
}

// NewS3Client creates an S3 client from connection settings.
func NewS3Client(ctx context.Context, cfg S3ClientConfig) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// S3Store implements Store on an S3-compatible backend.
type S3Store struct {
	client  S3API
	presign S3PresignAPI
	bucket  string
	timeout time.Duration
}

// NewS3Store creates an S3-backed store. The client must be pre-configured
// with credentials, region, and endpoint (see NewS3Client).
func NewS3Store(client S3API, presign S3PresignAPI, bucket string, timeout time.Duration) (*S3Store, error) {
	if client == nil {
		return nil, errors.New("s3: client is required")
	}
	if presign == nil {
		return nil, errors.New("s3: presign client is required")
	}
	if bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &S3Store{
		client:  client,
		presign: presign,
		bucket:  bucket,
		timeout: timeout,
	}, nil
}

// NewS3StoreFromClient wires both data-plane and presign operations from a
// concrete SDK client.
func NewS3StoreFromClient(client *s3.Client, bucket string, timeout time.Duration) (*S3Store, error) {
	return NewS3Store(client, s3.NewPresignClient(client), bucket, timeout)
}

// List implements Store. One ListObjectsV2 round trip per call; the store's
// MaxKeys cap bounds the page.
func (s *S3Store) List(ctx context.Context, prefix string, pageSize int, token string) (Page, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(int32(pageSize)),
	}
	if token != "" {
		input.ContinuationToken = aws.String(token)
	}

	out, err := s.client.ListObjectsV2(ctx, input)
	if err != nil {
		return Page{}, s.wrapErr("list objects", err)
	}

	page := Page{Objects: make([]ObjectRef, 0, len(out.Contents))}
	for _, obj := range out.Contents {
		ref := ObjectRef{Key: aws.ToString(obj.Key), Size: aws.ToInt64(obj.Size)}
		if obj.LastModified != nil {
			ref.LastModified = *obj.LastModified
		}
		page.Objects = append(page.Objects, ref)
	}
	if aws.ToBool(out.IsTruncated) {
		page.NextToken = aws.ToString(out.NextContinuationToken)
	}

	return page, nil
}

// Get implements Store. The SDK binds the response body to the request
// context, so Get must not impose the store timeout: a stream read can
// legitimately outlive any fixed bound, and only the caller's context limits
// it. Closing the body releases the request context.
func (s *S3Store) Get(ctx context.Context, key string) (io.ReadCloser, ObjectRef, error) {
	reqCtx, cancel := context.WithCancel(ctx)

	out, err := s.client.GetObject(reqCtx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		cancel()
		return nil, ObjectRef{}, s.wrapErr("get object", err)
	}

	ref := ObjectRef{Key: key, Size: aws.ToInt64(out.ContentLength)}
	if out.LastModified != nil {
		ref.LastModified = *out.LastModified
	}

	return &streamBody{ReadCloser: out.Body, cancel: cancel}, ref, nil
}

// streamBody couples a response body to its request context so the context
// lives as long as the stream does.
type streamBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *streamBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

// Stat implements Store.
func (s *S3Store) Stat(ctx context.Context, key string) (ObjectRef, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return ObjectRef{}, s.wrapErr("head object", err)
	}

	ref := ObjectRef{Key: key, Size: aws.ToInt64(out.ContentLength)}
	if out.LastModified != nil {
		ref.LastModified = *out.LastModified
	}

	return ref, nil
}

// Put implements Store. Without overwrite the write is conditional
// (If-None-Match: *) so a collision never clobbers existing bytes.
func (s *S3Store) Put(ctx context.Context, key string, body io.Reader, overwrite bool) (ObjectRef, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	data, err := io.ReadAll(body)
	if err != nil {
		return ObjectRef{}, fmt.Errorf("s3: reading upload body: %w", err)
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if !overwrite {
		input.IfNoneMatch = aws.String("*")
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			code := apiErr.ErrorCode()
			if code == "PreconditionFailed" || code == "412" {
				return ObjectRef{}, ErrConflict
			}
		}
		return ObjectRef{}, s.wrapErr("put object", err)
	}

	return ObjectRef{Key: key, Size: int64(len(data)), LastModified: time.Now().UTC()}, nil
}

// Sign implements Store. Presigning is local cryptographic work; no round
// trip is made and existence of the key is not verified here.
func (s *S3Store) Sign(ctx context.Context, key string, expiresIn time.Duration, mode SignMode) (SignedURL, error) {
	withExpiry := func(o *s3.PresignOptions) { o.Expires = expiresIn }

	var (
		req *v4.PresignedHTTPRequest
		err error
	)
	switch mode {
	case SignModeWrite:
		req, err = s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		}, withExpiry)
	default:
		req, err = s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		}, withExpiry)
	}
	if err != nil {
		return SignedURL{}, fmt.Errorf("s3: presign %s: %w", mode, err)
	}

	return SignedURL{
		URL:       req.URL,
		ExpiresAt: time.Now().UTC().Add(expiresIn),
		Fields:    map[string]string{},
	}, nil
}

// wrapErr normalizes SDK failures into the store's sentinel taxonomy.
func (s *S3Store) wrapErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("s3: %s: %w", op, ErrTimeout)
	}
	if isNotFound(err) {
		return ErrNotFound
	}
	return fmt.Errorf("s3: %s: %w", op, err)
}

// isNotFound checks if an error indicates the object was not found.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey" || code == "404"
	}
	return false
}
