package storage

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	headOut   *s3.HeadObjectOutput
	headErr   error
	deleteErr error
	deleted   []string
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	return f.headOut, f.headErr
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, f.deleteErr
}

type fakePresigner struct {
	put     *s3.PutObjectInput
	get     *s3.GetObjectInput
	expires time.Duration
	err     error
}

func (f *fakePresigner) PresignPutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.put = in
	var o s3.PresignOptions
	for _, fn := range optFns {
		fn(&o)
	}
	f.expires = o.Expires
	if f.err != nil {
		return nil, f.err
	}
	return &v4.PresignedHTTPRequest{URL: "https://s3.example/put", Method: http.MethodPut}, nil
}

func (f *fakePresigner) PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.get = in
	if f.err != nil {
		return nil, f.err
	}
	return &v4.PresignedHTTPRequest{URL: "https://s3.example/get", Method: http.MethodGet}, nil
}

func TestNewS3Gateway_AppliesOptions(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	origNewS3 := newS3ClientFromConfig
	origNewPre := newS3PresignClient
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNewS3
		newS3PresignClient = origNewPre
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "eu-central-1", lo.Region)
		require.NotNil(t, lo.Credentials)
		return aws.Config{}, nil
	}

	var opts s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		for _, fn := range optFns {
			fn(&opts)
		}
		return &s3.Client{}
	}
	newS3PresignClient = func(c *s3.Client) *s3.PresignClient { return &s3.PresignClient{} }

	gw, err := NewS3Gateway(context.Background(), S3Options{
		Region:       "eu-central-1",
		AccessKey:    "ak",
		SecretKey:    "sk",
		BaseEndpoint: "http://127.0.0.1:9000",
		Bucket:       "documents",
	})
	require.NoError(t, err)
	assert.Equal(t, "documents", gw.bucket)
	assert.Equal(t, "http://127.0.0.1:9000", aws.ToString(opts.BaseEndpoint))
	assert.True(t, opts.UsePathStyle)
}

func TestNewS3Gateway_ConfigError(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = origLoad })

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no creds")
	}

	_, err := NewS3Gateway(context.Background(), S3Options{})
	require.ErrorContains(t, err, "load aws config")
}

func TestS3Gateway_PresignPutBindsContentType(t *testing.T) {
	pre := &fakePresigner{}
	gw := &S3Gateway{bucket: "b", client: &fakeS3{}, presign: pre}

	url, err := gw.PresignPut(context.Background(), "k1", "application/pdf", 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "https://s3.example/put", url)
	assert.Equal(t, "b", aws.ToString(pre.put.Bucket))
	assert.Equal(t, "k1", aws.ToString(pre.put.Key))
	assert.Equal(t, "application/pdf", aws.ToString(pre.put.ContentType))
	assert.Equal(t, 10*time.Minute, pre.expires)
}

func TestS3Gateway_PresignErrors(t *testing.T) {
	gw := &S3Gateway{bucket: "b", client: &fakeS3{}, presign: &fakePresigner{err: errors.New("sign")}}

	_, err := gw.PresignPut(context.Background(), "k", "", time.Minute)
	require.ErrorContains(t, err, "presign put")
	_, err = gw.PresignGet(context.Background(), "k", "a.pdf", time.Minute)
	require.ErrorContains(t, err, "presign get")
}

func TestS3Gateway_PresignGetSetsDisposition(t *testing.T) {
	pre := &fakePresigner{}
	gw := &S3Gateway{bucket: "b", client: &fakeS3{}, presign: pre}

	_, err := gw.PresignGet(context.Background(), "k1", "brief.pdf", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, `attachment; filename=brief.pdf`, aws.ToString(pre.get.ResponseContentDisposition))
}

func TestS3Gateway_HeadObject(t *testing.T) {
	modified := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	gw := &S3Gateway{bucket: "b", client: &fakeS3{headOut: &s3.HeadObjectOutput{
		ContentLength: aws.Int64(2048),
		ContentType:   aws.String("application/pdf"),
		ETag:          aws.String(`"abc"`),
		LastModified:  &modified,
	}}}

	info, err := gw.HeadObject(context.Background(), "k1")
	require.NoError(t, err)
	assert.Equal(t, &ObjectInfo{Key: "k1", Size: 2048, ContentType: "application/pdf", ETag: `"abc"`, LastModified: modified}, info)
}

func TestS3Gateway_HeadObjectNotFoundVariants(t *testing.T) {
	notFoundResp := &awshttp.ResponseError{ResponseError: &smithyhttp.ResponseError{
		Response: &smithyhttp.Response{Response: &http.Response{StatusCode: http.StatusNotFound}},
		Err:      errors.New("not found"),
	}}

	for name, headErr := range map[string]error{
		"types.NotFound":  &types.NotFound{},
		"types.NoSuchKey": &types.NoSuchKey{},
		"api code":        &smithy.GenericAPIError{Code: "NotFound"},
		"http 404":        notFoundResp,
	} {
		t.Run(name, func(t *testing.T) {
			gw := &S3Gateway{bucket: "b", client: &fakeS3{headErr: headErr}}
			_, err := gw.HeadObject(context.Background(), "k")
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestS3Gateway_HeadObjectOtherError(t *testing.T) {
	gw := &S3Gateway{bucket: "b", client: &fakeS3{headErr: &smithy.GenericAPIError{Code: "AccessDenied"}}}

	_, err := gw.HeadObject(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestS3Gateway_DeleteObjectIgnoresMissing(t *testing.T) {
	fake := &fakeS3{deleteErr: &types.NoSuchKey{}}
	gw := &S3Gateway{bucket: "b", client: fake}

	require.NoError(t, gw.DeleteObject(context.Background(), "k"))
	assert.Equal(t, []string{"k"}, fake.deleted)

	fake.deleteErr = errors.New("boom")
	require.ErrorContains(t, gw.DeleteObject(context.Background(), "k"), "delete object")
}
