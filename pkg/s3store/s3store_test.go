package s3store

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakePutObject struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutObject) PutObject(ctx context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = params
	body, _ := io.ReadAll(params.Body)
	f.body = body
	return &s3.PutObjectOutput{}, nil
}

func TestUploadWritesUnderPrefix(t *testing.T) {
	client := &fakePutObject{}
	store := NewWithClient(client, Config{Bucket: "brovoice", Region: "ap-south-1"}, zerolog.Nop())

	url, err := store.Upload(context.Background(), "login-error.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)

	key := aws.ToString(client.input.Key)
	require.True(t, strings.HasPrefix(key, "screenshots/"))
	require.True(t, strings.HasSuffix(key, "-login-error.png"))
	require.Equal(t, "image/png", aws.ToString(client.input.ContentType))
	require.Equal(t, "png-bytes", string(client.body))
	require.Equal(t, "https://brovoice.s3.ap-south-1.amazonaws.com/"+key, url)
}

func TestUploadWrapsClientError(t *testing.T) {
	store := NewWithClient(&fakePutObject{err: errors.New("access denied")}, Config{Bucket: "brovoice"}, zerolog.Nop())

	_, err := store.Upload(context.Background(), "x.jpg", strings.NewReader("x"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "access denied")
}
