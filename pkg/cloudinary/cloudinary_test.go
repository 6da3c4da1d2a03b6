package cloudinary

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	params uploader.UploadParams
	body   []byte
	result *uploader.UploadResult
	err    error
}

func (f *fakeUploader) Upload(_ context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error) {
	f.params = params
	if reader, ok := file.(io.Reader); ok {
		f.body, _ = io.ReadAll(reader)
	}
	return f.result, f.err
}

func TestPublicIDSanitisesName(t *testing.T) {
	id := PublicID("Login Error (1).PNG")
	require.True(t, strings.HasPrefix(id, "Login-Error--1-"), id)
	require.Len(t, id, len("Login-Error--1-")+8)

	require.True(t, strings.HasPrefix(PublicID("???.png"), "screenshot-"))
	require.NotEqual(t, PublicID("a.png"), PublicID("a.png"))
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{CloudName: "demo"}, zerolog.Nop())
	require.Error(t, err)
}

func TestUploadSendsTaggedImage(t *testing.T) {
	fake := &fakeUploader{result: &uploader.UploadResult{PublicID: "brovoice/x", SecureURL: "https://res.cloudinary.com/demo/image/upload/x.png"}}
	svc := NewWithUploader(fake, "/brovoice/screenshots/", zerolog.Nop())

	url, err := svc.Upload(context.Background(), "bug.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	require.Equal(t, "https://res.cloudinary.com/demo/image/upload/x.png", url)
	require.Equal(t, "brovoice/screenshots", fake.params.Folder)
	require.Equal(t, "image", fake.params.ResourceType)
	require.Equal(t, api.CldAPIArray{screenshotTag}, fake.params.Tags)
	require.True(t, strings.HasPrefix(fake.params.PublicID, "bug-"))
	require.Equal(t, "png-bytes", string(fake.body))
}

func TestUploadSurfacesProviderErrors(t *testing.T) {
	svc := NewWithUploader(&fakeUploader{err: errors.New("timeout")}, "", zerolog.Nop())
	_, err := svc.Upload(context.Background(), "bug.png", strings.NewReader("x"))
	require.ErrorContains(t, err, "timeout")

	rejected := &uploader.UploadResult{}
	rejected.Error.Message = "Invalid image file"
	svc = NewWithUploader(&fakeUploader{result: rejected}, "", zerolog.Nop())
	_, err = svc.Upload(context.Background(), "bug.png", strings.NewReader("x"))
	require.ErrorContains(t, err, "Invalid image file")
}
