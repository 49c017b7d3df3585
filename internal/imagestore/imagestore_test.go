package imagestore

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDiskStoreSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "images")
	store := NewDiskStore(dir)

	path, err := store.Save(context.Background(), "abc", ".PNG", testPNG(t, 1600, 400))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "abc.png"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 800, cfg.Width)
	assert.Equal(t, 200, cfg.Height)
}

func TestDiskStoreKeepsSmallImages(t *testing.T) {
	store := NewDiskStore(t.TempDir())

	path, err := store.Save(context.Background(), "small", ".jpg", testPNG(t, 320, 240))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 320, cfg.Width)
}

func TestDiskStoreRejects(t *testing.T) {
	store := NewDiskStore(t.TempDir())

	_, err := store.Save(context.Background(), "x", ".gif", testPNG(t, 10, 10))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = store.Save(context.Background(), "x", ".png", []byte("not an image"))
	assert.ErrorIs(t, err, ErrInvalidImage)
}

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = params
	f.body, _ = io.ReadAll(params.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestS3StoreSave(t *testing.T) {
	putter := &fakePutter{}
	store := &S3Store{client: putter, bucket: "dishes"}

	url, err := store.Save(context.Background(), "r1", ".png", testPNG(t, 900, 90))
	require.NoError(t, err)

	assert.Equal(t, "https://dishes.s3.amazonaws.com/recipe-images/r1.png", url)
	assert.Equal(t, "dishes", aws.ToString(putter.input.Bucket))
	assert.Equal(t, "recipe-images/r1.png", aws.ToString(putter.input.Key))
	assert.Equal(t, "image/png", aws.ToString(putter.input.ContentType))

	cfg, err := png.DecodeConfig(bytes.NewReader(putter.body))
	require.NoError(t, err)
	assert.Equal(t, 800, cfg.Width)
}

func TestS3StoreUploadError(t *testing.T) {
	store := &S3Store{client: &fakePutter{err: errors.New("access denied")}, bucket: "dishes"}

	_, err := store.Save(context.Background(), "r1", ".jpeg", testPNG(t, 10, 10))
	assert.ErrorContains(t, err, "failed to upload to S3")
}

func TestSupportedExtension(t *testing.T) {
	t.Parallel()

	for ext, want := range map[string]bool{".jpg": true, ".JPEG": true, ".png": true, ".gif": false, "": false} {
		assert.Equal(t, want, SupportedExtension(ext), ext)
	}
}
