package remote

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeS3 keeps objects in a map and pages listings pageSize keys at a time.
type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string][]byte
	pageSize int
	lists    int
}

func newFakeS3(pageSize int) *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte), pageSize: pageSize}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	start := 0
	if tok := aws.ToString(in.ContinuationToken); tok != "" {
		start, _ = slices.BinarySearch(keys, tok)
	}
	end := min(start+f.pageSize, len(keys))
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(keys))}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	if end < len(keys) {
		out.NextContinuationToken = aws.String(keys[end])
	}
	return out, nil
}

func TestS3StoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3(2)
	s := NewS3WithClient(fake, "bucket", "/board/")

	id, err := s.Add(ctx, Users, map[string]any{"email": "ann@example.com", "profilePhotoId": 2})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := fake.objects["board/users/"+id+".json"]; !ok {
		t.Fatalf("object key not found, have %v", fake.objects)
	}

	doc, err := s.Get(ctx, Users, id)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Data["profilePhotoId"] != 2.0 {
		t.Errorf("profilePhotoId = %#v", doc.Data["profilePhotoId"])
	}

	if err := s.Update(ctx, Users, id, map[string]any{"profilePhotoUrl": "https://x/y.png"}); err != nil {
		t.Fatal(err)
	}
	doc, _ = s.Get(ctx, Users, id)
	if doc.Data["profilePhotoUrl"] != "https://x/y.png" || doc.Data["email"] != "ann@example.com" {
		t.Errorf("after update: %v", doc.Data)
	}

	if err := s.Delete(ctx, Users, id); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, Users, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete: %v, want ErrNotFound", err)
	}
	if err := s.Update(ctx, Users, id, map[string]any{"x": 1}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update missing: %v, want ErrNotFound", err)
	}
}

func TestS3StoreQueryPaginates(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3(2)
	s := NewS3WithClient(fake, "bucket", "")

	for i := range 5 {
		if err := s.Set(ctx, Messages, string(rune('a'+i)), map[string]any{"receiverId": "2", "timestamp": i}); err != nil {
			t.Fatal(err)
		}
	}
	_ = s.Set(ctx, Jobs, "other", map[string]any{"receiverId": "2"})

	got, err := s.Query(ctx, Messages, Where("receiverId", Eq, "2").OrderBy("timestamp", true).Take(4))
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"e", "d", "c", "b"}; !slices.Equal(ids(got), want) {
		t.Errorf("Query ids = %v, want %v", ids(got), want)
	}
	if fake.lists != 3 {
		t.Errorf("list calls = %d, want 3 pages", fake.lists)
	}
}

func TestS3ConfigFromURL(t *testing.T) {
	u, _ := url.Parse("s3://key:secret@jobs-bucket/prod/docs?region=eu-central-1&endpoint=http://localhost:9000")
	cfg := s3ConfigFromURL(u)
	want := S3Config{
		Bucket:    "jobs-bucket",
		Prefix:    "prod/docs",
		Region:    "eu-central-1",
		Endpoint:  "http://localhost:9000",
		AccessKey: "key",
		SecretKey: "secret",
	}
	if cfg != want {
		t.Errorf("cfg = %+v, want %+v", cfg, want)
	}
}
