package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"testing"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/starford/metacheck/internal/apperr"
	"github.com/starford/metacheck/internal/models"
)

// fakeS3 is an in-memory bucket that pages listings two keys at a time.
type fakeS3 struct {
	objects map[string][]byte
	etags   map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, etags: map[string]string{}}
}

func (f *fakeS3) put(key string, body []byte, etag string) {
	f.objects[key] = body
	f.etags[key] = etag
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	start := 0
	if in.ContinuationToken != nil {
		for i, k := range keys {
			if k == *in.ContinuationToken {
				start = i
			}
		}
	}
	end := min(start+2, len(keys))
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(keys))}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, s3types.Object{Key: aws.String(k)})
	}
	if end < len(keys) {
		out.NextContinuationToken = aws.String(keys[end])
	}
	return out, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	key := aws.ToString(in.Key)
	if _, ok := f.objects[key]; !ok {
		return nil, &s3types.NotFound{}
	}
	return &s3.HeadObjectOutput{ETag: aws.String(`"` + f.etags[key] + `"`)}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func s3Archive(t *testing.T) (*S3, *fakeS3) {
	t.Helper()
	fake := newFakeS3()
	sc, err := testSidecar("10001", "1").Marshal()
	if err != nil {
		t.Fatal(err)
	}
	fake.put("seq/10001/10001_1#30.bam", []byte("a"), "0cc175b9c0f1b6a831c399e269772661")
	fake.put("seq/10001/10001_1#30.bam"+SidecarSuffix, sc, "x")
	fake.put("seq/10001/10001_2#30.bam", []byte("b"), "0123456789abcdef0123456789abcdef-3")
	fake.put("seq/10002/10002_1.bam", []byte("c"), "4a8a08f09d37b73795649038408b5f33")
	return NewS3WithClient(fake, "archive"), fake
}

func TestS3List(t *testing.T) {
	s, _ := s3Archive(t)
	got, err := s.List(context.Background(), "/seq/10001")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"/seq/10001/10001_1#30.bam", "/seq/10001/10001_2#30.bam"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("List = %v, want %v", got, want)
	}
	all, _ := s.List(context.Background(), "")
	if len(all) != 3 {
		t.Errorf("List all = %v", all)
	}
}

func TestS3Annotations(t *testing.T) {
	s, _ := s3Archive(t)
	ctx := context.Background()
	anns, err := s.Annotations(ctx, "/seq/10001/10001_1#30.bam")
	if err != nil {
		t.Fatalf("Annotations: %v", err)
	}
	if len(anns) != 4 || anns[0] != (models.RawAnnotation{Attribute: "id_run", Value: "10001"}) {
		t.Errorf("annotations = %v", anns)
	}
	anns, err = s.Annotations(ctx, "/seq/10002/10002_1.bam")
	if err != nil || len(anns) != 0 {
		t.Errorf("annotations without sidecar = %v, %v", anns, err)
	}
	if _, err := s.Annotations(ctx, "/seq/9/9_1.bam"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestS3Checksum(t *testing.T) {
	s, _ := s3Archive(t)
	ctx := context.Background()
	sum, err := s.Checksum(ctx, "/seq/10001/10001_1#30.bam")
	if err != nil || sum != "0cc175b9c0f1b6a831c399e269772661" {
		t.Errorf("Checksum = %q, %v", sum, err)
	}
	sum, err = s.Checksum(ctx, "/seq/10001/10001_2#30.bam")
	if err != nil || sum != "" {
		t.Errorf("multipart Checksum = %q, %v", sum, err)
	}
}

func TestS3Find(t *testing.T) {
	s, _ := s3Archive(t)
	got, err := s.Find(context.Background(), Query{Match: []models.RawAnnotation{{Attribute: "id_run", Value: "10001"}}})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(got) != 1 || got[0] != "/seq/10001/10001_1#30.bam" {
		t.Errorf("Find = %v", got)
	}
}

func TestS3Open(t *testing.T) {
	s, _ := s3Archive(t)
	rc, err := s.Open(context.Background(), "/seq/10002/10002_1.bam")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "c" {
		t.Errorf("content = %q", data)
	}
}
