package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/xxxsen/ragkb/internal/config"
	appErr "github.com/xxxsen/ragkb/internal/pkg/errors"
)

// s3Store emulates folders with key prefixes. A folder's mtime is its newest object.
type s3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

func init() {
	Register("s3", createS3Store)
}

func createS3Store(cfg config.FileStoreConfig) (Store, error) {
	c := cfg.S3
	if c.Endpoint == "" || c.Bucket == "" || c.SecretID == "" || c.SecretKey == "" {
		return nil, fmt.Errorf("s3 endpoint/bucket/secret_id/secret_key are required")
	}
	region := c.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c.SecretID, c.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}
	endpoint := buildS3Endpoint(c.Endpoint, c.UseSSL)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
	return &s3Store{client: client, bucket: c.Bucket, prefix: strings.Trim(c.Prefix, "/")}, nil
}

func (s *s3Store) objectKey(key string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if s.prefix != "" {
		key = path.Join(s.prefix, key)
	}
	return key, nil
}

func (s *s3Store) relKey(objectKey string) string {
	if s.prefix == "" {
		return objectKey
	}
	return strings.TrimPrefix(objectKey, s.prefix+"/")
}

func (s *s3Store) Save(ctx context.Context, key string, r io.Reader, size int64) error {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return err
	}
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
		Body:   r,
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}
	_, err = s.client.PutObject(ctx, input)
	return err
}

func (s *s3Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(objectKey)})
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("open %s: %w", key, appErr.ErrNotFound)
		}
		return nil, err
	}
	return out.Body, nil
}

func (s *s3Store) Stat(ctx context.Context, key string) (*FileInfo, error) {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return nil, err
	}
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(objectKey)})
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("stat %s: %w", key, appErr.ErrNotFound)
		}
		return nil, err
	}
	info := &FileInfo{Key: s.relKey(objectKey), Size: aws.ToInt64(out.ContentLength)}
	if out.LastModified != nil {
		info.ModTime = *out.LastModified
	}
	return info, nil
}

func (s *s3Store) listPrefix(prefix string) (string, error) {
	if prefix == "" {
		if s.prefix == "" {
			return "", nil
		}
		return s.prefix + "/", nil
	}
	objectKey, err := s.objectKey(prefix)
	if err != nil {
		return "", err
	}
	return objectKey + "/", nil
}

func (s *s3Store) Walk(ctx context.Context, prefix string) ([]FileInfo, error) {
	listPrefix, err := s.listPrefix(prefix)
	if err != nil {
		return nil, err
	}
	files := make([]FileInfo, 0)
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(listPrefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") {
				continue
			}
			fi := FileInfo{Key: s.relKey(key), Size: aws.ToInt64(obj.Size)}
			if obj.LastModified != nil {
				fi.ModTime = *obj.LastModified
			}
			files = append(files, fi)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Key < files[j].Key })
	return files, nil
}

func (s *s3Store) ListDirs(ctx context.Context, prefix string) ([]DirInfo, error) {
	files, err := s.Walk(ctx, prefix)
	if err != nil {
		return nil, err
	}
	base := strings.Trim(prefix, "/") + "/"
	index := make(map[string]int)
	dirs := make([]DirInfo, 0)
	for _, f := range files {
		rest := strings.TrimPrefix(f.Key, base)
		name, _, ok := strings.Cut(rest, "/")
		if !ok || name == "" {
			continue
		}
		i, seen := index[name]
		if !seen {
			index[name] = len(dirs)
			dirs = append(dirs, DirInfo{Name: name, ModTime: f.ModTime})
			continue
		}
		if f.ModTime.After(dirs[i].ModTime) {
			dirs[i].ModTime = f.ModTime
		}
	}
	return dirs, nil
}

func (s *s3Store) RemoveAll(ctx context.Context, prefix string) error {
	files, err := s.Walk(ctx, prefix)
	if err != nil {
		return err
	}
	const batch = 1000
	for start := 0; start < len(files); start += batch {
		end := start + batch
		if end > len(files) {
			end = len(files)
		}
		ids := make([]types.ObjectIdentifier, 0, end-start)
		for _, f := range files[start:end] {
			objectKey, err := s.objectKey(f.Key)
			if err != nil {
				return err
			}
			ids = append(ids, types.ObjectIdentifier{Key: aws.String(objectKey)})
		}
		_, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func isS3NotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}

func buildS3Endpoint(endpoint string, useSSL bool) string {
	ep := endpoint
	if !strings.HasPrefix(ep, "http://") && !strings.HasPrefix(ep, "https://") {
		scheme := "http"
		if useSSL {
			scheme = "https"
		}
		ep = scheme + "://" + ep
	}
	u, err := url.Parse(ep)
	if err != nil {
		return strings.TrimSuffix(ep, "/")
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}
