package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"

	"github.com/sdejongh/skiff/pkg/logging"
	"github.com/sdejongh/skiff/pkg/models"
	"github.com/sdejongh/skiff/pkg/protocol"
	"github.com/sdejongh/skiff/pkg/ratelimit"
	"github.com/sdejongh/skiff/pkg/verify"
)

func init() {
	protocol.Register(models.ProtocolS3, New)
}

const defaultRegion = "us-east-1"

// Session implements protocol.Session against an S3 bucket. The site
// hostname carries the bucket name and remote paths map to object keys.
// Directories exist only as key prefixes, optionally anchored by a
// zero-byte marker object ending in "/".
type Session struct {
	site   *models.Site
	opts   protocol.Options
	client *s3.Client
	cwd    string
}

// New creates an unconnected S3 session
func New(site *models.Site, opts protocol.Options) protocol.Session {
	return &Session{site: site, opts: opts, cwd: "/"}
}

func (s *Session) bucket() string {
	return s.site.Hostname
}

// Connect builds the client and verifies bucket access
func (s *Session) Connect(ctx context.Context) error {
	region := s.site.Region
	if region == "" {
		region = defaultRegion
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if s.site.Credential.Username != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(credentials.StaticCredentialsProvider{
			Value: aws.Credentials{
				AccessKeyID:     s.site.Credential.Username,
				SecretAccessKey: s.site.Credential.ResolvePassword(),
			},
		}))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return &protocol.ConnectionError{Host: s.bucket(), Err: err}
	}

	var client *s3.Client
	if s.site.Endpoint != "" {
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(s.site.Endpoint)
			o.UsePathStyle = true
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket())}); err != nil {
		if isAccessDenied(err) {
			return &protocol.AuthenticationError{Host: s.bucket(), Err: err}
		}
		return &protocol.ConnectionError{Host: s.bucket(), Err: err}
	}

	s.client = client
	s.cwd = "/"
	if s.site.RemotePath != "" {
		s.cwd = "/" + strings.Trim(s.site.RemotePath, "/")
	}

	s.opts.Log().Info(ctx, "connected", logging.Fields{
		"bucket":   s.bucket(),
		"region":   region,
		"protocol": string(s.site.Protocol),
	})
	return nil
}

// Disconnect drops the client, there is no connection to close
func (s *Session) Disconnect() error {
	s.client = nil
	return nil
}

// Connected reports whether Connect succeeded
func (s *Session) Connected() bool {
	return s.client != nil
}

func (s *Session) checkConnected() error {
	if s.client == nil {
		return &protocol.ConnectionError{Host: s.bucket(), Err: protocol.ErrNotConnected}
	}
	return nil
}

// resolve turns a possibly relative path into an absolute slash path
func (s *Session) resolve(p string) string {
	if p == "" || p == "." {
		return s.cwd
	}
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Join(s.cwd, p)
}

// key converts an absolute slash path to an object key
func (s *Session) key(p string) string {
	return strings.TrimPrefix(s.resolve(p), "/")
}

// List returns the entries directly under a prefix. Common prefixes
// become directories, objects become files, the marker object of the
// listed directory itself is skipped.
func (s *Session) List(ctx context.Context, dirPath string) ([]models.RemoteFile, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	prefix := s.key(dirPath)
	if prefix != "" {
		prefix += "/"
	}
	base := s.resolve(dirPath)

	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket()),
		Delimiter: aws.String("/"),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	var files []models.RemoteFile
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, &protocol.FileOperationError{Op: "list", Path: dirPath, Err: err}
		}

		for _, cp := range page.CommonPrefixes {
			name := path.Base(strings.TrimSuffix(aws.ToString(cp.Prefix), "/"))
			files = append(files, models.RemoteFile{
				Name: name,
				Path: path.Join(base, name),
				Type: models.FileTypeDirectory,
			})
		}
		for _, obj := range page.Contents {
			objKey := aws.ToString(obj.Key)
			if objKey == prefix {
				continue
			}
			name := path.Base(objKey)
			file := models.RemoteFile{
				Name: name,
				Path: path.Join(base, name),
				Size: aws.ToInt64(obj.Size),
				Type: models.FileTypeFile,
			}
			if obj.LastModified != nil {
				t := *obj.LastModified
				file.Modified = &t
			}
			files = append(files, file)
		}
	}
	return files, nil
}

// Stat returns metadata for an object, falling back to prefix probing
// so directories without marker objects still resolve
func (s *Session) Stat(ctx context.Context, filePath string) (*models.RemoteFile, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	full := s.resolve(filePath)
	if full == "/" {
		return &models.RemoteFile{Name: "/", Path: "/", Type: models.FileTypeDirectory}, nil
	}
	objKey := strings.TrimPrefix(full, "/")

	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket()),
		Key:    aws.String(objKey),
	})
	if err == nil {
		file := models.RemoteFile{
			Name: path.Base(full),
			Path: full,
			Size: aws.ToInt64(head.ContentLength),
			Type: models.FileTypeFile,
		}
		if head.LastModified != nil {
			t := *head.LastModified
			file.Modified = &t
		}
		return &file, nil
	}
	if !isNotFound(err) {
		return nil, &protocol.FileOperationError{Op: "stat", Path: filePath, Err: err}
	}

	ok, err := s.prefixExists(ctx, objKey+"/")
	if err != nil {
		return nil, &protocol.FileOperationError{Op: "stat", Path: filePath, Err: err}
	}
	if ok {
		return &models.RemoteFile{
			Name: path.Base(full),
			Path: full,
			Type: models.FileTypeDirectory,
		}, nil
	}
	return nil, &protocol.FileOperationError{Op: "stat", Path: filePath, Err: errors.New("no such object")}
}

// prefixExists reports whether any key starts with the prefix
func (s *Session) prefixExists(ctx context.Context, prefix string) (bool, error) {
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket()),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, err
	}
	return aws.ToInt32(out.KeyCount) > 0, nil
}

// Exists checks if an object or prefix exists
func (s *Session) Exists(ctx context.Context, filePath string) (bool, error) {
	if err := s.checkConnected(); err != nil {
		return false, err
	}

	_, err := s.Stat(ctx, filePath)
	if err == nil {
		return true, nil
	}
	var opErr *protocol.FileOperationError
	if errors.As(err, &opErr) {
		return false, nil
	}
	return false, err
}

// Mkdir writes a zero-byte marker object so empty directories survive
// listings. Prefixes need no parents, recursive changes nothing.
func (s *Session) Mkdir(ctx context.Context, dirPath string, recursive bool) error {
	if err := s.checkConnected(); err != nil {
		return err
	}

	marker := s.key(dirPath) + "/"
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket()),
		Key:    aws.String(marker),
		Body:   bytes.NewReader(nil),
	})
	if err != nil {
		return &protocol.FileOperationError{Op: "mkdir", Path: dirPath, Err: err}
	}
	return nil
}

// Rmdir removes a directory marker, refusing when the prefix still
// holds objects
func (s *Session) Rmdir(ctx context.Context, dirPath string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}

	prefix := s.key(dirPath) + "/"
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket()),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(2),
	})
	if err != nil {
		return &protocol.FileOperationError{Op: "rmdir", Path: dirPath, Err: err}
	}
	for _, obj := range out.Contents {
		if aws.ToString(obj.Key) != prefix {
			return &protocol.FileOperationError{Op: "rmdir", Path: dirPath, Err: errors.New("directory not empty")}
		}
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket()),
		Key:    aws.String(prefix),
	})
	if err != nil {
		return &protocol.FileOperationError{Op: "rmdir", Path: dirPath, Err: err}
	}
	return nil
}

// Remove deletes an object
func (s *Session) Remove(ctx context.Context, filePath string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket()),
		Key:    aws.String(s.key(filePath)),
	})
	if err != nil {
		return &protocol.FileOperationError{Op: "remove", Path: filePath, Err: err}
	}
	return nil
}

// Rename copies the object to the new key and deletes the old one.
// Prefix renames would need a copy per child and are not supported.
func (s *Session) Rename(ctx context.Context, oldPath, newPath string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}

	oldKey := s.key(oldPath)
	source := s.bucket() + "/" + oldKey

	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket()),
		CopySource: aws.String(url.PathEscape(source)),
		Key:        aws.String(s.key(newPath)),
	})
	if err != nil {
		return &protocol.FileOperationError{Op: "rename", Path: oldPath, Err: err}
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket()),
		Key:    aws.String(oldKey),
	})
	if err != nil {
		return &protocol.FileOperationError{Op: "rename", Path: oldPath, Err: err}
	}
	return nil
}

// Chmod has no meaning for object storage
func (s *Session) Chmod(ctx context.Context, filePath string, mode os.FileMode) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	return &protocol.FileOperationError{Op: "chmod", Path: filePath, Err: errors.New("not supported on s3")}
}

// Upload streams a local file into an object using multipart upload
func (s *Session) Upload(ctx context.Context, localPath, remotePath string, progress protocol.ProgressFunc) error {
	if err := s.checkConnected(); err != nil {
		return err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return &protocol.FileOperationError{Op: "upload", Path: localPath, Err: err}
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return &protocol.FileOperationError{Op: "upload", Path: localPath, Err: err}
	}

	var reader io.Reader = protocol.NewProgressReader(ctx, src, info.Size(), progress)
	reader = ratelimit.NewReader(ctx, reader, s.opts.Limiter)

	uploader := manager.NewUploader(s.client)
	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket()),
		Key:         aws.String(s.key(remotePath)),
		Body:        reader,
		ContentType: aws.String(detectContentType(localPath)),
	})
	if err != nil {
		return &protocol.FileOperationError{Op: "upload", Path: remotePath, Err: err}
	}
	if progress != nil {
		progress(info.Size(), info.Size())
	}
	return nil
}

// Download streams an object to the local path
func (s *Session) Download(ctx context.Context, remotePath, localPath string, progress protocol.ProgressFunc) error {
	if err := s.checkConnected(); err != nil {
		return err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket()),
		Key:    aws.String(s.key(remotePath)),
	})
	if err != nil {
		return &protocol.FileOperationError{Op: "download", Path: remotePath, Err: err}
	}
	defer out.Body.Close()

	size := aws.ToInt64(out.ContentLength)
	if size == 0 {
		size = -1
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return &protocol.FileOperationError{Op: "download", Path: localPath, Err: err}
	}

	dst, err := os.Create(localPath)
	if err != nil {
		return &protocol.FileOperationError{Op: "download", Path: localPath, Err: err}
	}

	var reader io.Reader = protocol.NewProgressReader(ctx, out.Body, size, progress)
	reader = ratelimit.NewReader(ctx, reader, s.opts.Limiter)

	written, err := io.CopyBuffer(dst, reader, make([]byte, s.opts.BufferSize()))
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(localPath)
		return &protocol.FileOperationError{Op: "download", Path: remotePath, Err: err}
	}
	if progress != nil {
		progress(written, written)
	}
	return nil
}

// Chdir changes the tracked prefix after verifying it resolves
func (s *Session) Chdir(ctx context.Context, dirPath string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}

	file, err := s.Stat(ctx, dirPath)
	if err != nil {
		return &protocol.FileOperationError{Op: "chdir", Path: dirPath, Err: err}
	}
	if !file.IsDir() {
		return &protocol.FileOperationError{Op: "chdir", Path: dirPath, Err: errors.New("not a directory")}
	}
	s.cwd = s.resolve(dirPath)
	return nil
}

// Cwd returns the tracked working prefix
func (s *Session) Cwd() string {
	return s.cwd
}

// Checksum returns the object ETag, which is the MD5 digest for
// objects uploaded in a single part
func (s *Session) Checksum(ctx context.Context, filePath, algo string) (string, error) {
	if err := s.checkConnected(); err != nil {
		return "", err
	}

	if algo != verify.MD5 {
		return "", protocol.ErrChecksumUnsupported
	}

	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket()),
		Key:    aws.String(s.key(filePath)),
	})
	if err != nil {
		return "", &protocol.FileOperationError{Op: "checksum", Path: filePath, Err: err}
	}

	etag := verify.Normalize(aws.ToString(head.ETag))
	if etag == "" || strings.Contains(etag, "-") {
		// Multipart ETags are not plain digests
		return "", protocol.ErrChecksumUnsupported
	}
	return etag, nil
}

// isNotFound matches the service's missing-object responses
func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "NotFound") || strings.Contains(msg, "NoSuchKey") || strings.Contains(msg, "404")
}

// isAccessDenied matches credential and permission failures
func isAccessDenied(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "AccessDenied") || strings.Contains(msg, "InvalidAccessKeyId") ||
		strings.Contains(msg, "SignatureDoesNotMatch") || strings.Contains(msg, "403")
}

func detectContentType(localPath string) string {
	if mt, err := mimetype.DetectFile(localPath); err == nil {
		return mt.String()
	}
	return "application/octet-stream"
}
