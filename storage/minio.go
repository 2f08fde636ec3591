package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig describes an S3-compatible bucket
type MinioConfig struct {
	Access   string
	Secret   string
	Bucket   string
	Endpoint string
	Region   string
	// Insecure disables https, for local minio servers
	Insecure     bool
	RequestTrace io.Writer
}

// Minio stores files as objects in an S3-compatible bucket
type Minio struct {
	Client *minio.Client
	Bucket string
}

var _ Backend = &Minio{}

// NewMinio connects to the endpoint and checks that the bucket exists
func NewMinio(config *MinioConfig) (*Minio, error) {
	if config == nil {
		return nil, errors.New("must provide config")
	}
	c := config
	if c.Access == "" || c.Secret == "" || c.Bucket == "" || c.Endpoint == "" {
		return nil, errors.New("must provide all fields in minio config")
	}

	mc, err := minio.New(c.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.Access, c.Secret, ""),
		Region: c.Region,
		Secure: !c.Insecure,
	})
	if err != nil {
		return nil, err
	}
	if c.RequestTrace != nil {
		mc.TraceOn(c.RequestTrace)
	}
	found, err := mc.BucketExists(ctx(), c.Bucket)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("bucket '%s' doesn't exist", c.Bucket)
	}
	return &Minio{
		Client: mc,
		Bucket: c.Bucket,
	}, nil
}

func isMinioNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}

// Open returns a reader for the object
func (m *Minio) Open(remotePath string) (io.ReadCloser, error) {
	obj, err := m.Client.GetObject(ctx(), m.Bucket, remotePath, minio.GetObjectOptions{})
	if err != nil {
		if isMinioNotFound(err) {
			return nil, &fs.PathError{Op: "open", Path: remotePath, Err: fs.ErrNotExist}
		}
		return nil, err
	}
	// GetObject is lazy, Stat makes the request so that a missing
	// object is reported here and not on first Read
	if _, err = obj.Stat(); err != nil {
		obj.Close()
		if isMinioNotFound(err) {
			return nil, &fs.PathError{Op: "open", Path: remotePath, Err: fs.ErrNotExist}
		}
		return nil, err
	}
	return obj, nil
}

// Stat returns size of the object
func (m *Minio) Stat(remotePath string) (int64, error) {
	info, err := m.Client.StatObject(ctx(), m.Bucket, remotePath, minio.StatObjectOptions{})
	if err != nil {
		if isMinioNotFound(err) {
			return 0, &fs.PathError{Op: "stat", Path: remotePath, Err: fs.ErrNotExist}
		}
		return 0, err
	}
	return info.Size, nil
}

// Create streams data to the object as it's written.
// The object is created when Close succeeds.
func (m *Minio) Create(remotePath string) (io.WriteCloser, error) {
	pr, pw := io.Pipe()
	w := &minioWriter{
		pw:   pw,
		done: make(chan error, 1),
	}
	opts := minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	}
	go func() {
		// size is unknown, minio uploads in parts
		_, err := m.Client.PutObject(ctx(), m.Bucket, remotePath, pr, -1, opts)
		// unblock writers if upload failed
		pr.CloseWithError(err)
		w.done <- err
	}()
	return w, nil
}

type minioWriter struct {
	pw     *io.PipeWriter
	done   chan error
	closed bool
	err    error
}

func (w *minioWriter) Write(d []byte) (int, error) {
	return w.pw.Write(d)
}

// Cancel aborts the upload
func (w *minioWriter) Cancel() {
	if w.closed {
		return
	}
	w.closed = true
	_ = w.pw.CloseWithError(ErrCancelled)
	<-w.done
	w.err = ErrCancelled
}

func (w *minioWriter) Close() error {
	if w.closed {
		return w.err
	}
	w.closed = true
	_ = w.pw.Close()
	w.err = <-w.done
	return w.err
}
