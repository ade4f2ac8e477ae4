package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	blockfserrors "github.com/chunglabmit/blockfs/errors"
)

// MinPartSize is the smallest part size S3 accepts for a multipart
// upload, short of the final part.
const MinPartSize = 5 << 20

// uploadParallelism bounds the number of concurrent UploadPart calls
// per Writer.
const uploadParallelism = 8

// S3Provider implements Provider against an S3 bucket. Directory
// files and BlockFiles are stored as objects under a common key
// prefix, uploaded part-by-part as bytes accumulate.
type S3Provider struct {
	client   s3iface.S3API
	bucket   string
	partSize int
}

// NewS3Provider returns a Provider backed by the named bucket, using
// the default AWS session and credential chain.
func NewS3Provider(bucket string) (*S3Provider, error) {
	sess, err := session.NewSession()
	if err != nil {
		return nil, blockfserrors.E(blockfserrors.Unavailable, "s3 session", err)
	}
	return &S3Provider{client: s3.New(sess), bucket: bucket, partSize: MinPartSize}, nil
}

func (p *S3Provider) Create(ctx context.Context, name string) (Writer, error) {
	key := toKey(name)
	out, err := p.client.CreateMultipartUploadWithContext(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, blockfserrors.E(blockfserrors.Unavailable, "s3 create", name, err)
	}
	w := &s3Writer{
		client:   p.client,
		bucket:   p.bucket,
		key:      key,
		uploadID: aws.StringValue(out.UploadId),
		partSize: p.partSize,
		nextPart: 1,
		sem:      semaphore.NewWeighted(uploadParallelism),
	}
	return w, nil
}

// OpenWriter is not supported for S3-backed volumes: a multipart
// upload cannot be resumed across process restarts while preserving
// the byte offsets already advertised by a directory's index. A
// Directory recovering an S3-backed volume should instead rebase onto
// a freshly created BlockFile.
func (p *S3Provider) OpenWriter(_ context.Context, name string, _ uint64) (Writer, error) {
	return nil, blockfserrors.E(blockfserrors.NotSupported, "s3 storage does not support reopening "+name+" for append; rebase instead")
}

func (p *S3Provider) OpenReader(_ context.Context, name string) (Reader, error) {
	return &s3Reader{client: p.client, bucket: p.bucket, key: toKey(name)}, nil
}

func (p *S3Provider) Rename(ctx context.Context, oldName, newName string) error {
	oldKey, newKey := toKey(oldName), toKey(newName)
	_, err := p.client.CopyObjectWithContext(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(p.bucket),
		Key:        aws.String(newKey),
		CopySource: aws.String(p.bucket + "/" + oldKey),
	})
	if err != nil {
		return blockfserrors.E(blockfserrors.Unavailable, "s3 rename", err)
	}
	return p.Remove(ctx, oldName)
}

func (p *S3Provider) Remove(ctx context.Context, name string) error {
	_, err := p.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(toKey(name)),
	})
	if err != nil {
		return blockfserrors.E(blockfserrors.Unavailable, "s3 remove", err)
	}
	return nil
}

func toKey(name string) string {
	return strings.TrimPrefix(name, "/")
}

type s3Writer struct {
	client   s3iface.S3API
	bucket   string
	key      string
	uploadID string
	partSize int

	mu       sync.Mutex
	size     uint64
	curBuf   []byte
	nextPart int64
	parts    []*s3.CompletedPart

	sem *semaphore.Weighted
	g   errgroup.Group
	err blockfserrors.Once
}

func (w *s3Writer) Append(ctx context.Context, p []byte) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	offset := w.size
	w.size += uint64(len(p))
	w.curBuf = append(w.curBuf, p...)
	for len(w.curBuf) >= w.partSize {
		chunk := w.curBuf[:w.partSize]
		w.curBuf = append([]byte(nil), w.curBuf[w.partSize:]...)
		w.uploadPart(ctx, chunk)
	}
	return offset, w.err.Err()
}

func (w *s3Writer) uploadPart(ctx context.Context, buf []byte) {
	partNum := w.nextPart
	w.nextPart++
	if err := w.sem.Acquire(ctx, 1); err != nil {
		w.err.Set(blockfserrors.E(blockfserrors.Canceled, "s3 upload part", err))
		return
	}
	w.g.Go(func() error {
		defer w.sem.Release(1)
		out, err := w.client.UploadPartWithContext(ctx, &s3.UploadPartInput{
			Bucket:     aws.String(w.bucket),
			Key:        aws.String(w.key),
			UploadId:   aws.String(w.uploadID),
			PartNumber: aws.Int64(partNum),
			Body:       bytes.NewReader(buf),
		})
		if err != nil {
			werr := blockfserrors.E(blockfserrors.Unavailable, "s3 upload part", err)
			w.err.Set(werr)
			return werr
		}
		w.mu.Lock()
		w.parts = append(w.parts, &s3.CompletedPart{ETag: out.ETag, PartNumber: aws.Int64(partNum)})
		w.mu.Unlock()
		return nil
	})
}

func (w *s3Writer) Size() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

func (w *s3Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	if len(w.curBuf) > 0 {
		w.uploadPart(ctx, w.curBuf)
		w.curBuf = nil
	}
	w.mu.Unlock()
	if err := w.g.Wait(); err != nil {
		w.abort(ctx)
		return err
	}
	if len(w.parts) == 0 {
		w.abort(ctx)
		_, err := w.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
			Bucket: aws.String(w.bucket),
			Key:    aws.String(w.key),
			Body:   bytes.NewReader(nil),
		})
		if err != nil {
			return blockfserrors.E(blockfserrors.Unavailable, "s3 put empty object", err)
		}
		return nil
	}
	sort.Slice(w.parts, func(i, j int) bool {
		return aws.Int64Value(w.parts[i].PartNumber) < aws.Int64Value(w.parts[j].PartNumber)
	})
	_, err := w.client.CompleteMultipartUploadWithContext(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(w.bucket),
		Key:             aws.String(w.key),
		UploadId:        aws.String(w.uploadID),
		MultipartUpload: &s3.CompletedMultipartUpload{Parts: w.parts},
	})
	if err != nil {
		return blockfserrors.E(blockfserrors.Unavailable, "s3 complete multipart upload", err)
	}
	return nil
}

func (w *s3Writer) abort(ctx context.Context) {
	_, _ = w.client.AbortMultipartUploadWithContext(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(w.bucket),
		Key:      aws.String(w.key),
		UploadId: aws.String(w.uploadID),
	})
}

type s3Reader struct {
	client s3iface.S3API
	bucket string
	key    string
}

func (r *s3Reader) ReadAt(ctx context.Context, p []byte, off uint64) (int, error) {
	rng := fmt.Sprintf("bytes=%d-%d", off, off+uint64(len(p))-1)
	out, err := r.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key),
		Range:  aws.String(rng),
	})
	if err != nil {
		return 0, blockfserrors.E(blockfserrors.Unavailable, "s3 read", err)
	}
	defer out.Body.Close()
	n := 0
	for n < len(p) {
		m, rerr := out.Body.Read(p[n:])
		n += m
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return n, blockfserrors.E(blockfserrors.Unavailable, "s3 read", rerr)
		}
	}
	return n, nil
}

func (r *s3Reader) Size(ctx context.Context) (uint64, error) {
	out, err := r.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key),
	})
	if err != nil {
		return 0, blockfserrors.E(blockfserrors.Unavailable, "s3 head", err)
	}
	return uint64(aws.Int64Value(out.ContentLength)), nil
}

func (r *s3Reader) Close() error { return nil }
