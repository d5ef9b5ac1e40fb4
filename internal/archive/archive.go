// Package archive keeps the raw capture text in object storage so the
// knowledge base can be re-derived with improved parsers later. The
// relational store only keeps parsed messages; this is the escape hatch
// back to the original scraped text.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/bowerhall/recall/internal/capture"
	"github.com/bowerhall/recall/internal/logger"
)

const captureBucket = "recall-captures"

type Config struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

type Client struct {
	mc     *minio.Client
	bucket string
}

func NewClient(cfg Config) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	return &Client{mc: mc, bucket: captureBucket}, nil
}

// Init creates the capture bucket if it doesn't exist.
func (c *Client) Init(ctx context.Context) error {
	exists, err := c.mc.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", c.bucket, err)
	}

	if !exists {
		if err := c.mc.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", c.bucket, err)
		}
		logger.Info("bucket created", "bucket", c.bucket)
	}

	return nil
}

// StoreCapture uploads the raw window text, keyed by session and capture id
// so repeated snapshots of the same chat sit together.
func (c *Client) StoreCapture(ctx context.Context, cap capture.Capture) error {
	sessionID := capture.DeriveSessionID(cap.AppName, cap.Title)
	name := fmt.Sprintf("%s/%s/%s.txt", sessionID, time.Now().UTC().Format("2006-01-02"), cap.ID)

	data := []byte(cap.RawText)
	_, err := c.mc.PutObject(ctx, c.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "text/plain; charset=utf-8",
		UserMetadata: map[string]string{
			"app":   cap.AppName,
			"title": cap.Title,
		},
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", name, err)
	}

	logger.Debug("capture archived", "object", name, "size", len(data))
	return nil
}

// GetCapture fetches one archived capture by object name.
func (c *Client) GetCapture(ctx context.Context, name string) ([]byte, error) {
	obj, err := c.mc.GetObject(ctx, c.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", name, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	return data, nil
}

// ListCaptures returns the object names archived for one session.
func (c *Client) ListCaptures(ctx context.Context, sessionID string) ([]string, error) {
	var names []string

	for obj := range c.mc.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{
		Prefix:    sessionID + "/",
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		names = append(names, obj.Key)
	}

	return names, nil
}
