// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package storage uploads post images to S3-compatible object storage so
// they can be attached to page posts by public URL. Path-style addressing
// is used for CEPH/Hetzner/MinIO compatibility.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

// MaxImageSize caps a single uploaded image.
const MaxImageSize = 8 << 20

// ErrUnsupportedType is returned for content types that pages cannot show.
var ErrUnsupportedType = errors.New("unsupported image type")

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Config describes the bucket images go to.
type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	PublicURL string // optional CDN/direct URL in front of the bucket
}

// Object is a stored image.
type Object struct {
	Key  string `json:"key"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// Client wraps an S3 client bound to one public bucket.
type Client struct {
	s3        *s3.Client
	bucket    string
	endpoint  string
	publicURL string
}

// New returns (nil, nil) when endpoint or credentials are empty, so the
// service can start without media uploads.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, nil
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage: bucket is required")
	}

	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	client := s3.New(s3.Options{
		Region:       cfg.Region,
		BaseEndpoint: aws.String(endpoint),
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	})

	return &Client{
		s3:        client,
		bucket:    cfg.Bucket,
		endpoint:  endpoint,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
	}, nil
}

// ObjectKey builds the key for a new image owned by userID.
func ObjectKey(userID uuid.UUID, contentType string) (string, error) {
	ext, ok := extensions[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}
	return path.Join("media", userID.String(), uuid.NewString()+ext), nil
}

// UploadImage stores an image with public-read ACL and returns its URL.
func (c *Client) UploadImage(ctx context.Context, userID uuid.UUID, contentType string, body io.Reader, size int64) (*Object, error) {
	if size > MaxImageSize {
		return nil, fmt.Errorf("storage: image is %d bytes, limit is %d", size, MaxImageSize)
	}
	key, err := ObjectKey(userID, contentType)
	if err != nil {
		return nil, err
	}

	_, err = c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
		ACL:           s3types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 upload %s/%s: %w", c.bucket, key, err)
	}
	return &Object{Key: key, URL: c.FileURL(key), Size: size}, nil
}

// Delete removes an object. Keys outside the user's prefix are refused.
func (c *Client) Delete(ctx context.Context, userID uuid.UUID, key string) error {
	if !strings.HasPrefix(key, path.Join("media", userID.String())+"/") {
		return fmt.Errorf("storage: key %q does not belong to user", key)
	}
	_, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 delete %s/%s: %w", c.bucket, key, err)
	}
	return nil
}

// FileURL returns the public URL of key, through PublicURL when set.
func (c *Client) FileURL(key string) string {
	if c.publicURL != "" {
		return c.publicURL + "/" + key
	}
	return c.endpoint + "/" + c.bucket + "/" + key
}
