package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	appconfig "github.com/Baby-jesuset/FBGENERALHW-sj/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

var (
	ErrInvalidFileType = errors.New("only JPEG, PNG, GIF and WEBP images are allowed")
	ErrInvalidFolder   = errors.New("unknown upload folder")
)

const presignExpiry = 15 * time.Minute

var allowedContentTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Folders product and category images may be uploaded to.
var allowedFolders = map[string]bool{
	"products":   true,
	"categories": true,
}

type PresignedUpload struct {
	UploadURL string    `json:"upload_url"`
	FileURL   string    `json:"file_url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
}

type S3Storage struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	region  string
	baseURL string
}

// NewS3Storage uses static credentials when both keys are set and the
// default AWS credential chain otherwise.
func NewS3Storage(ctx context.Context, cfg appconfig.S3Config) (*S3Storage, error) {
	var awsCfg aws.Config
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg = aws.Config{
			Region:      cfg.Region,
			Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		}
	} else {
		loaded, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		awsCfg = loaded
	}

	client := s3.NewFromConfig(awsCfg)
	return &S3Storage{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		region:  cfg.Region,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
	}, nil
}

// PresignImageUpload returns a PUT URL for a new object under folder. The
// key is random; only the extension of filename is kept.
func (s *S3Storage) PresignImageUpload(ctx context.Context, folder, filename, contentType string) (*PresignedUpload, error) {
	if folder == "" {
		folder = "products"
	}
	if !allowedFolders[folder] {
		return nil, ErrInvalidFolder
	}
	defaultExt, ok := allowedContentTypes[strings.ToLower(contentType)]
	if !ok {
		return nil, ErrInvalidFileType
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = defaultExt
	}
	key := fmt.Sprintf("%s/%s%s", folder, uuid.NewString(), ext)

	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return nil, fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return &PresignedUpload{
		UploadURL: req.URL,
		FileURL:   s.FileURL(key),
		Key:       key,
		ExpiresAt: time.Now().Add(presignExpiry),
	}, nil
}

// FileURL is the public URL of key, through the CDN when one is configured.
func (s *S3Storage) FileURL(key string) string {
	if s.baseURL != "" {
		return fmt.Sprintf("%s/%s", s.baseURL, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}
