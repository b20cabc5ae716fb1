package gpgforge

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// MirrorClient wraps an S3-compatible bucket (S3, Cloudflare R2, minio)
// holding pinned source tarballs. The pipeline tries the mirror before the
// upstream URL so a vanished upstream release cannot break reproducibility.
type MirrorClient struct {
	Client     *s3.Client
	BucketName string
}

func mirrorConfigured(cfg *Config) bool {
	return cfg.Values["GPGFORGE_S3_BUCKET"] != ""
}

// NewMirrorClient initializes the S3 client from configuration values.
func NewMirrorClient(cfg *Config) (*MirrorClient, error) {
	endpoint := cfg.Values["GPGFORGE_S3_ENDPOINT"]
	accessKey := cfg.Values["GPGFORGE_S3_ACCESS_KEY_ID"]
	secretKey := cfg.Values["GPGFORGE_S3_SECRET_ACCESS_KEY"]
	bucketName := cfg.Values["GPGFORGE_S3_BUCKET"]
	region := cfg.Values["GPGFORGE_S3_REGION"]
	if region == "" {
		region = "auto"
	}

	if accessKey == "" || secretKey == "" || bucketName == "" {
		return nil, fmt.Errorf("mirror credentials missing in configuration (GPGFORGE_S3_ACCESS_KEY_ID, GPGFORGE_S3_SECRET_ACCESS_KEY, GPGFORGE_S3_BUCKET)")
	}

	options := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
		awsconfig.WithRegion(region),
	}
	if Debug {
		options = append(options, awsconfig.WithClientLogMode(aws.LogRetries|aws.LogRequest|aws.LogResponse))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(), options...)
	if err != nil {
		return nil, fmt.Errorf("failed to load mirror config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = true
	})

	return &MirrorClient{Client: client, BucketName: bucketName}, nil
}

// DownloadFile fetches an object into a local file.
func (m *MirrorClient) DownloadFile(ctx context.Context, key, destPath string) error {
	output, err := m.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return err
	}
	defer output.Body.Close()

	out, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, output.Body); err != nil {
		os.Remove(destPath)
		return err
	}
	return nil
}

// UploadLocalFile uploads a file from disk to the mirror bucket.
func (m *MirrorClient) UploadLocalFile(ctx context.Context, key, filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return err
	}

	_, err = m.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.BucketName),
		Key:           aws.String(key),
		Body:          file,
		ContentLength: aws.Int64(stat.Size()),
		ContentType:   aws.String("application/octet-stream"),
	})
	return err
}

// MirrorObject represents metadata for an object in the bucket.
type MirrorObject struct {
	Key  string
	Size int64
}

// ListObjects returns the objects in the bucket with the given prefix.
func (m *MirrorClient) ListObjects(ctx context.Context, prefix string) ([]MirrorObject, error) {
	var objects []MirrorObject
	paginator := s3.NewListObjectsV2Paginator(m.Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(m.BucketName),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			objects = append(objects, MirrorObject{Key: *obj.Key, Size: *obj.Size})
		}
	}
	return objects, nil
}

// mirrorFetch tries to pull one tarball from the configured mirror into
// the cache. Callers fall back to the upstream URL on any error.
func mirrorFetch(ctx context.Context, cfg *Config, key, destPath string) error {
	client, err := NewMirrorClient(cfg)
	if err != nil {
		return err
	}
	mirrorMessageOnce.Do(func() {
		colArrow.Print("-> ")
		colSuccess.Printf("Using source mirror: s3://%s\n", client.BucketName)
	})
	return client.DownloadFile(ctx, "sources/"+key, destPath)
}

// handleMirrorSetup persists mirror settings into the config file so
// later runs pick the bucket up without environment plumbing.
func handleMirrorSetup(pairs []string, cfg *Config) error {
	if len(pairs) == 0 {
		fmt.Println("Usage: gpgforge mirror setup GPGFORGE_S3_KEY=value...")
		fmt.Println("Recognized keys: GPGFORGE_S3_ENDPOINT, GPGFORGE_S3_ACCESS_KEY_ID,")
		fmt.Println("  GPGFORGE_S3_SECRET_ACCESS_KEY, GPGFORGE_S3_BUCKET, GPGFORGE_S3_REGION")
		return nil
	}
	for _, pair := range pairs {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 || !strings.HasPrefix(parts[0], "GPGFORGE_S3_") {
			return fmt.Errorf("invalid mirror setting %q, expected GPGFORGE_S3_KEY=value", pair)
		}
		if err := setConfigValue(cfg, parts[0], parts[1]); err != nil {
			return err
		}
	}
	colArrow.Print("-> ")
	colSuccess.Printf("Mirror configuration saved to %s\n", ConfigFile)
	return nil
}

// handleMirrorCommand implements `gpgforge mirror setup|upload|fetch`.
func handleMirrorCommand(args []string, cfg *Config) error {
	if len(args) < 1 {
		fmt.Println("Usage: gpgforge mirror <setup|upload|fetch>")
		return nil
	}
	if args[0] == "setup" {
		return handleMirrorSetup(args[1:], cfg)
	}

	client, err := NewMirrorClient(cfg)
	if err != nil {
		return err
	}
	ctx := context.Background()

	deps, err := selectDeps(args[1:])
	if err != nil {
		return err
	}

	switch args[0] {
	case "upload":
		for i := range deps {
			name := deps[i].tarballName(cfg)
			local := filepath.Join(CacheStore, name)
			if _, err := os.Stat(local); err != nil {
				return fmt.Errorf("tarball %s not in cache, run `gpgforge fetch` first", name)
			}
			colArrow.Print("-> ")
			colSuccess.Printf("Uploading %s\n", name)
			if err := client.UploadLocalFile(ctx, "sources/"+name, local); err != nil {
				return fmt.Errorf("failed to upload %s: %w", name, err)
			}
		}
	case "fetch":
		if err := ensureCacheDir(); err != nil {
			return err
		}
		for i := range deps {
			name := deps[i].tarballName(cfg)
			colArrow.Print("-> ")
			colSuccess.Printf("Fetching %s from mirror\n", name)
			if err := client.DownloadFile(ctx, "sources/"+name, filepath.Join(CacheStore, name)); err != nil {
				return fmt.Errorf("failed to fetch %s: %w", name, err)
			}
		}
	default:
		return fmt.Errorf("unknown mirror subcommand: %s", args[0])
	}
	return nil
}
