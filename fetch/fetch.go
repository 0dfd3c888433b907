// Package fetch - resolves model and label artifacts into local files
// before the pipeline starts.
package fetch

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ObjectGetter is the slice of the S3 API the fetcher needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Options configure a Client.
type Options struct {
	// CacheDir is where fetched artifacts land. Required.
	CacheDir string
	// HTTPClient overrides the default client and its timeout.
	HTTPClient *http.Client
	// Region selects the S3 region for s3:// artifacts.
	Region string
	// Endpoint targets an S3-compatible store; setting it switches the
	// client to path-style addressing.
	Endpoint string
	// S3 overrides the lazily built S3 client.
	S3 ObjectGetter
	// Logger receives fetch progress. Nil disables logging.
	Logger *zerolog.Logger
}

// Client resolves artifact URLs into cached local files. file:// and bare
// paths pass through, http(s):// and s3:// download on cache miss.
type Client struct {
	cacheDir string
	httpc    *http.Client
	region   string
	endpoint string
	s3c      ObjectGetter
	log      zerolog.Logger
}

// NewClient prepares the cache directory and the transport clients.
func NewClient(opts Options) (*Client, error) {
	if opts.CacheDir == "" {
		return nil, errors.New("cache dir required")
	}
	if err := os.MkdirAll(opts.CacheDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create cache dir")
	}
	httpc := opts.HTTPClient
	if httpc == nil {
		httpc = &http.Client{Timeout: 5 * time.Minute}
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	return &Client{
		cacheDir: opts.CacheDir,
		httpc:    httpc,
		region:   opts.Region,
		endpoint: opts.Endpoint,
		s3c:      opts.S3,
		log:      log,
	}, nil
}

// Fetch resolves rawURL to a local file, downloading into the cache when
// absent. A cached non-empty file short-circuits the download.
//
// Arguments:
// - ctx: bounds the download.
// - rawURL: file://, http(s)://, s3://bucket/key, or a bare local path.
//
// Returns:
// - string: path to the local artifact.
// - error: unsupported scheme, missing local file, or download failure.
func (c *Client) Fetch(ctx context.Context, rawURL string) (string, error) {
	if rawURL == "" {
		return "", errors.New("empty artifact URL")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", errors.Wrapf(err, "parse %s", rawURL)
	}

	switch u.Scheme {
	case "", "file":
		p := u.Path
		if u.Scheme == "" {
			p = rawURL
		}
		if _, err := os.Stat(p); err != nil {
			return "", errors.Wrapf(err, "local artifact %s", p)
		}
		return p, nil
	case "http", "https":
		return c.cached(ctx, rawURL, path.Base(u.Path), c.downloadHTTP)
	case "s3":
		return c.cached(ctx, rawURL, path.Base(u.Path), c.downloadS3)
	}
	return "", errors.Errorf("unsupported scheme %q in %s", u.Scheme, rawURL)
}

// cached returns the cache path for the artifact, invoking dl only on a
// miss. Entries are keyed on a digest of the full URL plus the basename, so
// distinct URLs sharing a basename never collide. The download lands in a
// temp file renamed into place, so an interrupted transfer never poisons
// the cache.
func (c *Client) cached(ctx context.Context, rawURL, name string, dl func(context.Context, string, io.Writer) error) (string, error) {
	if name == "" || name == "." || name == "/" {
		return "", errors.Errorf("cannot derive artifact name from %s", rawURL)
	}
	sum := sha256.Sum256([]byte(rawURL))
	entry := fmt.Sprintf("%x-%s", sum[:6], name)
	dest := filepath.Join(c.cacheDir, entry)
	if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
		c.log.Debug().Str("artifact", entry).Msg("cache hit")
		return dest, nil
	}

	c.log.Info().Str("url", rawURL).Str("dest", dest).Msg("fetching artifact")

	tmp, err := os.CreateTemp(c.cacheDir, ".fetch-*")
	if err != nil {
		return "", errors.Wrap(err, "create temp file")
	}
	defer os.Remove(tmp.Name())

	if err := dl(ctx, rawURL, tmp); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", errors.Wrap(err, "flush download")
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", errors.Wrap(err, "move into cache")
	}
	return dest, nil
}

func (c *Client) downloadHTTP(ctx context.Context, rawURL string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.Wrapf(err, "get %s", rawURL)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("get %s: %s", rawURL, resp.Status)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return errors.Wrap(err, "stream body")
	}
	c.log.Debug().Int64("bytes", n).Msg("download complete")
	return nil
}

func (c *Client) downloadS3(ctx context.Context, rawURL string, w io.Writer) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return errors.Wrapf(err, "parse %s", rawURL)
	}
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return errors.Errorf("s3 url %s needs bucket and key", rawURL)
	}

	getter, err := c.getter(ctx)
	if err != nil {
		return err
	}
	out, err := getter.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return errors.Wrapf(err, "s3 get %s/%s", bucket, key)
	}
	defer out.Body.Close()

	n, err := io.Copy(w, out.Body)
	if err != nil {
		return errors.Wrap(err, "stream object")
	}
	c.log.Debug().Int64("bytes", n).Msg("download complete")
	return nil
}

// getter builds the S3 client on first use so fetchers that never touch
// s3:// URLs need no AWS configuration.
func (c *Client) getter(ctx context.Context) (ObjectGetter, error) {
	if c.s3c != nil {
		return c.s3c, nil
	}
	var loadOpts []func(*awsconfig.LoadOptions) error
	if c.region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(c.region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}
	c.s3c = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if c.endpoint != "" {
			o.BaseEndpoint = aws.String(c.endpoint)
			o.UsePathStyle = true
		}
	})
	return c.s3c, nil
}
