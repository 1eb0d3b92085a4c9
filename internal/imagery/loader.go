// Package imagery loads the planet surface texture from an ordered chain
// of sources, falling back to the next on any failure.
package imagery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/signalsfoundry/impact-globe/internal/logging"
	"github.com/signalsfoundry/impact-globe/internal/observability"
)

// ErrNoImagery indicates every source in the chain failed.
var ErrNoImagery = errors.New("no imagery source available")

// maxImageBytes bounds a single texture download.
const maxImageBytes = 32 << 20

// Image describes a successfully decoded texture.
type Image struct {
	Source string
	Format string
	Width  int
	Height int
	Data   []byte
}

// Loader walks a source chain.
type Loader struct {
	HTTP    *http.Client
	Objects ObjectStore // nil disables minio:// sources
	Timeout time.Duration
	Log     logging.Logger
}

// NewLoader returns a loader with an HTTP client and per-source timeout.
func NewLoader(objects ObjectStore, timeout time.Duration, log logging.Logger) *Loader {
	if log == nil {
		log = logging.Noop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Loader{
		HTTP:    &http.Client{},
		Objects: objects,
		Timeout: timeout,
		Log:     log,
	}
}

// Load returns the first source that fetches and decodes as JPEG or PNG.
// When all fail the returned error wraps ErrNoImagery along with every
// per-source failure.
func (l *Loader) Load(ctx context.Context, sources []string) (*Image, error) {
	ctx, span := observability.Tracer().Start(ctx, "imagery.Load")
	defer span.End()

	errs := []error{ErrNoImagery}
	for i, src := range sources {
		img, err := l.loadOne(ctx, src)
		if err == nil {
			span.SetAttributes(attribute.String("imagery.source", src), attribute.Int("imagery.attempts", i+1))
			l.Log.Info(ctx, "surface imagery loaded",
				logging.String("source", src),
				logging.String("format", img.Format),
				logging.Int("width", img.Width),
				logging.Int("height", img.Height),
			)
			return img, nil
		}
		l.Log.Warn(ctx, "imagery source failed", logging.String("source", src), logging.Err(err))
		errs = append(errs, fmt.Errorf("%s: %w", src, err))
		if ctx.Err() != nil {
			break
		}
	}
	err := errors.Join(errs...)
	span.RecordError(err)
	span.SetStatus(codes.Error, "all imagery sources failed")
	return nil, err
}

func (l *Loader) loadOne(ctx context.Context, src string) (*Image, error) {
	ctx, cancel := context.WithTimeout(ctx, l.Timeout)
	defer cancel()

	rc, err := l.open(ctx, src)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if _, _, err := image.Decode(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &Image{Source: src, Format: format, Width: cfg.Width, Height: cfg.Height, Data: data}, nil
}

func (l *Loader) open(ctx context.Context, src string) (io.ReadCloser, error) {
	u, err := url.Parse(src)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(u.Scheme) {
	case "", "file":
		p := u.Path
		if u.Scheme == "" {
			p = src
		} else if u.Host != "" {
			p = u.Host + u.Path
		}
		return os.Open(p)
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
		if err != nil {
			return nil, err
		}
		client := l.HTTP
		if client == nil {
			client = http.DefaultClient
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status %s", resp.Status)
		}
		return resp.Body, nil
	case "minio", "s3":
		if l.Objects == nil {
			return nil, errors.New("object store not configured")
		}
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return nil, fmt.Errorf("malformed object URL %q", src)
		}
		return l.Objects.GetObject(ctx, u.Host, key)
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
}
