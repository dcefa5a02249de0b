package export

// The screenshot collaborator renders a session in a headless browser and
// captures the canvas as a PNG. Artifacts land in a local directory served
// by the canvas server, or in an S3 bucket when one is configured.

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const defaultTimeout = 30 * time.Second

type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

type Config struct {
	// CanvasBaseURL is where the rendering client is served.
	CanvasBaseURL string
	// OutputDir receives PNG artifacts; served back at PublicBaseURL/exports.
	OutputDir     string
	PublicBaseURL string
	// WaitSelector is the DOM node that signals the scene has rendered.
	WaitSelector string
	Timeout      time.Duration
	// S3 is optional; when set artifacts are uploaded instead of linked from
	// the local export directory.
	S3 *S3Config
}

type RodExporter struct {
	cfg Config
}

func NewRodExporter(cfg Config) *RodExporter {
	if cfg.WaitSelector == "" {
		cfg.WaitSelector = "canvas"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.CanvasBaseURL = strings.TrimRight(cfg.CanvasBaseURL, "/")
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	return &RodExporter{cfg: cfg}
}

/*
Export opens the session in a headless browser, waits for the scene to
render and captures a screenshot. It returns the URL where the artifact can
be fetched. A failed attempt leaves no partial artifact behind, so a retry
is safe.
*/
func (e *RodExporter) Export(ctx context.Context, sessionID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	pageURL := fmt.Sprintf("%s/?sessionId=%s&export=true", e.cfg.CanvasBaseURL, sessionID)
	log.Info("capturing export screenshot", "session_id", sessionID, "url", pageURL)

	shot, err := e.capture(ctx, pageURL)
	if err != nil {
		return "", err
	}

	if e.cfg.S3 != nil {
		return e.upload(ctx, sessionID, shot)
	}

	if err := os.MkdirAll(e.cfg.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	name := sessionID + ".png"
	if err := os.WriteFile(filepath.Join(e.cfg.OutputDir, name), shot, 0o644); err != nil {
		return "", fmt.Errorf("failed to write export artifact: %w", err)
	}

	return e.cfg.PublicBaseURL + "/exports/" + name, nil
}

func (e *RodExporter) capture(ctx context.Context, pageURL string) ([]byte, error) {
	launch := launcher.New().Headless(true).Leakless(true).Context(ctx)
	wsURL, err := launch.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch headless browser: %w", err)
	}

	browser := rod.New().ControlURL(wsURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	defer browser.Close()

	var shot []byte
	err = rod.Try(func() {
		page := browser.MustPage(pageURL)
		page.MustWaitLoad()
		page.Timeout(e.cfg.Timeout).MustElement(e.cfg.WaitSelector)
		shot = page.MustScreenshot()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to capture page: %w", err)
	}
	return shot, nil
}

func (e *RodExporter) upload(ctx context.Context, sessionID string, shot []byte) (string, error) {
	s3 := e.cfg.S3

	client, err := minio.New(s3.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(s3.AccessKey, s3.SecretKey, ""),
		Secure: s3.UseSSL,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create s3 client: %w", err)
	}

	object := "exports/" + sessionID + ".png"
	_, err = client.PutObject(ctx, s3.Bucket, object, bytes.NewReader(shot), int64(len(shot)),
		minio.PutObjectOptions{ContentType: "image/png"})
	if err != nil {
		return "", fmt.Errorf("failed to upload export artifact: %w", err)
	}

	log.Info("export artifact uploaded", "bucket", s3.Bucket, "object", object)
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(s3.PublicURL, "/"), s3.Bucket, object), nil
}
