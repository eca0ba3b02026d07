package assets

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"newsreel/internal/config"
	"newsreel/internal/types"
)

// Asset is the finalized publishable material for one article. Selection is
// complete before any platform call begins: publishers never substitute a
// fallback asset mid-pass.
type Asset struct {
	Title   string
	Caption string
	// Publicly reachable URLs for platforms that fetch remotely.
	ImageURL string
	VideoURL string
	// Local file path for platforms that upload bytes directly. Empty when
	// the article carries no video.
	LocalVideoPath string
}

func (a *Asset) HasVideo() bool {
	return a.VideoURL != "" || a.LocalVideoPath != ""
}

// Preparer turns an article into a finalized Asset.
type Preparer interface {
	Prepare(ctx context.Context, article types.Article) (*Asset, error)
	// Cleanup releases any temporary files the prepared asset holds.
	Cleanup(asset *Asset)
}

// HTTPPreparer builds captions and stages media: videos are downloaded to a
// working directory and re-hosted for platforms that need a public URL;
// images pass through, since upstream image URLs are already public.
type HTTPPreparer struct {
	captions   *CaptionBuilder
	host       *MediaHost
	workDir    string
	httpClient *http.Client
}

func NewHTTPPreparer(cfg config.AssetsConfig) (*HTTPPreparer, error) {
	templateText := ""
	if cfg.CaptionTemplate != "" {
		data, err := os.ReadFile(cfg.CaptionTemplate)
		if err != nil {
			return nil, fmt.Errorf("failed to read caption template: %w", err)
		}
		templateText = string(data)
	}

	captions, err := NewCaptionBuilder(templateText, cfg.MaxCaption, cfg.MaxAbstract)
	if err != nil {
		return nil, err
	}

	workDir := cfg.WorkDir
	if workDir == "" {
		workDir = os.TempDir()
	}

	return &HTTPPreparer{
		captions:   captions,
		host:       NewMediaHost(cfg.MediaHostURL),
		workDir:    workDir,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}, nil
}

func (p *HTTPPreparer) Prepare(ctx context.Context, article types.Article) (*Asset, error) {
	caption, err := p.captions.Build(article)
	if err != nil {
		return nil, types.NewAssetError("caption", err)
	}

	asset := &Asset{
		Title:    article.Title,
		Caption:  caption,
		ImageURL: article.ImageURL,
	}

	if article.VideoURL == "" && article.ImageURL == "" {
		return nil, types.NewAssetError("select", fmt.Errorf("article has no usable media"))
	}

	if article.VideoURL != "" {
		localPath, err := p.download(ctx, article.VideoURL)
		if err != nil {
			return nil, types.NewAssetError("download", err)
		}
		asset.LocalVideoPath = localPath

		hostedURL, err := p.host.Upload(ctx, localPath)
		if err != nil {
			os.Remove(localPath)
			return nil, types.NewAssetError("host", err)
		}
		asset.VideoURL = hostedURL
	}

	return asset, nil
}

func (p *HTTPPreparer) Cleanup(asset *Asset) {
	if asset != nil && asset.LocalVideoPath != "" {
		os.Remove(asset.LocalVideoPath)
	}
}

func (p *HTTPPreparer) download(ctx context.Context, mediaURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("media download returned status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(p.workDir, "newsreel-*.mp4")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write media file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close media file: %w", err)
	}

	return tmp.Name(), nil
}
