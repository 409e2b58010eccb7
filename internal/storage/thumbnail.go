package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"log/slog"

	"github.com/nfnt/resize"

	"github.com/paperhold/docvault/constants"
	"github.com/paperhold/docvault/internal/docproc"
)

// Thumbnailer renders small PNG previews. Images are downscaled locally;
// PDFs need a page render, which the document processor service provides.
type Thumbnailer struct {
	DocProc *docproc.Client
	Size    int
	Log     *slog.Logger
}

func NewThumbnailer(dp *docproc.Client, log *slog.Logger) *Thumbnailer {
	return &Thumbnailer{DocProc: dp, Size: constants.ThumbnailSize, Log: log}
}

func (t *Thumbnailer) Generate(ctx context.Context, data []byte, filename, contentType string) ([]byte, error) {
	switch {
	case constants.IsImage(filename, contentType):
		return t.fromImage(data)
	case constants.IsPDF(filename, contentType):
		return t.fromPDF(ctx, data)
	default:
		return nil, fmt.Errorf("no thumbnail renderer for %s", filename)
	}
}

func (t *Thumbnailer) fromImage(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	thumb := resize.Thumbnail(uint(t.Size), uint(t.Size), img, resize.Lanczos3)
	var buf bytes.Buffer
	if err := png.Encode(&buf, thumb); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

func (t *Thumbnailer) fromPDF(ctx context.Context, data []byte) ([]byte, error) {
	res, err := t.DocProc.Thumbnail(ctx, base64.StdEncoding.EncodeToString(data), t.Size)
	if err != nil {
		return nil, err
	}
	raw, err := base64.StdEncoding.DecodeString(res.Image)
	if err != nil {
		return nil, fmt.Errorf("decode thumbnail payload: %w", err)
	}
	return raw, nil
}
