package qrchunk

import (
	"context"
	"encoding/base64"
	"fmt"
	"runtime"

	"github.com/skip2/go-qrcode"
	"golang.org/x/sync/errgroup"
)

// DefaultPNGSize is the edge length in pixels of rendered codes.
const DefaultPNGSize = 512

// RenderPNG renders one chunk string as a PNG QR code at level Medium.
func RenderPNG(content string, size int) ([]byte, error) {
	if len(content) > MaxChunkStringLen {
		return nil, fmt.Errorf("chunk of %d bytes exceeds QR budget of %d", len(content), MaxChunkStringLen)
	}
	if size <= 0 {
		size = DefaultPNGSize
	}

	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("failed to create QR code: %w", err)
	}

	png, err := qr.PNG(size)
	if err != nil {
		return nil, fmt.Errorf("failed to generate PNG: %w", err)
	}
	return png, nil
}

// RenderAll renders every chunk concurrently, preserving order.
func RenderAll(ctx context.Context, chunks []string, size int) ([][]byte, error) {
	out := make([][]byte, len(chunks))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, c := range chunks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			png, err := RenderPNG(c, size)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			out[i] = png
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// RenderAllBase64 is RenderAll with each PNG encoded to base64.
func RenderAllBase64(ctx context.Context, chunks []string, size int) ([]string, error) {
	pngs, err := RenderAll(ctx, chunks, size)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(pngs))
	for i, p := range pngs {
		out[i] = base64.StdEncoding.EncodeToString(p)
	}
	return out, nil
}
