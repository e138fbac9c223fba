// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package normalize converts arbitrary receipt uploads (photos, scans,
// paginated documents) into a single analysis-ready JPEG within fixed
// size and dimension ceilings. It performs no network or storage I/O.
package normalize

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"log/slog"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"

	// Registers the WebP decoder with image.Decode; JPEG, PNG, GIF, BMP
	// and TIFF come in through imaging's own imports.
	_ "golang.org/x/image/webp"
)

// Defaults for the output ceilings. A receipt photo far exceeding these
// carries no extra information the extraction service can use.
const (
	DefaultMaxWidth    = 1920
	DefaultMaxHeight   = 1080
	DefaultByteCeiling = 5 * 1024 * 1024
	DefaultDocumentDPI = 150
)

// Encoding qualities tried in order until the output fits the ceiling.
var qualityLadder = []int{85, 70, 55, 40, 25}

// ContentTypePDF is the only paginated document format accepted.
const ContentTypePDF = "application/pdf"

// imageContentTypes lists the raster formats the normalizer decodes.
var imageContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
	"image/tiff": true,
}

// Result is a normalized image ready for extraction and archival.
type Result struct {
	Bytes       []byte
	ContentType string
	Width       int
	Height      int
}

// Normalizer converts uploads into bounded JPEGs.
type Normalizer struct {
	maxWidth    int
	maxHeight   int
	byteCeiling int
	documentDPI float64
	logger      *slog.Logger
}

// Option is a functional option for configuring the Normalizer.
type Option func(*Normalizer) error

// WithMaxDimensions sets the pixel ceiling the output must fit within.
func WithMaxDimensions(width, height int) Option {
	return func(n *Normalizer) error {
		if width < 1 || height < 1 {
			return fmt.Errorf("max dimensions must be positive, got %dx%d", width, height)
		}
		n.maxWidth = width
		n.maxHeight = height
		return nil
	}
}

// WithByteCeiling sets the maximum output size in bytes.
func WithByteCeiling(ceiling int) Option {
	return func(n *Normalizer) error {
		if ceiling < 1 {
			return fmt.Errorf("byte ceiling must be positive, got %d", ceiling)
		}
		n.byteCeiling = ceiling
		return nil
	}
}

// WithDocumentDPI sets the render resolution for paginated documents.
func WithDocumentDPI(dpi float64) Option {
	return func(n *Normalizer) error {
		if dpi <= 0 {
			return fmt.Errorf("document DPI must be positive, got %v", dpi)
		}
		n.documentDPI = dpi
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Normalizer) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		n.logger = logger
		return nil
	}
}

// NewNormalizer creates a Normalizer with the given options applied over
// the defaults.
func NewNormalizer(opts ...Option) (*Normalizer, error) {
	n := &Normalizer{
		maxWidth:    DefaultMaxWidth,
		maxHeight:   DefaultMaxHeight,
		byteCeiling: DefaultByteCeiling,
		documentDPI: DefaultDocumentDPI,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(n); err != nil {
			return nil, err
		}
	}
	n.logger = n.logger.With("component", "normalizer")
	return n, nil
}

// Normalize converts raw upload bytes into a JPEG within the configured
// ceilings. Paginated documents contribute only their first page. Returns
// ErrUnsupportedFormat for content types it does not handle and
// ErrCorruptInput when decoding fails at any stage.
func (n *Normalizer) Normalize(data []byte, contentType string) (*Result, error) {
	var (
		img image.Image
		err error
	)

	switch {
	case contentType == ContentTypePDF:
		img, err = n.renderFirstPage(data)
	case imageContentTypes[contentType]:
		img, err = imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
		if err != nil {
			err = fmt.Errorf("%w: %w", ErrCorruptInput, err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, contentType)
	}
	if err != nil {
		return nil, err
	}

	img = n.flatten(img)

	// Fit scales down only, preserving aspect ratio
	img = imaging.Fit(img, n.maxWidth, n.maxHeight, imaging.Lanczos)

	return n.encodeUnderCeiling(img)
}

// renderFirstPage rasterizes the first page of a paginated document.
func (n *Normalizer) renderFirstPage(data []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptInput, err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, fmt.Errorf("%w: document has no pages", ErrCorruptInput)
	}

	img, err := doc.ImageDPI(0, n.documentDPI)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptInput, err)
	}
	return img, nil
}

// flatten composites transparent images onto a white background, since
// JPEG has no alpha channel and receipts photographed as PNG stickers
// otherwise come out black.
func (n *Normalizer) flatten(img image.Image) image.Image {
	if op, ok := img.(interface{ Opaque() bool }); ok && op.Opaque() {
		return img
	}
	bounds := img.Bounds()
	canvas := imaging.New(bounds.Dx(), bounds.Dy(), color.White)
	return imaging.Overlay(canvas, img, image.Pt(0, 0), 1.0)
}

// encodeUnderCeiling encodes to JPEG, descending the quality ladder and
// then the resolution until the output fits the byte ceiling.
func (n *Normalizer) encodeUnderCeiling(img image.Image) (*Result, error) {
	var buf bytes.Buffer

	encode := func(quality int) error {
		buf.Reset()
		return imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality))
	}

	for _, quality := range qualityLadder {
		if err := encode(quality); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruptInput, err)
		}
		if buf.Len() <= n.byteCeiling {
			return n.result(img, &buf), nil
		}
		n.logger.Debug("output over ceiling, descending quality",
			"quality", quality, "bytes", buf.Len())
	}

	// Quality floor reached; halve the resolution until it fits
	floor := qualityLadder[len(qualityLadder)-1]
	for buf.Len() > n.byteCeiling {
		bounds := img.Bounds()
		if bounds.Dx() < 64 || bounds.Dy() < 64 {
			return nil, fmt.Errorf("%w: cannot fit output under %d bytes", ErrCorruptInput, n.byteCeiling)
		}
		img = imaging.Resize(img, bounds.Dx()/2, 0, imaging.Lanczos)
		if err := encode(floor); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruptInput, err)
		}
		n.logger.Debug("output over ceiling, halving resolution",
			"width", img.Bounds().Dx(), "bytes", buf.Len())
	}

	return n.result(img, &buf), nil
}

func (n *Normalizer) result(img image.Image, buf *bytes.Buffer) *Result {
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	bounds := img.Bounds()
	return &Result{
		Bytes:       out,
		ContentType: "image/jpeg",
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
	}
}
