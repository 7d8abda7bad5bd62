// Package qr renders credential tokens as QR images and reads them back.
package qr

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	"github.com/boombuler/barcode"
	bqr "github.com/boombuler/barcode/qr"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"

	"credify/internal/credential/token"
)

const (
	DefaultSize   = 256
	DefaultMargin = 16
)

var (
	// ErrNoCode means no QR symbol was found in the frame.
	ErrNoCode = errors.New("no qr code found")
	// ErrInvalidPayload means a symbol decoded but is not a credential token.
	ErrInvalidPayload = errors.New("qr payload is not a credential token")
)

// Options controls rendering. Zero values use the defaults.
type Options struct {
	Size   int
	Margin int
}

// Encode writes payload verbatim into a PNG QR code at error-correction
// level M, surrounded by a white quiet zone.
func Encode(payload string, opts Options) ([]byte, error) {
	img, err := Render(payload, opts)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Render returns the QR image without PNG encoding.
func Render(payload string, opts Options) (image.Image, error) {
	if payload == "" {
		return nil, errors.New("qr payload is empty")
	}
	size := opts.Size
	if size <= 0 {
		size = DefaultSize
	}
	margin := opts.Margin
	if margin <= 0 {
		margin = DefaultMargin
	}

	code, err := bqr.Encode(payload, bqr.M, bqr.Auto)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}

	inner := size - 2*margin
	if w := code.Bounds().Dx(); inner < w {
		// Payload too dense for the requested size; grow rather than fail.
		inner = w * 2
	}
	scaled, err := barcode.Scale(code, inner, inner)
	if err != nil {
		return nil, fmt.Errorf("scale qr: %w", err)
	}

	full := inner + 2*margin
	canvas := image.NewGray(image.Rect(0, 0, full, full))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(canvas, image.Rect(margin, margin, margin+inner, margin+inner), scaled, scaled.Bounds().Min, draw.Src)
	return canvas, nil
}

// Decode extracts the raw text of the first QR symbol in img.
func Decode(img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoCode, err)
	}
	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	result, err := qrcode.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoCode, err)
	}
	return result.GetText(), nil
}

// DecodeToken decodes img and accepts the payload only if it has the
// three-segment base64url shape of a credential token.
func DecodeToken(img image.Image) (string, error) {
	text, err := Decode(img)
	if err != nil {
		return "", err
	}
	if err := ValidatePayload(text); err != nil {
		return "", err
	}
	return text, nil
}

// DecodePNG reads a PNG (or any registered image format) and decodes it.
func DecodePNG(r io.Reader) (string, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	return DecodeToken(img)
}

// ValidatePayload rejects anything but three dot-separated base64url segments.
func ValidatePayload(s string) error {
	if err := token.CheckStructure(s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}
