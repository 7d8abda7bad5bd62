package qr

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeToken() string {
	seg := func(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }
	return seg(`{"alg":"ES256","typ":"JWT"}`) + "." +
		seg(`{"name":"Ada","email":"ada@x.edu","iss":"C1","aud":"C1","iat":1772355600}`) + "." +
		seg(strings.Repeat("s", 64))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tok := fakeToken()

	pngBytes, err := Encode(tok, Options{})
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(pngBytes))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, img.Bounds().Dx(), DefaultSize)

	got, err := DecodePNG(bytes.NewReader(pngBytes))
	require.NoError(t, err)
	assert.Equal(t, tok, got)
}

func TestDecodeRejectsNonTokenPayload(t *testing.T) {
	for _, payload := range []string{
		"https://example.com/verify?id=42",
		"only.two",
		"a.b.c.d",
		"aGVsbG8.d29ybGQ.!!!",
	} {
		t.Run(payload, func(t *testing.T) {
			img, err := Render(payload, Options{})
			require.NoError(t, err)

			_, err = DecodeToken(img)
			require.ErrorIs(t, err, ErrInvalidPayload)

			raw, err := Decode(img)
			require.NoError(t, err)
			assert.Equal(t, payload, raw)
		})
	}
}

func TestDecodeBlankFrame(t *testing.T) {
	blank := image.NewGray(image.Rect(0, 0, 200, 200))
	for i := range blank.Pix {
		blank.Pix[i] = 0xff
	}
	_, err := DecodeToken(blank)
	require.ErrorIs(t, err, ErrNoCode)
}

func TestEncodeEmptyPayload(t *testing.T) {
	_, err := Encode("", Options{})
	require.Error(t, err)
}
