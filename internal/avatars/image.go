package avatars

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/draw"

	_ "image/gif"  // avatar input decoders
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// avatarImageExtension matches the on-disk encoding: every avatar image
// is normalized to JPEG regardless of input format.
const avatarImageExtension = ".jpg"

// maxAvatarDimension bounds the longer edge of a stored avatar image.
const maxAvatarDimension = 1024

const avatarJPEGQuality = 85

// encodeAvatarImage converts arbitrary image input to the stable avatar
// byte format: decoded, downscaled to at most maxAvatarDimension on the
// longer edge, and re-encoded as JPEG.
func encodeAvatarImage(data []byte) ([]byte, error) {
	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return nil, fmt.Errorf("not an image: %s", mime.String())
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding %s input: %w", mime.String(), err)
	}

	src = downscale(src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: avatarJPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// downscale resizes src so its longer edge is at most
// maxAvatarDimension, preserving aspect ratio. Images already within
// bounds are returned unchanged.
func downscale(src image.Image) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxAvatarDimension && h <= maxAvatarDimension {
		return src
	}

	scale := float64(maxAvatarDimension) / float64(max(w, h))
	dw := int(float64(w) * scale)
	dh := int(float64(h) * scale)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}
