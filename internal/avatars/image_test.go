package avatars

import (
	"bytes"
	"image"
	"image/jpeg"
	"testing"
)

func decodeJPEG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("jpeg.Decode() error = %v", err)
	}
	return img
}

func TestEncodeAvatarImage(t *testing.T) {
	t.Run("png input becomes jpeg", func(t *testing.T) {
		out, err := encodeAvatarImage(pngBytes(t, 16, 16))
		if err != nil {
			t.Fatalf("encodeAvatarImage() error = %v", err)
		}
		img := decodeJPEG(t, out)
		if img.Bounds().Dx() != 16 || img.Bounds().Dy() != 16 {
			t.Errorf("output dimensions = %dx%d, want 16x16", img.Bounds().Dx(), img.Bounds().Dy())
		}
	})

	t.Run("oversized input is downscaled", func(t *testing.T) {
		out, err := encodeAvatarImage(pngBytes(t, 2048, 512))
		if err != nil {
			t.Fatalf("encodeAvatarImage() error = %v", err)
		}
		img := decodeJPEG(t, out)
		if img.Bounds().Dx() != maxAvatarDimension {
			t.Errorf("width = %d, want %d", img.Bounds().Dx(), maxAvatarDimension)
		}
		if img.Bounds().Dy() != 256 {
			t.Errorf("height = %d, want 256 (aspect ratio preserved)", img.Bounds().Dy())
		}
	})

	t.Run("rejects non-image data", func(t *testing.T) {
		if _, err := encodeAvatarImage([]byte("hello world")); err == nil {
			t.Error("encodeAvatarImage() succeeded on text input")
		}
	})

	t.Run("rejects truncated image data", func(t *testing.T) {
		data := pngBytes(t, 64, 64)
		if _, err := encodeAvatarImage(data[:20]); err == nil {
			t.Error("encodeAvatarImage() succeeded on truncated input")
		}
	})
}

func TestRecordRoundTrip(t *testing.T) {
	records := []avatarRecord{
		{Kind: recordKindIcon, Identifier: "fox", Theme: "forest"},
		{Kind: recordKindImage, Identifier: "abc", ImageFile: "abc.jpg", Theme: "plum"},
		{Kind: recordKindText, Identifier: "t1", Text: "HI", Theme: "teal"},
	}

	raw, err := encodeRecords(records)
	if err != nil {
		t.Fatalf("encodeRecords() error = %v", err)
	}
	decoded, dropped, err := decodeRecords(raw)
	if err != nil {
		t.Fatalf("decodeRecords() error = %v", err)
	}
	if dropped != 0 {
		t.Errorf("dropped = %d, want 0", dropped)
	}
	if len(decoded) != len(records) {
		t.Fatalf("decoded %d records, want %d", len(decoded), len(records))
	}
	for i := range records {
		if decoded[i] != records[i] {
			t.Errorf("record %d = %+v, want %+v", i, decoded[i], records[i])
		}
	}
}
