// Package images downloads images, re-encodes them to PNG, and packs
// them into zip archives for the bulk download endpoint.
package images

import (
	"bytes"
	"errors"
	"image"
	"image/gif"
	"image/jpeg"

	"github.com/disintegration/imaging"
	"golang.org/x/image/webp"
)

// detectFormat reads the magic bytes and returns the image format.
func detectFormat(data []byte) (string, error) {
	if len(data) < 12 {
		return "", errors.New("data too short to determine format")
	}

	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "jpeg", nil
	}
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "png", nil
	}
	if string(data[0:6]) == "GIF87a" || string(data[0:6]) == "GIF89a" {
		return "gif", nil
	}
	if string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP" {
		return "webp", nil
	}

	return "", errors.New("unknown image format")
}

// ReencodePNG converts raw image bytes to PNG. Bytes that already hold
// a PNG are returned as-is.
func ReencodePNG(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("empty image data")
	}

	format, err := detectFormat(data)
	if err != nil {
		return nil, err
	}
	if format == "png" {
		return data, nil
	}

	var img image.Image
	reader := bytes.NewReader(data)
	switch format {
	case "jpeg":
		img, err = jpeg.Decode(reader)
	case "gif":
		img, err = gif.Decode(reader)
	case "webp":
		img, err = webp.Decode(reader)
	default:
		return nil, errors.New("unsupported image format: " + format)
	}
	if err != nil {
		return nil, errors.New("failed to decode " + format + " image: " + err.Error())
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
