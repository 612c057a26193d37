package tracking

import (
	"bytes"
	"encoding/gob"
	"image"
	"image/png"

	"github.com/YuminosukeSato/runtrack/pkg/errors"
)

// Content types attached to encoded blobs.
const (
	ContentTypePNG   = "image/png"
	ContentTypeGob   = "application/x-gob"
	ContentTypeBytes = "application/octet-stream"
)

// EncodeImage renders img as PNG.
func EncodeImage(img image.Image) (Blob, error) {
	if img == nil {
		return Blob{}, errors.NewValueError("EncodeImage", "image is nil")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Blob{}, errors.Wrap(err, "encode png")
	}
	return Blob{Data: buf.Bytes(), ContentType: ContentTypePNG}, nil
}

// EncodeObject serializes an in-memory artifact. Byte slices are uploaded
// verbatim; other values are gob-encoded and must be decodable into the
// same type.
func EncodeObject(obj any) (Blob, error) {
	if b, ok := obj.([]byte); ok {
		return Blob{Data: b, ContentType: ContentTypeBytes}, nil
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(obj); err != nil {
		return Blob{}, errors.Wrapf(err, "encode artifact of type %T", obj)
	}
	return Blob{Data: buf.Bytes(), ContentType: ContentTypeGob}, nil
}
