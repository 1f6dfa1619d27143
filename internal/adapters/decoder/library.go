// Package decoder holds the two interchangeable frame decoders: a native one
// backed by the host's zbar tools and a library one built on gozxing.
package decoder

import (
	"context"
	"errors"
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"

	"gymcheckin/internal/domain"
)

// LibraryName identifies the gozxing strategy.
const LibraryName = "library"

type libraryDecoder struct {
	readers []gozxing.Reader
	hints   map[gozxing.DecodeHintType]interface{}
}

// NewLibrary returns a Decoder that tries QR, Code 128 and EAN-13 in turn.
func NewLibrary() domain.Decoder {
	return &libraryDecoder{
		readers: []gozxing.Reader{
			qrcode.NewQRCodeReader(),
			oned.NewCode128Reader(),
			oned.NewEAN13Reader(),
		},
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
	}
}

// LibraryProbe always succeeds; gozxing is compiled in.
func LibraryProbe() (domain.Decoder, error) {
	return NewLibrary(), nil
}

func (d *libraryDecoder) Name() string { return LibraryName }

func (d *libraryDecoder) TryDecode(ctx context.Context, frame image.Image) (string, bool, error) {
	if frame == nil {
		return "", false, errors.New("nil frame")
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(frame)
	if err != nil {
		return "", false, err
	}
	for _, r := range d.readers {
		if err := ctx.Err(); err != nil {
			return "", false, err
		}
		res, err := r.Decode(bmp, d.hints)
		r.Reset()
		if err == nil && res != nil {
			return res.GetText(), true, nil
		}
	}
	return "", false, nil
}
