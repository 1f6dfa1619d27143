package decoder

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gymcheckin/internal/domain"
)

func TestLibraryDecoder_DecodesQRCode(t *testing.T) {
	enc := qrcode.NewQRCodeWriter()
	img, err := enc.Encode("M-1001", gozxing.BarcodeFormat_QR_CODE, 256, 256, nil)
	require.NoError(t, err)

	d := NewLibrary()
	text, ok, err := d.TryDecode(context.Background(), img)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "M-1001", text)
	assert.Equal(t, LibraryName, d.Name())
}

func TestLibraryDecoder_BlankFrameIsTransient(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}

	text, ok, err := NewLibrary().TryDecode(context.Background(), img)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, text)
}

func TestNativeProbe_MissingBinary(t *testing.T) {
	probe := NativeProbe("zbarimg-definitely-not-installed")
	d, err := probe()
	require.Error(t, err)
	assert.Nil(t, d)
	assert.True(t, errors.Is(err, domain.ErrDecoderUnavailable))
}

func TestProbes_Order(t *testing.T) {
	probes := Probes([]string{"library", "bogus", "native"}, "zbarimg-definitely-not-installed")
	require.Len(t, probes, 2)

	d, err := probes[0]()
	require.NoError(t, err)
	assert.Equal(t, LibraryName, d.Name())

	_, err = probes[1]()
	assert.ErrorIs(t, err, domain.ErrDecoderUnavailable)
}

func TestFirstLine(t *testing.T) {
	text, ok, err := firstLine([]byte("\n  M-1002 \nM-1003\n"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "M-1002", text)

	_, ok, err = firstLine(nil)
	require.NoError(t, err)
	assert.False(t, ok)
}
