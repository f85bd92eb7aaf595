package scanner

import (
	"fmt"
	"image"
	"sync"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"

	"github.com/erazemk/scanpoint/internal/imaging"
)

// Decoder finds a code in a frame. Frames without a readable code yield
// ErrNoCode.
type Decoder interface {
	Decode(img image.Image) (*Result, error)
}

// DecodeFrame prepares img (viewport crop, downscale) and decodes it.
func DecodeFrame(d Decoder, img image.Image, viewport float64) (*Result, error) {
	if img == nil {
		return nil, ErrNoCode
	}
	res, err := d.Decode(imaging.PrepareFrame(img, viewport))
	if err != nil {
		return nil, err
	}
	if NormalizeCode(res.Text) == "" {
		return nil, ErrNoCode
	}
	res.Text = NormalizeCode(res.Text)
	return res, nil
}

// ZXingDecoder decodes QR codes and the common 1D symbologies used on
// product and serial labels.
type ZXingDecoder struct {
	mu      sync.Mutex
	readers []gozxing.Reader
}

// NewZXingDecoder creates a decoder for QR, Code 128, Code 39, EAN-13,
// EAN-8, UPC-A and UPC-E.
func NewZXingDecoder() *ZXingDecoder {
	return &ZXingDecoder{
		readers: []gozxing.Reader{
			qrcode.NewQRCodeReader(),
			oned.NewCode128Reader(),
			oned.NewCode39Reader(),
			oned.NewEAN13Reader(),
			oned.NewEAN8Reader(),
			oned.NewUPCAReader(),
			oned.NewUPCEReader(),
		},
	}
}

// Decode implements Decoder. Reader failures of any kind count as ErrNoCode:
// a frame that fails checksum or format checks is as unreadable as an empty one.
func (d *ZXingDecoder) Decode(img image.Image) (*Result, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoCode, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range d.readers {
		res, err := r.DecodeWithoutHints(bmp)
		r.Reset()
		if err != nil {
			continue
		}
		return &Result{
			Text:   res.GetText(),
			Format: res.GetBarcodeFormat().String(),
		}, nil
	}
	return nil, ErrNoCode
}
