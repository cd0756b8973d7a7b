package pairing

import (
	"image"

	"github.com/makiuchi-d/gozxing"
	zxqrcode "github.com/makiuchi-d/gozxing/qrcode"
)

var scanHints = map[gozxing.DecodeHintType]interface{}{
	gozxing.DecodeHintType_TRY_HARDER: true,
}

// ScanFrame looks for a QR code in a camera frame and returns its text.
// A frame without a readable code is not an error.
func ScanFrame(img image.Image) (string, bool) {
	if img == nil {
		return "", false
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", false
	}

	result, err := zxqrcode.NewQRCodeReader().Decode(bmp, scanHints)
	if err != nil || result == nil {
		return "", false
	}
	return result.GetText(), true
}
