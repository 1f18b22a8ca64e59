//go:build !ocr

package ocr

import "image"

func recognizeText(image.Image, string) (string, error) {
	return "", ErrOCRNotEnabled
}

// Info reports that text recognition is not compiled in.
func Info() OCRInfo {
	return OCRInfo{
		Available: false,
		Error:     ErrOCRNotEnabled.Error(),
		Backend:   "none",
	}
}
