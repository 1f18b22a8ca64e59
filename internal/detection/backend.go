//go:build !opencv

package detection

import "image"

const backendName = "go"

func runBackend(gray *image.Gray, p Profile) ([]candidate, error) {
	return houghGradient(gray, p), nil
}
