//go:build opencv

package detection

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

const backendName = "opencv"

// runBackend hands the preprocessed image to OpenCV's HOUGH_GRADIENT.
func runBackend(gray *image.Gray, p Profile) ([]candidate, error) {
	mat, err := gocv.ImageGrayToMatGray(gray)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image for OpenCV: %w", err)
	}
	defer mat.Close()

	found := gocv.NewMat()
	defer found.Close()

	gocv.HoughCirclesWithParams(mat, &found, gocv.HoughGradient,
		p.DP, p.MinDist,
		p.Param1, p.Param2,
		p.MinRadius, p.MaxRadius)

	if found.Empty() || found.Cols() == 0 {
		return nil, nil
	}

	list := make([]candidate, found.Cols())
	for i := 0; i < found.Cols(); i++ {
		list[i] = candidate{
			x: float64(found.GetFloatAt(0, i*3)),
			y: float64(found.GetFloatAt(0, i*3+1)),
			r: float64(found.GetFloatAt(0, i*3+2)),
		}
	}
	return list, nil
}
