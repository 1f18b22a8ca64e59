package detection

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// DefaultProfileName is the profile used when none is named.
const DefaultProfileName = "x50"

// Profile is a named set of detector calibration constants.
//
// The Hough fields follow the usual HOUGH_GRADIENT conventions so a profile
// tuned with one backend carries over to the other.
type Profile struct {
	// Name identifies the profile in listings and on the command line.
	Name string `json:"name"`

	// Description says what kind of micrograph the profile is tuned for.
	Description string `json:"description,omitempty"`

	// BlurKernel is the side of the square Gaussian kernel. Must be odd.
	BlurKernel int `json:"blur_kernel"`

	// BlurSigma is the Gaussian standard deviation. 0 derives it from the
	// kernel size.
	BlurSigma float64 `json:"blur_sigma"`

	// Binarize thresholds the grayscale image at mean - ThresholdOffset
	// before blurring.
	Binarize        bool    `json:"binarize"`
	ThresholdOffset float64 `json:"threshold_offset"`

	// DP is the inverse accumulator resolution: 1 votes at image
	// resolution, 2 at half resolution.
	DP float64 `json:"dp"`

	// MinDist is the minimum distance in pixels between detected centers.
	MinDist float64 `json:"min_dist"`

	// Param1 is the upper Canny threshold; the lower one is half of it.
	Param1 float64 `json:"param1"`

	// Param2 is the accumulator threshold for centers and the minimum
	// number of edge pixels supporting a radius.
	Param2 float64 `json:"param2"`

	// MinRadius and MaxRadius bound the searched radii in pixels.
	MinRadius int `json:"min_radius"`
	MaxRadius int `json:"max_radius"`

	// RoundToPixel rounds centers and radii to whole pixels.
	RoundToPixel bool `json:"round_to_pixel"`

	// MeshSize is the characteristic mesh length suggested for geometry
	// built from this profile's detections, in output units.
	MeshSize float64 `json:"mesh_size"`

	// FlipY converts detections from image Y-down to geometry Y-up.
	FlipY bool `json:"flip_y"`
}

var builtinProfiles = map[string]Profile{
	"x50": {
		Name:         "x50",
		Description:  "50x optical micrographs, fine mesh in pixel units",
		BlurKernel:   9,
		BlurSigma:    2,
		DP:           1,
		MinDist:      100,
		Param1:       10,
		Param2:       6,
		MinRadius:    44,
		MaxRadius:    50,
		RoundToPixel: true,
		MeshSize:     0.1,
	},
	"x50-coarse": {
		Name:         "x50-coarse",
		Description:  "50x optical micrographs, coarse mesh with Y-up geometry",
		BlurKernel:   9,
		BlurSigma:    2,
		DP:           1,
		MinDist:      100,
		Param1:       10,
		Param2:       6,
		MinRadius:    44,
		MaxRadius:    50,
		RoundToPixel: true,
		MeshSize:     5,
		FlipY:        true,
	},
	"binary": {
		Name:            "binary",
		Description:     "low-contrast micrographs binarized below the mean",
		BlurKernel:      9,
		BlurSigma:       2,
		Binarize:        true,
		ThresholdOffset: 20,
		DP:              1,
		MinDist:         20,
		Param1:          100,
		Param2:          18,
		MinRadius:       25,
		MaxRadius:       50,
		RoundToPixel:    true,
		MeshSize:        5,
		FlipY:           true,
	},
}

// DefaultProfile returns the x50 profile.
func DefaultProfile() Profile {
	return builtinProfiles[DefaultProfileName]
}

// Profiles returns the built-in profiles sorted by name.
func Profiles() []Profile {
	list := make([]Profile, 0, len(builtinProfiles))
	for _, p := range builtinProfiles {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// Lookup returns the built-in profile with the given name.
func Lookup(name string) (Profile, error) {
	if p, ok := builtinProfiles[name]; ok {
		return p, nil
	}
	names := make([]string, 0, len(builtinProfiles))
	for _, p := range Profiles() {
		names = append(names, p.Name)
	}
	return Profile{}, fmt.Errorf("unknown profile %q (available: %s)", name, strings.Join(names, ", "))
}

// LoadProfile reads a profile from a JSON file. Fields missing from the file
// keep the values of the default profile.
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to read profile: %w", err)
	}

	p := DefaultProfile()
	if err := json.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("failed to parse profile %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, fmt.Errorf("profile %s: %w", path, err)
	}
	return p, nil
}

// SaveProfile writes p to path as indented JSON.
func SaveProfile(path string, p Profile) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	return nil
}

// Resolve returns the profile named by ref: a built-in name, or a path to a
// JSON profile file. An empty ref selects the default profile.
func Resolve(ref string) (Profile, error) {
	if ref == "" {
		return DefaultProfile(), nil
	}
	if p, ok := builtinProfiles[ref]; ok {
		return p, nil
	}
	if strings.HasSuffix(ref, ".json") {
		return LoadProfile(ref)
	}
	return Lookup(ref)
}

// Validate checks that the profile can drive the detector.
func (p Profile) Validate() error {
	switch {
	case p.BlurKernel <= 0 || p.BlurKernel%2 == 0:
		return fmt.Errorf("blur_kernel must be odd and positive, got %d", p.BlurKernel)
	case p.DP <= 0:
		return fmt.Errorf("dp must be positive, got %g", p.DP)
	case p.MinDist <= 0:
		return fmt.Errorf("min_dist must be positive, got %g", p.MinDist)
	case p.Param1 <= 0:
		return fmt.Errorf("param1 must be positive, got %g", p.Param1)
	case p.Param2 <= 0:
		return fmt.Errorf("param2 must be positive, got %g", p.Param2)
	case p.MinRadius < 0:
		return fmt.Errorf("min_radius must not be negative, got %d", p.MinRadius)
	case p.MaxRadius <= 0 || p.MaxRadius < p.MinRadius:
		return fmt.Errorf("max_radius must be positive and >= min_radius, got %d", p.MaxRadius)
	case p.MeshSize < 0:
		return fmt.Errorf("mesh_size must not be negative, got %g", p.MeshSize)
	}
	return nil
}

// WithRadii returns a copy of p searching radii in [min, max].
func (p Profile) WithRadii(min, max int) Profile {
	p.MinRadius = min
	p.MaxRadius = max
	return p
}

// WithThresholds returns a copy of p with new Canny and accumulator
// thresholds.
func (p Profile) WithThresholds(param1, param2 float64) Profile {
	p.Param1 = param1
	p.Param2 = param2
	return p
}

// WithMinDist returns a copy of p with a new minimum center distance.
func (p Profile) WithMinDist(d float64) Profile {
	p.MinDist = d
	return p
}

// WithBlur returns a copy of p with a new Gaussian kernel.
func (p Profile) WithBlur(kernel int, sigma float64) Profile {
	p.BlurKernel = kernel
	p.BlurSigma = sigma
	return p
}
