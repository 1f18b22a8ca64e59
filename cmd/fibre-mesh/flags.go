package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ironsheep/fibre-mesh/internal/detection"
	"github.com/ironsheep/fibre-mesh/internal/imaging"
)

// newFlagSet returns a flag set that reports errors instead of exiting.
func newFlagSet(name, arguments string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: fibre-mesh %s [options] %s\n\nOptions:\n", name, arguments)
		fs.PrintDefaults()
	}
	return fs
}

// regionFlag parses "x1,y1,x2,y2".
type regionFlag struct {
	imaging.Region
}

func (r *regionFlag) String() string {
	if r.Empty() {
		return ""
	}
	return fmt.Sprintf("%d,%d,%d,%d", r.X1, r.Y1, r.X2, r.Y2)
}

func (r *regionFlag) Set(s string) error {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return fmt.Errorf("region must be x1,y1,x2,y2")
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return fmt.Errorf("region: %w", err)
		}
		v[i] = n
	}
	r.Region = imaging.Region{X1: v[0], Y1: v[1], X2: v[2], Y2: v[3]}
	if r.X1 >= r.X2 || r.Y1 >= r.Y2 {
		return fmt.Errorf("region must have x1 < x2 and y1 < y2")
	}
	return nil
}

// optionalBool is a boolean flag that remembers whether it was given.
type optionalBool struct {
	set   bool
	value bool
}

func (b *optionalBool) String() string {
	if !b.set {
		return ""
	}
	return strconv.FormatBool(b.value)
}

func (b *optionalBool) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	b.set, b.value = true, v
	return nil
}

func (b *optionalBool) IsBoolFlag() bool { return true }

// detectionFlags are the detector options shared by detect and run.
type detectionFlags struct {
	profile   string
	region    regionFlag
	minRadius int
	maxRadius int
	minDist   float64
	param1    float64
	param2    float64
	blur      int
}

func (d *detectionFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&d.profile, "profile", detection.DefaultProfileName, "detection profile name or JSON profile file")
	fs.Var(&d.region, "region", "region of interest x1,y1,x2,y2 (default whole image)")
	fs.IntVar(&d.minRadius, "min-radius", -1, "override the minimum fibre radius in pixels")
	fs.IntVar(&d.maxRadius, "max-radius", -1, "override the maximum fibre radius in pixels")
	fs.Float64Var(&d.minDist, "min-dist", 0, "override the minimum distance between centers")
	fs.Float64Var(&d.param1, "param1", 0, "override the upper Canny threshold")
	fs.Float64Var(&d.param2, "param2", 0, "override the accumulator threshold")
	fs.IntVar(&d.blur, "blur", 0, "override the Gaussian kernel size (odd)")
}

// resolve returns the selected profile with the command-line overrides.
func (d *detectionFlags) resolve() (detection.Profile, error) {
	p, err := detection.Resolve(d.profile)
	if err != nil {
		return p, err
	}
	minR, maxR := p.MinRadius, p.MaxRadius
	if d.minRadius >= 0 {
		minR = d.minRadius
	}
	if d.maxRadius >= 0 {
		maxR = d.maxRadius
	}
	p = p.WithRadii(minR, maxR)

	if d.minDist > 0 {
		p = p.WithMinDist(d.minDist)
	}

	param1, param2 := p.Param1, p.Param2
	if d.param1 > 0 {
		param1 = d.param1
	}
	if d.param2 > 0 {
		param2 = d.param2
	}
	p = p.WithThresholds(param1, param2)

	if d.blur > 0 {
		p = p.WithBlur(d.blur, p.BlurSigma)
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("profile %s: %w", p.Name, err)
	}
	return p, nil
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
