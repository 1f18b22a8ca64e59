package imaging

import (
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/fibre-mesh/internal/circles"
)

// ImageCache provides thread-safe caching of loaded micrographs to avoid
// redundant disk reads.
//
// The cache stores decoded image.Image objects keyed by their file path. The
// tool server keeps one cache for its lifetime, so a client that asks for
// image info, then detection, then an overlay reads the file once.
//
// # Memory Management
//
// Cached images remain in memory until explicitly removed via Evict() or Clear().
// Micrographs are often large; long-running processes should evict images
// once a pipeline run is finished.
//
// # Example Usage
//
//	cache := imaging.NewImageCache()
//	img, err := cache.Load("/path/to/micrograph.png")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	// Use img...
//	cache.Evict("/path/to/micrograph.png") // Optional: free memory
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]image.Image
}

// NewImageCache creates and initializes a new empty image cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]image.Image),
	}
}

// Load retrieves an image from the cache or loads it from disk if not cached.
//
// Images are opened with EXIF auto-orientation so that rotated camera JPEGs
// are seen the way a viewer shows them; pixel coordinates reported by
// detection then match what the user sees.
//
// # Errors
//
//   - Returns error if the file does not exist or cannot be read
//   - Returns error if the file is not a valid PNG, JPEG, or GIF image
func (c *ImageCache) Load(path string) (image.Image, error) {
	c.mu.RLock()
	if img, ok := c.images[path]; ok {
		c.mu.RUnlock()
		return img, nil
	}
	c.mu.RUnlock()

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}

	c.mu.Lock()
	c.images[path] = img
	c.mu.Unlock()

	return img, nil
}

// Clear removes all images from the cache, freeing the associated memory.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]image.Image)
	c.mu.Unlock()
}

// Evict removes a specific image from the cache by its path.
// If the path is not in the cache, this method does nothing.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.images, path)
	c.mu.Unlock()
}

// ImageInfo contains the metadata of a micrograph that the rest of the
// pipeline depends on.
type ImageInfo struct {
	// Path is the file the information was read from.
	Path string `json:"path"`

	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels. It is the y-flip height used to
	// turn detected circles into Y-up geometry coordinates.
	Height int `json:"height"`

	// Format is the decoder that read the file: "png", "jpeg" or "gif".
	Format string `json:"format"`

	// NormalizeScale maps the larger image dimension to 1.
	NormalizeScale float64 `json:"normalize_scale"`

	// FileSizeBytes is the size of the image file on disk in bytes.
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// LoadImageInfo loads an image into the cache and returns its metadata.
//
// The format is sniffed from the file header rather than the extension,
// since microscope exports frequently carry misleading extensions.
func LoadImageInfo(cache *ImageCache, path string) (*ImageInfo, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	_, format, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read image header: %w", err)
	}

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	bounds := img.Bounds()
	return &ImageInfo{
		Path:           path,
		Width:          bounds.Dx(),
		Height:         bounds.Dy(),
		Format:         format,
		NormalizeScale: circles.NormalizeScale(bounds.Dx(), bounds.Dy()),
		FileSizeBytes:  stat.Size(),
	}, nil
}
