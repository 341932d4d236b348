// Package covers fetches and caches book cover images for the preview
// overlay. Fetches go through a rate-limited collector; decoded bytes are
// kept in a bounded LRU so repeated previews cost nothing.
package covers

import (
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gocolly/colly/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/go-library-kiosk/config"
	"github.com/aluiziolira/go-library-kiosk/models"
)

// ErrNoImage indicates the record carries no image URL.
var ErrNoImage = errors.New("covers: record has no image url")

// FetchError indicates the image could not be retrieved.
type FetchError struct {
	URL string
	Err error
}

func (e FetchError) Error() string {
	return fmt.Sprintf("covers: fetch %s: %v", e.URL, e.Err)
}

func (e FetchError) Unwrap() error {
	return e.Err
}

// Cache is the cover-image fetcher and store.
type Cache struct {
	collector *colly.Collector
	images    *lru.Cache[string, []byte]

	mu       sync.Mutex
	failures map[string]error
}

// New builds a cache sized and throttled from cfg.
func New(cfg *config.Config) (*Cache, error) {
	images, err := lru.New[string, []byte](cfg.CoverCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create image cache: %w", err)
	}

	collector := colly.NewCollector(
		colly.Async(true),
		colly.UserAgent(cfg.UserAgent),
		colly.IgnoreRobotsTxt(),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(cfg.Timeout)
	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.CoverParallelism,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	c := &Cache{
		collector: collector,
		images:    images,
		failures:  make(map[string]error),
	}

	collector.OnResponse(func(r *colly.Response) {
		body := make([]byte, len(r.Body))
		copy(body, r.Body)
		c.images.Add(r.Request.URL.String(), body)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r == nil || r.Request == nil || r.Request.URL == nil {
			return
		}
		c.mu.Lock()
		c.failures[r.Request.URL.String()] = err
		c.mu.Unlock()
	})

	return c, nil
}

// WithTransport swaps the collector's transport; used by tests.
func (c *Cache) WithTransport(rt http.RoundTripper) {
	c.collector.WithTransport(rt)
}

// Get returns the image bytes for a URL, fetching on a cache miss.
func (c *Cache) Get(imageURL string) ([]byte, error) {
	if body, ok := c.images.Get(imageURL); ok {
		return body, nil
	}

	c.mu.Lock()
	delete(c.failures, imageURL)
	c.mu.Unlock()

	if err := c.collector.Visit(imageURL); err != nil {
		return nil, FetchError{URL: imageURL, Err: err}
	}
	c.collector.Wait()

	if body, ok := c.images.Get(imageURL); ok {
		return body, nil
	}

	c.mu.Lock()
	err := c.failures[imageURL]
	c.mu.Unlock()
	if err == nil {
		err = errors.New("no response")
	}
	return nil, FetchError{URL: imageURL, Err: err}
}

// GetRecord returns the cover bytes for a book record.
func (c *Cache) GetRecord(rec models.BookRecord) ([]byte, error) {
	if rec.ImageURL == "" {
		return nil, ErrNoImage
	}
	return c.Get(rec.ImageURL)
}

// Prefetch queues cover fetches for every record that has an image URL and
// is not cached yet; it returns without waiting for them.
func (c *Cache) Prefetch(records []models.BookRecord) {
	for _, rec := range records {
		if rec.ImageURL == "" {
			continue
		}
		if _, ok := c.images.Get(rec.ImageURL); ok {
			continue
		}
		// Visit errors here are early rejections (bad URL, revisit);
		// real failures surface on Get.
		_ = c.collector.Visit(rec.ImageURL)
	}
}

// Len reports how many images are cached.
func (c *Cache) Len() int {
	return c.images.Len()
}
