package spider

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/toyofumi/opendata/limiter"
	"github.com/toyofumi/opendata/proxy"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Fetcher retrieves the raw markup behind a URL. Implementations do not
// retry; a failed fetch is the caller's signal to skip that branch.
type Fetcher interface {
	Get(url string) ([]byte, error)
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// BaseFetch issues a single polite HTTP GET. Before each request it sleeps
// WaitTime with ±10% uniform jitter so the crawl paces like a human visitor;
// a WaitTime of zero disables the pause. Response bodies are transcoded to
// UTF-8 based on detected charset.
type BaseFetch struct {
	WaitTime time.Duration // base politeness delay
	Timeout  time.Duration
	Cookie   string
	Proxy    proxy.ProxyFunc
	Limit    limiter.RateLimiter
	Logger   *zap.Logger
}

func (b *BaseFetch) Get(u string) ([]byte, error) {
	if b.Limit != nil {
		if err := b.Limit.Wait(context.Background()); err != nil {
			return nil, err
		}
	}
	b.pause()

	client := &http.Client{Timeout: b.Timeout}
	if b.Proxy != nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.Proxy = b.Proxy
		client.Transport = transport
	}

	req, err := http.NewRequest("GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	if len(b.Cookie) > 0 {
		req.Header.Set("Cookie", b.Cookie)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("error status code:%d", resp.StatusCode)
	}

	bodyReader := bufio.NewReader(resp.Body)
	e := determineEncoding(bodyReader, b.logger())
	utf8Reader := transform.NewReader(bodyReader, e.NewDecoder())

	return io.ReadAll(utf8Reader)
}

func (b *BaseFetch) pause() {
	if b.WaitTime <= 0 {
		return
	}
	jitter := 0.9 + 0.2*rand.Float64()
	time.Sleep(time.Duration(float64(b.WaitTime) * jitter))
}

func (b *BaseFetch) logger() *zap.Logger {
	if b.Logger == nil {
		return zap.NewNop()
	}
	return b.Logger
}

func determineEncoding(r *bufio.Reader, logger *zap.Logger) encoding.Encoding {
	peeked, err := r.Peek(1024)
	if err != nil && err != io.EOF {
		logger.Warn("peek body failed", zap.Error(err))
		return unicode.UTF8
	}
	e, _, _ := charset.DetermineEncoding(peeked, "")
	return e
}
