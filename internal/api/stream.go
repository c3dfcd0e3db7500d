package api

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/user/netlens/internal/model"
)

// Stream is one open push subscription: an unbounded sequence of banners
// read line-by-line from a chunked HTTP response. A stream cannot be
// restarted; reconnecting means opening a new one.
type Stream struct {
	body io.ReadCloser
	idle time.Duration

	recv chan streamItem
	done chan struct{}
	once sync.Once
}

type streamItem struct {
	banner model.Banner
	err    error
}

// StreamBanners subscribes to the firehose of all banners.
func (c *Client) StreamBanners(ctx context.Context, idle time.Duration) (*Stream, error) {
	return c.openStream(ctx, "/banners", idle)
}

// StreamPorts subscribes to banners for the given ports.
func (c *Client) StreamPorts(ctx context.Context, ports []int, idle time.Duration) (*Stream, error) {
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = strconv.Itoa(p)
	}
	return c.openStream(ctx, "/ports/"+strings.Join(parts, ","), idle)
}

// StreamCountries subscribes to banners for the given country codes.
func (c *Client) StreamCountries(ctx context.Context, countries []string, idle time.Duration) (*Stream, error) {
	return c.openStream(ctx, "/countries/"+strings.Join(countries, ","), idle)
}

// StreamASN subscribes to banners for the given ASNs.
func (c *Client) StreamASN(ctx context.Context, asns []string, idle time.Duration) (*Stream, error) {
	return c.openStream(ctx, "/asn/"+strings.Join(asns, ","), idle)
}

// StreamAlert subscribes to the push channel of one alert, or of all the
// account's alerts when id is empty.
func (c *Client) StreamAlert(ctx context.Context, id string, idle time.Duration) (*Stream, error) {
	if id == "" {
		return c.openStream(ctx, "/alert", idle)
	}
	return c.openStream(ctx, "/alert/"+url.PathEscape(id), idle)
}

func (c *Client) openStream(ctx context.Context, path string, idle time.Duration) (*Stream, error) {
	params := c.withKey(url.Values{})
	u := c.streamURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}

	s := &Stream{
		body: resp.Body,
		idle: idle,
		recv: make(chan streamItem),
		done: make(chan struct{}),
	}
	go s.read()
	return s, nil
}

// read pumps decoded banners into the receive channel until the body is
// exhausted or the stream is closed. Keep-alive blank lines and lines that
// fail to decode are skipped.
func (s *Stream) read() {
	scanner := bufio.NewScanner(s.body)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var b model.Banner
		if err := json.Unmarshal([]byte(line), &b); err != nil {
			continue
		}

		select {
		case s.recv <- streamItem{banner: b}:
		case <-s.done:
			return
		}
	}

	err := scanner.Err()
	if err == nil {
		// The server closed an unbounded stream; treat as a truncation.
		err = io.EOF
	}
	select {
	case s.recv <- streamItem{err: err}:
	case <-s.done:
	}
}

// Next blocks until the next banner arrives, the idle window expires, the
// stream is closed, or the underlying transport fails. After a non-nil
// error the stream is spent and must be closed. Next must watch the done
// channel itself: the reader may observe a concurrent Close before its
// final send goes through, and without the done case Next would block
// forever on a stream nobody writes to anymore.
func (s *Stream) Next() (model.Banner, error) {
	if s.idle <= 0 {
		select {
		case item := <-s.recv:
			return item.banner, item.err
		case <-s.done:
			return nil, io.EOF
		}
	}

	timer := time.NewTimer(s.idle)
	defer timer.Stop()

	select {
	case item := <-s.recv:
		return item.banner, item.err
	case <-s.done:
		return nil, io.EOF
	case <-timer.C:
		return nil, ErrIdleTimeout
	}
}

// Close tears down the subscription and unblocks the reader.
func (s *Stream) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.body.Close()
	})
	return nil
}
