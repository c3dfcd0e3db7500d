// Package scanmon orchestrates an on-demand scan: submit the job, listen
// on a temporary alert subscription for results, deduplicate them, and
// poll the job status until it finishes or the wait window closes.
package scanmon

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/user/netlens/internal/api"
	"github.com/user/netlens/internal/dedup"
	"github.com/user/netlens/internal/model"
	"github.com/user/netlens/internal/stream"
	"github.com/user/netlens/internal/util"
)

// Service is the slice of the query service the monitor consumes.
type Service interface {
	ScanSubmit(ctx context.Context, netblocks []string, force bool) (*model.ScanJob, error)
	ScanStatus(ctx context.Context, id string) (model.ScanStatus, error)
	CreateAlert(ctx context.Context, name string, netblocks []string) (*model.Alert, error)
	DeleteAlert(ctx context.Context, id string) error
	StreamAlert(ctx context.Context, id string, idle time.Duration) (stream.Channel, error)
}

// Wrap adapts the API client to the Service interface.
func Wrap(c *api.Client) Service {
	return clientService{c}
}

type clientService struct {
	c *api.Client
}

func (s clientService) ScanSubmit(ctx context.Context, netblocks []string, force bool) (*model.ScanJob, error) {
	return s.c.ScanSubmit(ctx, netblocks, force)
}

func (s clientService) ScanStatus(ctx context.Context, id string) (model.ScanStatus, error) {
	return s.c.ScanStatus(ctx, id)
}

func (s clientService) CreateAlert(ctx context.Context, name string, netblocks []string) (*model.Alert, error) {
	return s.c.CreateAlert(ctx, name, netblocks)
}

func (s clientService) DeleteAlert(ctx context.Context, id string) error {
	return s.c.DeleteAlert(ctx, id)
}

func (s clientService) StreamAlert(ctx context.Context, id string, idle time.Duration) (stream.Channel, error) {
	return s.c.StreamAlert(ctx, id, idle)
}

// SubmitError indicates the scan request itself was rejected. No alert
// subscription exists at that point, so no cleanup is needed.
type SubmitError struct {
	Err error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("scan submission failed: %v", e.Err)
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// HostResult groups the first-seen banners of one host, ports ascending.
type HostResult struct {
	IP      string
	Banners []model.Banner
}

// Result is what a monitoring session found.
type Result struct {
	Job   *model.ScanJob
	Hosts []HostResult

	// Err records an unrecoverable session error. Cleanup and result
	// grouping still ran; an empty Hosts with a nil Err simply means
	// the scan found nothing.
	Err error
}

const (
	defaultPollInterval = time.Minute
	defaultBackoff      = 500 * time.Millisecond
)

// Monitor runs one scan-monitoring session.
type Monitor struct {
	Service   Service
	Netblocks []string
	Force     bool

	// Wait bounds the listening window and doubles as the push
	// channel's idle timeout.
	Wait time.Duration

	// PollInterval is the cadence of scan status checks. Defaults to
	// one minute.
	PollInterval time.Duration

	// Backoff is the pause before reopening a channel the server
	// closed early. Defaults to half a second.
	Backoff time.Duration

	// OnSubmit is invoked once the scan job has been accepted, before
	// the listening window opens.
	OnSubmit func(*model.ScanJob)

	// OnStatus is invoked after every successful status poll.
	OnStatus func(model.ScanStatus)
}

type received struct {
	banner model.Banner
	err    error
}

// Run submits the scan and listens for its results. The returned Result
// is non-nil whenever submission succeeded, even if the session later
// failed; the alert subscription is deleted on every exit path.
func (m *Monitor) Run(ctx context.Context) (*Result, error) {
	job, err := m.Service.ScanSubmit(ctx, m.Netblocks, m.Force)
	if err != nil {
		return nil, &SubmitError{Err: err}
	}

	if m.OnSubmit != nil {
		m.OnSubmit(job)
	}

	res := &Result{Job: job}
	if m.Wait <= 0 {
		return res, nil
	}

	alert, err := m.Service.CreateAlert(ctx, "Scan: "+strings.Join(m.Netblocks, ", "), m.Netblocks)
	if err != nil {
		res.Err = err
		return res, err
	}
	defer func() {
		// Cleanup must survive interrupts, so it runs on a fresh
		// deadline detached from the session context.
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := m.Service.DeleteAlert(cleanupCtx, alert.ID); err != nil {
			util.Warn("failed to delete alert %s: %v", alert.ID, err)
		}
	}()

	pollInterval := m.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	backoff := m.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}

	hosts := make(map[string]map[int]model.Banner)
	cache := dedup.New()
	start := time.Now()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	done := false
	for !done && ctx.Err() == nil {
		ch, err := m.Service.StreamAlert(ctx, alert.ID, m.Wait)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if !api.IsTransient(err) {
				res.Err = err
				break
			}
			if time.Since(start) >= m.Wait {
				break
			}
			if !sleepCtx(ctx, backoff) {
				break
			}
			continue
		}

		done = m.listen(ctx, ch, job, ticker.C, start, backoff, cache, hosts, res)
	}

	res.Hosts = groupHosts(hosts)
	return res, res.Err
}

// listen consumes one open channel until it fails or the session ends.
// It returns true when the session is over and false when the channel
// should be reopened.
func (m *Monitor) listen(ctx context.Context, ch stream.Channel, job *model.ScanJob,
	ticks <-chan time.Time, start time.Time, backoff time.Duration,
	cache *dedup.Cache, hosts map[string]map[int]model.Banner, res *Result) bool {

	quit := make(chan struct{})
	recv := make(chan received)
	go func() {
		for {
			b, err := ch.Next()
			select {
			case recv <- received{banner: b, err: err}:
			case <-quit:
				return
			}
			if err != nil {
				return
			}
		}
	}()
	defer func() {
		close(quit)
		ch.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return true

		case <-ticks:
			status, err := m.Service.ScanStatus(ctx, job.ID)
			if err != nil {
				util.Debug("scan status poll failed: %v", err)
				continue
			}
			job.Status = status
			if m.OnStatus != nil {
				m.OnStatus(status)
			}
			if status.Terminal() {
				return true
			}

		case r := <-recv:
			if r.err != nil {
				if !api.IsTransient(r.err) {
					res.Err = r.err
					return true
				}
				// A timeout before the wait window has elapsed
				// means the streaming server dropped us early;
				// pause briefly and reconnect.
				if time.Since(start) < m.Wait {
					sleepCtx(ctx, backoff)
					return false
				}
				return true
			}

			identity, ok := r.banner.Identity()
			if !ok {
				continue
			}
			if cache.Seen(identity) {
				continue
			}
			cache.Mark(identity)

			ip := r.banner.HostIP()
			if hosts[ip] == nil {
				hosts[ip] = make(map[int]model.Banner)
			}
			hosts[ip][r.banner.Port()] = r.banner
		}
	}
}

// groupHosts flattens the per-host tables, sorted by host then by port.
func groupHosts(hosts map[string]map[int]model.Banner) []HostResult {
	ips := make([]string, 0, len(hosts))
	for ip := range hosts {
		ips = append(ips, ip)
	}
	sort.Strings(ips)

	results := make([]HostResult, 0, len(ips))
	for _, ip := range ips {
		ports := make([]int, 0, len(hosts[ip]))
		for port := range hosts[ip] {
			ports = append(ports, port)
		}
		sort.Ints(ports)

		banners := make([]model.Banner, 0, len(ports))
		for _, port := range ports {
			banners = append(banners, hosts[ip][port])
		}
		results = append(results, HostResult{IP: ip, Banners: banners})
	}
	return results
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
