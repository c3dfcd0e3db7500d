package scanmon

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/netlens/internal/api"
	"github.com/user/netlens/internal/model"
	"github.com/user/netlens/internal/stream"
)

type step struct {
	banner model.Banner
	err    error
}

// fakeChannel replays a fixed script, then blocks until closed.
type fakeChannel struct {
	steps  []step
	idx    int
	closed chan struct{}
	once   sync.Once
}

func newFakeChannel(steps ...step) *fakeChannel {
	return &fakeChannel{steps: steps, closed: make(chan struct{})}
}

func (f *fakeChannel) Next() (model.Banner, error) {
	if f.idx < len(f.steps) {
		s := f.steps[f.idx]
		f.idx++
		return s.banner, s.err
	}
	<-f.closed
	return nil, io.EOF
}

func (f *fakeChannel) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

type fakeService struct {
	submitErr error
	statuses  []model.ScanStatus
	openErrs  []error
	channels  []*fakeChannel

	polls   int
	creates int
	deletes int
	opens   int
	deleted []string
}

func (s *fakeService) ScanSubmit(ctx context.Context, netblocks []string, force bool) (*model.ScanJob, error) {
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	return &model.ScanJob{
		ID:          "SCAN1",
		Netblocks:   netblocks,
		Status:      model.ScanSubmitted,
		CreditsLeft: 99,
	}, nil
}

func (s *fakeService) ScanStatus(ctx context.Context, id string) (model.ScanStatus, error) {
	i := s.polls
	s.polls++
	if len(s.statuses) == 0 {
		return model.ScanRunning, nil
	}
	if i >= len(s.statuses) {
		i = len(s.statuses) - 1
	}
	return s.statuses[i], nil
}

func (s *fakeService) CreateAlert(ctx context.Context, name string, netblocks []string) (*model.Alert, error) {
	s.creates++
	return &model.Alert{ID: "ALERT1", Name: name, Netblocks: netblocks}, nil
}

func (s *fakeService) DeleteAlert(ctx context.Context, id string) error {
	s.deletes++
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *fakeService) StreamAlert(ctx context.Context, id string, idle time.Duration) (stream.Channel, error) {
	i := s.opens
	s.opens++
	if i < len(s.openErrs) && s.openErrs[i] != nil {
		return nil, s.openErrs[i]
	}
	return s.channels[i], nil
}

func banner(ip string, port int) model.Banner {
	return model.Banner{"ip_str": ip, "ip": ip, "port": float64(port)}
}

func TestRunCompletesWhenScanFinishes(t *testing.T) {
	svc := &fakeService{
		statuses: []model.ScanStatus{model.ScanRunning, model.ScanDone},
		channels: []*fakeChannel{newFakeChannel(
			step{banner: banner("1.2.3.4", 80)},
		)},
	}

	var submitted *model.ScanJob
	var seen []model.ScanStatus
	m := &Monitor{
		Service:      svc,
		Netblocks:    []string{"198.51.100.0/24"},
		Wait:         time.Minute,
		PollInterval: 10 * time.Millisecond,
		OnSubmit:     func(j *model.ScanJob) { submitted = j },
		OnStatus:     func(s model.ScanStatus) { seen = append(seen, s) },
	}

	res, err := m.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, model.ScanDone, res.Job.Status)
	assert.Equal(t, 1, svc.creates)
	assert.Equal(t, 1, svc.deletes, "the alert must be removed exactly once")
	assert.Equal(t, []string{"ALERT1"}, svc.deleted)

	require.NotNil(t, submitted)
	assert.Equal(t, 99, submitted.CreditsLeft)
	assert.Contains(t, seen, model.ScanDone)

	require.Len(t, res.Hosts, 1)
	assert.Equal(t, "1.2.3.4", res.Hosts[0].IP)
}

func TestRunDeletesAlertOnProtocolError(t *testing.T) {
	svc := &fakeService{
		channels: []*fakeChannel{newFakeChannel(
			step{err: &api.Error{StatusCode: 401, Message: "invalid key"}},
		)},
	}

	m := &Monitor{
		Service:      svc,
		Netblocks:    []string{"198.51.100.0/24"},
		Wait:         time.Minute,
		PollInterval: time.Hour,
	}

	res, err := m.Run(context.Background())
	require.Error(t, err)
	require.NotNil(t, res)

	var apiErr *api.Error
	assert.ErrorAs(t, res.Err, &apiErr)
	assert.Equal(t, 1, svc.deletes, "cleanup must run on the failure path too")
}

func TestRunDeletesAlertOnInterrupt(t *testing.T) {
	svc := &fakeService{
		channels: []*fakeChannel{newFakeChannel()},
	}

	m := &Monitor{
		Service:      svc,
		Netblocks:    []string{"198.51.100.0/24"},
		Wait:         time.Minute,
		PollInterval: time.Hour,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	res, err := m.Run(ctx)
	require.NoError(t, err, "an interrupt is a normal stop")
	require.NotNil(t, res)
	assert.Equal(t, 1, svc.deletes)
}

func TestRunNoCleanupWhenSubmitRejected(t *testing.T) {
	svc := &fakeService{
		submitErr: &api.Error{StatusCode: 402, Message: "no scan credits"},
	}

	m := &Monitor{
		Service:   svc,
		Netblocks: []string{"198.51.100.0/24"},
		Wait:      time.Minute,
	}

	res, err := m.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, res)

	var serr *SubmitError
	assert.ErrorAs(t, err, &serr)
	assert.Equal(t, 0, svc.creates)
	assert.Equal(t, 0, svc.deletes)
}

func TestRunSkipsListeningWithoutWait(t *testing.T) {
	svc := &fakeService{}

	m := &Monitor{
		Service:   svc,
		Netblocks: []string{"198.51.100.0/24"},
	}

	res, err := m.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, "SCAN1", res.Job.ID)
	assert.Equal(t, 0, svc.creates)
	assert.Equal(t, 0, svc.opens)
}

func TestRunDeduplicatesFirstSeen(t *testing.T) {
	first := banner("1.2.3.4", 80)
	first["data"] = "first sighting"
	dup := banner("1.2.3.4", 80)
	dup["data"] = "later sighting"

	svc := &fakeService{
		statuses: []model.ScanStatus{model.ScanDone},
		channels: []*fakeChannel{newFakeChannel(
			step{banner: first},
			step{banner: dup},
			step{banner: banner("1.2.3.4", 443)},
			step{banner: model.Banner{"port": float64(22)}}, // no address, excluded
			step{banner: banner("5.6.7.8", 22)},
		)},
	}

	m := &Monitor{
		Service:      svc,
		Netblocks:    []string{"198.51.100.0/24"},
		Wait:         time.Minute,
		PollInterval: 25 * time.Millisecond,
	}

	res, err := m.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Hosts, 2)

	// Hosts ascending, ports ascending within each host.
	assert.Equal(t, "1.2.3.4", res.Hosts[0].IP)
	require.Len(t, res.Hosts[0].Banners, 2)
	assert.Equal(t, 80, res.Hosts[0].Banners[0].Port())
	assert.Equal(t, 443, res.Hosts[0].Banners[1].Port())

	// The duplicate kept its first-seen payload.
	assert.Equal(t, "first sighting", res.Hosts[0].Banners[0]["data"])

	assert.Equal(t, "5.6.7.8", res.Hosts[1].IP)
}

func TestRunReconnectsAfterEarlyTimeout(t *testing.T) {
	svc := &fakeService{
		statuses: []model.ScanStatus{model.ScanDone},
		channels: []*fakeChannel{
			newFakeChannel(step{err: api.ErrIdleTimeout}),
			newFakeChannel(step{banner: banner("1.2.3.4", 80)}),
		},
	}

	m := &Monitor{
		Service:      svc,
		Netblocks:    []string{"198.51.100.0/24"},
		Wait:         time.Minute,
		PollInterval: 25 * time.Millisecond,
		Backoff:      time.Millisecond,
	}

	res, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, svc.opens)
	assert.Equal(t, 1, svc.deletes)
	require.Len(t, res.Hosts, 1)
}

func TestRunEndsWhenWaitWindowCloses(t *testing.T) {
	svc := &fakeService{
		channels: []*fakeChannel{
			newFakeChannel(step{err: api.ErrIdleTimeout}),
		},
	}

	m := &Monitor{
		Service:      svc,
		Netblocks:    []string{"198.51.100.0/24"},
		Wait:         time.Nanosecond,
		PollInterval: time.Hour,
	}

	res, err := m.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, 1, svc.opens, "an exhausted wait window must not reconnect")
	assert.Equal(t, 1, svc.deletes)
	assert.Empty(t, res.Hosts)
}

func TestRunReopensAfterTransientOpenFailure(t *testing.T) {
	svc := &fakeService{
		statuses: []model.ScanStatus{model.ScanDone},
		openErrs: []error{api.ErrIdleTimeout},
		channels: []*fakeChannel{
			nil,
			newFakeChannel(step{banner: banner("1.2.3.4", 80)}),
		},
	}

	m := &Monitor{
		Service:      svc,
		Netblocks:    []string{"198.51.100.0/24"},
		Wait:         time.Minute,
		PollInterval: 25 * time.Millisecond,
		Backoff:      time.Millisecond,
	}

	res, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, svc.opens)
	require.Len(t, res.Hosts, 1)
}

func TestGroupHostsOrdering(t *testing.T) {
	hosts := map[string]map[int]model.Banner{
		"9.9.9.9": {22: banner("9.9.9.9", 22)},
		"1.1.1.1": {443: banner("1.1.1.1", 443), 80: banner("1.1.1.1", 80)},
	}

	grouped := groupHosts(hosts)
	require.Len(t, grouped, 2)
	assert.Equal(t, "1.1.1.1", grouped[0].IP)
	assert.Equal(t, 80, grouped[0].Banners[0].Port())
	assert.Equal(t, 443, grouped[0].Banners[1].Port())
	assert.Equal(t, "9.9.9.9", grouped[1].IP)
}
