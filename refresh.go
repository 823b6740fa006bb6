package meowstatus

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var errNilFeed = errors.New("session feed cannot be nil")

// Resource names used by the cooldown gate and the periodic pollers.
const (
	ResourceQuote    = "quote"
	ResourceStatus   = "status"
	ResourceSchedule = "schedule"
	ResourceBlog     = "blog"
	ResourceVisitor  = "visitor"
)

// 各资源的默认冷却时间与轮询周期。冷却限制手动触发，轮询周期驱动自动刷新。
const (
	DefaultQuoteCooldown    = 1500 * time.Millisecond
	DefaultStatusCooldown   = 5 * time.Second
	DefaultScheduleCooldown = 5 * time.Second
	DefaultBlogCooldown     = 5 * time.Second
	DefaultVisitorCooldown  = 5 * time.Second

	DefaultStatusPoll   = time.Minute
	DefaultSchedulePoll = 2 * time.Minute
	DefaultBlogPoll     = 3 * time.Minute
	DefaultQuotePoll    = 5 * time.Minute
	DefaultVisitorPoll  = 5 * time.Minute
)

// QuoteFallback 一言接口失败时的兜底文案。
const QuoteFallback = "今天也要温柔一点。"

// feedSource is the slice of FeedClient the session needs; tests substitute it.
type feedSource interface {
	FetchQuote(ctx context.Context) (Quote, error)
	FetchStatus(ctx context.Context) ([]DeviceStatusRecord, error)
	FetchSchedule(ctx context.Context) ([]ScheduleItem, error)
	FetchBlog(ctx context.Context) ([]BlogPostSummary, error)
	FetchVisitorStats(ctx context.Context) (VisitorStats, error)
	RecordVisit(ctx context.Context, visitorID string) error
}

// SlotInfo 单个资源槽的元状态。
type SlotInfo struct {
	Loading     bool
	Errored     bool
	LastUpdated time.Time
}

type slotState struct {
	loading     bool
	errored     bool
	lastUpdated time.Time
}

func (s slotState) info() SlotInfo {
	return SlotInfo{Loading: s.loading, Errored: s.errored, LastUpdated: s.lastUpdated}
}

// SessionConfig controls the consumer session. Zero durations fall back to the
// defaults above.
type SessionConfig struct {
	Feed      feedSource
	VisitorID string

	QuoteCooldown    time.Duration
	StatusCooldown   time.Duration
	ScheduleCooldown time.Duration
	BlogCooldown     time.Duration
	VisitorCooldown  time.Duration

	StatusPoll   time.Duration
	SchedulePoll time.Duration
	BlogPoll     time.Duration
	QuotePoll    time.Duration
	VisitorPoll  time.Duration
}

// Session owns every polled resource slot plus the timers that drive them.
// All timers are started by Start and cancelled by Close; nothing lives in
// package globals. Slot refreshes are independent: a slow blog fetch never
// delays the quote fetch.
type Session struct {
	cfg  SessionConfig
	feed feedSource
	gate *cooldownGate

	mu       sync.Mutex
	quote    Quote
	status   []DeviceStatusRecord
	schedule []ScheduleItem
	blog     []BlogPostSummary
	visitor  VisitorStats

	quoteState    slotState
	statusState   slotState
	scheduleState slotState
	blogState     slotState
	visitorState  slotState

	cancel  context.CancelFunc
	workers sync.WaitGroup
	started bool
}

// NewSession builds a consumer session. Every slot starts immediately eligible.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Feed == nil {
		return nil, errNilFeed
	}
	if cfg.QuoteCooldown <= 0 {
		cfg.QuoteCooldown = DefaultQuoteCooldown
	}
	if cfg.StatusCooldown <= 0 {
		cfg.StatusCooldown = DefaultStatusCooldown
	}
	if cfg.ScheduleCooldown <= 0 {
		cfg.ScheduleCooldown = DefaultScheduleCooldown
	}
	if cfg.BlogCooldown <= 0 {
		cfg.BlogCooldown = DefaultBlogCooldown
	}
	if cfg.VisitorCooldown <= 0 {
		cfg.VisitorCooldown = DefaultVisitorCooldown
	}
	if cfg.StatusPoll <= 0 {
		cfg.StatusPoll = DefaultStatusPoll
	}
	if cfg.SchedulePoll <= 0 {
		cfg.SchedulePoll = DefaultSchedulePoll
	}
	if cfg.BlogPoll <= 0 {
		cfg.BlogPoll = DefaultBlogPoll
	}
	if cfg.QuotePoll <= 0 {
		cfg.QuotePoll = DefaultQuotePoll
	}
	if cfg.VisitorPoll <= 0 {
		cfg.VisitorPoll = DefaultVisitorPoll
	}
	return &Session{
		cfg:  cfg,
		feed: cfg.Feed,
		gate: newCooldownGate(),
	}, nil
}

// Start performs the fast-start fetch of every resource, records the visit, and
// launches one poller per resource. The fast-start fetches run concurrently so a
// slow slot cannot hold up the others; Start returns once all of them finished.
// Idempotent after the first call.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	var fastStart sync.WaitGroup
	for _, refresh := range []func(context.Context){
		s.RefreshQuote,
		s.RefreshStatus,
		s.RefreshSchedule,
		s.RefreshBlog,
	} {
		fastStart.Add(1)
		go func() {
			defer fastStart.Done()
			refresh(ctx)
		}()
	}
	fastStart.Add(1)
	go func() {
		defer fastStart.Done()
		s.recordVisit(ctx)
		s.RefreshVisitorStats(ctx)
	}()
	fastStart.Wait()

	s.startPoller(ctx, ResourceStatus, s.cfg.StatusPoll, s.RefreshStatus)
	s.startPoller(ctx, ResourceSchedule, s.cfg.SchedulePoll, s.RefreshSchedule)
	s.startPoller(ctx, ResourceBlog, s.cfg.BlogPoll, s.RefreshBlog)
	s.startPoller(ctx, ResourceQuote, s.cfg.QuotePoll, s.RefreshQuote)
	s.startPoller(ctx, ResourceVisitor, s.cfg.VisitorPoll, s.RefreshVisitorStats)
}

// Close cancels every poller and waits for them to drain.
func (s *Session) Close() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.workers.Wait()
}

func (s *Session) startPoller(ctx context.Context, name string, interval time.Duration, refresh func(context.Context)) {
	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				refresh(ctx)
			}
		}
	}()
	log.Debug().Str("resource", name).Dur("interval", interval).Msg("session poller started")
}

// RefreshQuote fetches the quote card. Calling it inside the cooldown window is
// a silent no-op. Failure swaps in the fallback text instead of blanking the card.
func (s *Session) RefreshQuote(ctx context.Context) {
	now := time.Now()
	if !s.gate.Acquire(ResourceQuote, now, s.cfg.QuoteCooldown) {
		return
	}
	s.setLoading(&s.quoteState, true)
	defer s.setLoading(&s.quoteState, false)

	quote, err := s.feed.FetchQuote(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		log.Warn().Err(err).Msg("quote fetch failed")
		s.quote = Quote{Text: QuoteFallback}
		s.quoteState.errored = true
		return
	}
	if quote.Text == "" {
		quote.Text = QuoteFallback
	}
	s.quote = quote
	s.quoteState.errored = false
	s.quoteState.lastUpdated = time.Now()
}

// RefreshStatus fetches the device records.
func (s *Session) RefreshStatus(ctx context.Context) {
	now := time.Now()
	if !s.gate.Acquire(ResourceStatus, now, s.cfg.StatusCooldown) {
		return
	}
	s.setLoading(&s.statusState, true)
	defer s.setLoading(&s.statusState, false)

	records, err := s.feed.FetchStatus(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		log.Warn().Err(err).Msg("status fetch failed")
		s.statusState.errored = true
		return
	}
	s.status = records
	s.statusState.errored = false
	s.statusState.lastUpdated = time.Now()
}

// RefreshSchedule fetches the schedule entries.
func (s *Session) RefreshSchedule(ctx context.Context) {
	now := time.Now()
	if !s.gate.Acquire(ResourceSchedule, now, s.cfg.ScheduleCooldown) {
		return
	}
	s.setLoading(&s.scheduleState, true)
	defer s.setLoading(&s.scheduleState, false)

	items, err := s.feed.FetchSchedule(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		log.Warn().Err(err).Msg("schedule fetch failed")
		s.scheduleState.errored = true
		return
	}
	s.schedule = items
	s.scheduleState.errored = false
	s.scheduleState.lastUpdated = time.Now()
}

// RefreshBlog fetches the blog summaries.
func (s *Session) RefreshBlog(ctx context.Context) {
	now := time.Now()
	if !s.gate.Acquire(ResourceBlog, now, s.cfg.BlogCooldown) {
		return
	}
	s.setLoading(&s.blogState, true)
	defer s.setLoading(&s.blogState, false)

	posts, err := s.feed.FetchBlog(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		log.Warn().Err(err).Msg("blog fetch failed")
		s.blogState.errored = true
		return
	}
	s.blog = posts
	s.blogState.errored = false
	s.blogState.lastUpdated = time.Now()
}

// RefreshVisitorStats fetches the visit counters.
func (s *Session) RefreshVisitorStats(ctx context.Context) {
	now := time.Now()
	if !s.gate.Acquire(ResourceVisitor, now, s.cfg.VisitorCooldown) {
		return
	}
	s.setLoading(&s.visitorState, true)
	defer s.setLoading(&s.visitorState, false)

	stats, err := s.feed.FetchVisitorStats(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		log.Warn().Err(err).Msg("visitor stats fetch failed")
		s.visitorState.errored = true
		return
	}
	s.visitor = stats
	s.visitorState.errored = false
	s.visitorState.lastUpdated = time.Now()
}

// recordVisit registers this session's visitor identity, best-effort.
func (s *Session) recordVisit(ctx context.Context) {
	if s.cfg.VisitorID == "" {
		return
	}
	if err := s.feed.RecordVisit(ctx, s.cfg.VisitorID); err != nil {
		log.Warn().Err(err).Msg("record visit failed")
	}
}

func (s *Session) setLoading(state *slotState, loading bool) {
	s.mu.Lock()
	state.loading = loading
	s.mu.Unlock()
}

// Quote returns the current quote slot.
func (s *Session) Quote() (Quote, SlotInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quote, s.quoteState.info()
}

// Status returns the current device records.
func (s *Session) Status() ([]DeviceStatusRecord, SlotInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.statusState.info()
}

// Schedule returns the current schedule entries.
func (s *Session) Schedule() ([]ScheduleItem, SlotInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schedule, s.scheduleState.info()
}

// Blog returns the current blog summaries.
func (s *Session) Blog() ([]BlogPostSummary, SlotInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blog, s.blogState.info()
}

// VisitorStats returns the current visit counters.
func (s *Session) VisitorStats() (VisitorStats, SlotInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visitor, s.visitorState.info()
}

// Summary reduces the status slot to the single homepage summary line.
func (s *Session) Summary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SummaryText(s.status, s.statusState.loading)
}
