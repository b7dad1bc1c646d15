package portal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	apperrors "roster-sync/pkg/errors"
)

const (
	// Сеть считается затихшей, когда в полёте не больше idleMaxInflight запросов idleQuietFor подряд.
	idleMaxInflight = 0
	idleQuietFor    = 500 * time.Millisecond
	idlePoll        = 100 * time.Millisecond
)

type ChromedpDriver struct {
	opts   Options
	logger *zap.Logger
}

func NewChromedpDriver(opts Options, logger *zap.Logger) Driver {
	return &ChromedpDriver{opts: opts, logger: logger.Named("ChromedpDriver")}
}

type chromedpSession struct {
	opts   Options
	logger *zap.Logger
	icpt   *Interceptor

	browserCtx    context.Context
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
	stopWatch     func() bool
	closeOnce     sync.Once

	mu        sync.Mutex
	inflight  map[network.RequestID]struct{}
	matched   map[network.RequestID]string
	lastEvent time.Time
	navCh     chan struct{}
}

func (d *ChromedpDriver) Open(ctx context.Context, creds Credentials, icpt *Interceptor) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewSessionError(apperrors.StageLaunch, err)
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", d.opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(d.opts.UserAgent),
		chromedp.WindowSize(d.opts.ViewportWidth, d.opts.ViewportHeight),
	)
	if d.opts.BrowserPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(d.opts.BrowserPath))
	}

	// Браузер живёт до Close, а не до ctx; отмена ctx закрывает его через AfterFunc.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	s := &chromedpSession{
		opts:          d.opts,
		logger:        d.logger,
		icpt:          icpt,
		browserCtx:    browserCtx,
		allocCancel:   allocCancel,
		browserCancel: browserCancel,
		inflight:      make(map[network.RequestID]struct{}),
		matched:       make(map[network.RequestID]string),
		lastEvent:     time.Now(),
	}
	s.stopWatch = context.AfterFunc(ctx, s.shutdown)

	chromedp.ListenTarget(browserCtx, s.onEvent)

	if err := chromedp.Run(browserCtx, network.Enable(), page.Enable()); err != nil {
		_ = s.Close()
		return nil, stepError(ctx, apperrors.StageLaunch, fmt.Errorf("запуск chromium: %w", err))
	}

	if err := s.login(ctx, creds); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *chromedpSession) onEvent(ev interface{}) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		s.mu.Lock()
		s.inflight[e.RequestID] = struct{}{}
		s.lastEvent = time.Now()
		s.mu.Unlock()

	case *network.EventResponseReceived:
		if s.icpt.Matches(e.Response.URL) {
			s.mu.Lock()
			s.matched[e.RequestID] = e.Response.URL
			s.mu.Unlock()
		}

	case *network.EventLoadingFinished:
		s.mu.Lock()
		delete(s.inflight, e.RequestID)
		s.lastEvent = time.Now()
		url, ok := s.matched[e.RequestID]
		delete(s.matched, e.RequestID)
		s.mu.Unlock()
		if ok {
			// Обработчик ListenTarget блокировать нельзя, тело забираем отдельно.
			s.icpt.Dispatch(url, s.bodyFetcher(e.RequestID))
		}

	case *network.EventLoadingFailed:
		s.mu.Lock()
		delete(s.inflight, e.RequestID)
		delete(s.matched, e.RequestID)
		s.lastEvent = time.Now()
		s.mu.Unlock()

	case *page.EventFrameNavigated:
		if e.Frame.ParentID != "" {
			return
		}
		s.mu.Lock()
		if s.navCh != nil {
			close(s.navCh)
			s.navCh = nil
		}
		s.mu.Unlock()
	}
}

func (s *chromedpSession) bodyFetcher(id network.RequestID) func() ([]byte, error) {
	return func() ([]byte, error) {
		c := chromedp.FromContext(s.browserCtx)
		if c == nil || c.Target == nil {
			return nil, fmt.Errorf("вкладка браузера уже закрыта")
		}
		ctx, cancel := context.WithTimeout(s.browserCtx, s.opts.stepTimeout())
		defer cancel()
		return network.GetResponseBody(id).Do(cdp.WithExecutor(ctx, c.Target))
	}
}

func (s *chromedpSession) login(ctx context.Context, creds Credentials) error {
	if err := s.navigate(ctx, s.opts.LoginPath); err != nil {
		return stepError(ctx, apperrors.StageLoginPage, err)
	}

	if err := s.run(ctx, chromedp.WaitReady(s.opts.EmailSelector, chromedp.ByQuery)); err != nil {
		return stepError(ctx, apperrors.StageLoginForm, err)
	}

	if err := s.run(ctx,
		chromedp.SendKeys(s.opts.EmailSelector, creds.Email, chromedp.ByQuery),
		chromedp.SendKeys(s.opts.PasswordSelector, creds.Password, chromedp.ByQuery),
	); err != nil {
		return stepError(ctx, apperrors.StageCredentials, err)
	}

	if err := s.submit(ctx); err != nil {
		return stepError(ctx, apperrors.StageSubmit, err)
	}

	s.logger.Info("Вход в портал выполнен", zap.String("account", creds.String()))
	return nil
}

// submit кликает и ждёт навигацию; успех только если завершились оба.
func (s *chromedpSession) submit(ctx context.Context) error {
	navCh := make(chan struct{})
	s.mu.Lock()
	s.navCh = navCh
	s.mu.Unlock()

	stepCtx, cancel := context.WithTimeout(ctx, s.opts.stepTimeout())
	defer cancel()

	clickErr := make(chan error, 1)
	go func() {
		clickErr <- s.run(stepCtx, chromedp.Click(s.opts.SubmitSelector, chromedp.ByQuery))
	}()

	select {
	case err := <-clickErr:
		if err != nil {
			return fmt.Errorf("клик по кнопке входа: %w", err)
		}
	case <-stepCtx.Done():
		return fmt.Errorf("клик по кнопке входа: %w", stepCtx.Err())
	}

	select {
	case <-navCh:
	case <-stepCtx.Done():
		return fmt.Errorf("ожидание навигации после входа: %w", stepCtx.Err())
	}
	return s.waitNetworkIdle(stepCtx)
}

func (s *chromedpSession) Visit(ctx context.Context, path string) error {
	if err := s.navigate(ctx, path); err != nil {
		return stepError(ctx, apperrors.StageNavigate, fmt.Errorf("%s: %w", path, err))
	}
	return nil
}

func (s *chromedpSession) navigate(ctx context.Context, path string) error {
	stepCtx, cancel := context.WithTimeout(ctx, s.opts.stepTimeout())
	defer cancel()

	if err := s.run(stepCtx, chromedp.Navigate(s.opts.url(path))); err != nil {
		return err
	}
	return s.waitNetworkIdle(stepCtx)
}

// run выполняет действия в контексте вкладки с дедлайном ctx.
func (s *chromedpSession) run(ctx context.Context, actions ...chromedp.Action) error {
	tabCtx, cancel := context.WithTimeout(s.browserCtx, s.opts.stepTimeout())
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(tabCtx, actions...)
}

func (s *chromedpSession) waitNetworkIdle(ctx context.Context) error {
	ticker := time.NewTicker(idlePoll)
	defer ticker.Stop()
	for {
		s.mu.Lock()
		quiet := len(s.inflight) <= idleMaxInflight && time.Since(s.lastEvent) >= idleQuietFor
		s.mu.Unlock()
		if quiet {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("ожидание затихания сети: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (s *chromedpSession) Close() error {
	if s.stopWatch != nil {
		s.stopWatch()
	}
	s.icpt.Drain()
	s.shutdown()
	return nil
}

func (s *chromedpSession) shutdown() {
	s.closeOnce.Do(func() {
		// Отмена контекста вкладки закрывает браузер, отмена аллокатора убивает процесс.
		s.browserCancel()
		s.allocCancel()
		s.logger.Debug("Браузер закрыт")
	})
}
