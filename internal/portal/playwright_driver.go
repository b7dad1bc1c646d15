package portal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	apperrors "roster-sync/pkg/errors"
)

// Сколько ждать закрытия контекста и браузера, прежде чем остановить драйвер playwright.
const browserCloseTimeout = 5 * time.Second

type PlaywrightDriver struct {
	opts   Options
	logger *zap.Logger
}

func NewPlaywrightDriver(opts Options, logger *zap.Logger) Driver {
	return &PlaywrightDriver{opts: opts, logger: logger.Named("PlaywrightDriver")}
}

type playwrightSession struct {
	opts    Options
	logger  *zap.Logger
	icpt    *Interceptor
	pw      *playwright.Playwright
	browser playwright.Browser
	bctx    playwright.BrowserContext
	page    playwright.Page

	mu        sync.Mutex
	stopWatch func() bool
	stopped   chan struct{}
}

func (d *PlaywrightDriver) Open(ctx context.Context, creds Credentials, icpt *Interceptor) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewSessionError(apperrors.StageLaunch, err)
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, apperrors.NewSessionError(apperrors.StageLaunch, fmt.Errorf("запуск playwright: %w", err))
	}
	s := &playwrightSession{opts: d.opts, logger: d.logger, icpt: icpt, pw: pw, stopped: make(chan struct{})}
	// При отмене задания браузер закрывается принудительно, даже посреди шага.
	s.stopWatch = context.AfterFunc(ctx, func() { _ = s.shutdown() })

	if err := s.launch(pw, icpt); err != nil {
		_ = s.Close()
		return nil, err
	}
	if err := s.login(ctx, creds); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *playwrightSession) launch(pw *playwright.Playwright, icpt *Interceptor) error {
	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(s.opts.Headless),
		Timeout:  s.timeoutMS(),
	}
	if s.opts.BrowserPath != "" {
		launchOpts.ExecutablePath = playwright.String(s.opts.BrowserPath)
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		return apperrors.NewSessionError(apperrors.StageLaunch, fmt.Errorf("запуск chromium: %w", err))
	}
	if !s.keep(func() { s.browser = browser }) {
		_ = browser.Close()
		return apperrors.NewSessionError(apperrors.StageLaunch, context.Canceled)
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String(s.opts.UserAgent),
		Viewport: &playwright.Size{
			Width:  s.opts.ViewportWidth,
			Height: s.opts.ViewportHeight,
		},
	})
	if err != nil {
		return apperrors.NewSessionError(apperrors.StageLaunch, fmt.Errorf("контекст браузера: %w", err))
	}
	if !s.keep(func() { s.bctx = bctx }) {
		_ = bctx.Close()
		return apperrors.NewSessionError(apperrors.StageLaunch, context.Canceled)
	}

	page, err := bctx.NewPage()
	if err != nil {
		return apperrors.NewSessionError(apperrors.StageLaunch, fmt.Errorf("новая страница: %w", err))
	}
	s.page = page

	page.OnResponse(responseHandler(icpt))
	return nil
}

// responseHandler вызывается из единственной горутины чтения протокола
// playwright. Body - это запрос к той же горутине, поэтому читать его здесь
// нельзя: чтение уходит в Dispatch.
func responseHandler(icpt *Interceptor) func(playwright.Response) {
	return func(resp playwright.Response) {
		icpt.Dispatch(resp.URL(), resp.Body)
	}
}

// keep сохраняет ресурс, если сессия ещё не закрыта.
func (s *playwrightSession) keep(assign func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pw == nil {
		return false
	}
	assign()
	return true
}

func (s *playwrightSession) login(ctx context.Context, creds Credentials) error {
	timeout := s.timeoutMS()

	if err := ctx.Err(); err != nil {
		return stepError(ctx, apperrors.StageLoginPage, err)
	}
	if _, err := s.page.Goto(s.opts.url(s.opts.LoginPath), playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   timeout,
	}); err != nil {
		return stepError(ctx, apperrors.StageLoginPage, err)
	}

	emailInput := s.page.Locator(s.opts.EmailSelector)
	if err := emailInput.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: timeout,
	}); err != nil {
		return stepError(ctx, apperrors.StageLoginForm, err)
	}

	if err := emailInput.Fill(creds.Email, playwright.LocatorFillOptions{Timeout: timeout}); err != nil {
		return stepError(ctx, apperrors.StageCredentials, err)
	}
	if err := s.page.Locator(s.opts.PasswordSelector).Fill(creds.Password, playwright.LocatorFillOptions{Timeout: timeout}); err != nil {
		return stepError(ctx, apperrors.StageCredentials, err)
	}

	if err := ctx.Err(); err != nil {
		return stepError(ctx, apperrors.StageSubmit, err)
	}
	// Клик и навигация ждутся вместе: ExpectNavigation возвращается только
	// после завершения обоих.
	_, err := s.page.ExpectNavigation(func() error {
		return s.page.Locator(s.opts.SubmitSelector).Click(playwright.LocatorClickOptions{Timeout: timeout})
	}, playwright.PageExpectNavigationOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   timeout,
	})
	if err != nil {
		return stepError(ctx, apperrors.StageSubmit, err)
	}

	s.logger.Info("Вход в портал выполнен", zap.String("account", creds.String()))
	return nil
}

func (s *playwrightSession) Visit(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return stepError(ctx, apperrors.StageNavigate, err)
	}
	if _, err := s.page.Goto(s.opts.url(path), playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   s.timeoutMS(),
	}); err != nil {
		return stepError(ctx, apperrors.StageNavigate, fmt.Errorf("%s: %w", path, err))
	}
	return nil
}

func (s *playwrightSession) Close() error {
	if s.stopWatch != nil {
		s.stopWatch()
	}
	s.icpt.Drain()
	return s.shutdown()
}

// shutdown закрывает то, что успело открыться. Безопасен при повторном и
// конкурентном вызове из AfterFunc: второй вызов ждёт завершения первого. Закрытие контекста и браузера ограничено
// browserCloseTimeout, после чего драйвер playwright останавливается в любом случае.
func (s *playwrightSession) shutdown() error {
	s.mu.Lock()
	pw, browser, bctx := s.pw, s.browser, s.bctx
	s.pw, s.browser, s.bctx = nil, nil, nil
	s.mu.Unlock()

	if pw == nil {
		<-s.stopped
		return nil
	}
	defer close(s.stopped)

	closed := make(chan error, 1)
	go func() {
		closed <- closeBrowser(bctx, browser, s.logger)
	}()

	var closeErr error
	timer := time.NewTimer(browserCloseTimeout)
	select {
	case closeErr = <-closed:
	case <-timer.C:
		s.logger.Warn("Браузер не закрылся вовремя, останавливаем playwright",
			zap.Duration("timeout", browserCloseTimeout))
	}
	timer.Stop()

	if err := pw.Stop(); err != nil && closeErr == nil {
		closeErr = fmt.Errorf("остановка playwright: %w", err)
	}
	s.logger.Debug("Браузер закрыт")
	return closeErr
}

func closeBrowser(bctx playwright.BrowserContext, browser playwright.Browser, logger *zap.Logger) error {
	if bctx != nil {
		if err := bctx.Close(); err != nil {
			logger.Debug("Ошибка закрытия контекста браузера", zap.Error(err))
		}
	}
	if browser != nil {
		if err := browser.Close(); err != nil {
			return fmt.Errorf("закрытие браузера: %w", err)
		}
	}
	return nil
}

func (s *playwrightSession) timeoutMS() *float64 {
	return playwright.Float(float64(s.opts.stepTimeout().Milliseconds()))
}
