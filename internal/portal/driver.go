package portal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"roster-sync/pkg/config"
	apperrors "roster-sync/pkg/errors"
)

const (
	BackendPlaywright = "playwright"
	BackendChromedp   = "chromedp"
)

// Credentials - учётные данные портала. String не раскрывает пароль.
type Credentials struct {
	Email    string
	Password string
}

func (c Credentials) String() string {
	return config.MaskEmail(c.Email) + ":***"
}

func (c Credentials) GoString() string {
	return c.String()
}

type Options struct {
	Backend          string
	BaseURL          string
	LoginPath        string
	EmailSelector    string
	PasswordSelector string
	SubmitSelector   string
	UserAgent        string
	ViewportWidth    int
	ViewportHeight   int
	StepTimeout      time.Duration
	Headless         bool
	BrowserPath      string
}

func OptionsFromConfig(cfg config.PortalConfig) Options {
	return Options{
		Backend:          cfg.Driver,
		BaseURL:          cfg.BaseURL,
		LoginPath:        cfg.LoginPath,
		EmailSelector:    cfg.EmailSelector,
		PasswordSelector: cfg.PasswordSelector,
		SubmitSelector:   cfg.SubmitSelector,
		UserAgent:        cfg.UserAgent,
		ViewportWidth:    cfg.ViewportWidth,
		ViewportHeight:   cfg.ViewportHeight,
		StepTimeout:      cfg.StepTimeout,
		Headless:         cfg.Headless,
		BrowserPath:      cfg.BrowserPath,
	}
}

func (o Options) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(o.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

func (o Options) stepTimeout() time.Duration {
	if o.StepTimeout <= 0 {
		return 60 * time.Second
	}
	return o.StepTimeout
}

// Session - авторизованная сессия браузера. Close дожидается чтения уже
// перехваченных тел (Interceptor.Drain) и закрывает браузер. Можно вызывать повторно.
type Session interface {
	Visit(ctx context.Context, path string) error
	Close() error
}

// Driver открывает авторизованную сессию. Все ответы страницы отдаются в Interceptor.Dispatch.
// Ошибки возвращаются как *errors.SessionError с этапом. Повторов нет.
type Driver interface {
	Open(ctx context.Context, creds Credentials, icpt *Interceptor) (Session, error)
}

func NewDriver(opts Options, logger *zap.Logger) (Driver, error) {
	switch opts.Backend {
	case BackendPlaywright, "":
		return NewPlaywrightDriver(opts, logger), nil
	case BackendChromedp:
		return NewChromedpDriver(opts, logger), nil
	default:
		return nil, fmt.Errorf("неизвестный драйвер браузера: %q", opts.Backend)
	}
}

// stepError оборачивает ошибку шага в SessionError. Если задание уже отменено,
// причиной считается отмена: закрытый браузер даёт невнятные ошибки.
func stepError(ctx context.Context, stage string, err error) error {
	if ctx.Err() != nil {
		return apperrors.NewSessionError(stage, fmt.Errorf("%w (%v)", context.Cause(ctx), err))
	}
	return apperrors.NewSessionError(stage, err)
}
