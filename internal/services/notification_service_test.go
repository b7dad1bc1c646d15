package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"roster-sync/internal/dto"
	"roster-sync/pkg/telegram"
)

type recordingTelegram struct {
	chatID int64
	text   string
}

func (r *recordingTelegram) SendMessageEx(ctx context.Context, chatID int64, text string, options ...telegram.MessageOption) error {
	r.chatID = chatID
	r.text = text
	return nil
}

func TestNotifySyncFailed(t *testing.T) {
	tg := &recordingTelegram{}
	svc := NewTelegramNotificationService(tg, 42, zap.NewNop())

	report := dto.SyncReport{
		RunID:   "7f1c-run",
		Trigger: dto.TriggerSchedule,
		Stage:   "credentials",
		Error:   "selector #email not found.",
	}
	require.NoError(t, svc.NotifySyncFailed(context.Background(), report))

	assert.Equal(t, int64(42), tg.chatID)
	assert.Contains(t, tg.text, "credentials")
	assert.Contains(t, tg.text, `7f1c\-run`)
	assert.Contains(t, tg.text, `\#email not found\.`)
}
