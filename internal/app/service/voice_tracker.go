package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/jose-valero/activity-rooms-bot/internal/domain"
)

// MinVoiceInterval evita @every 0s si el guild no configuró cooldown.
const MinVoiceInterval = time.Second

// VoiceTracker mantiene un job recurrente por miembro conectado a voz.
type VoiceTracker struct {
	jobs JobScheduler
	log  *zap.Logger
}

func NewVoiceTracker(jobs JobScheduler, log *zap.Logger) *VoiceTracker {
	return &VoiceTracker{jobs: jobs, log: log.Named("tracker")}
}

func voiceInterval(act domain.ActivitySettings) time.Duration {
	if d := act.CooldownDuration(); d > 0 {
		return d
	}
	return MinVoiceInterval
}

// Reconcile deja el registro de jobs acorde a la transición de voz.
func (t *VoiceTracker) Reconcile(ctx context.Context, settings *domain.GuildSettings, ev VoiceTransition) error {
	key := domain.VoiceJobKey(ev.GuildID, ev.MemberID)
	act := settings.VoiceActivity

	if !act.Enabled {
		return t.jobs.Cancel(ctx, key)
	}
	if settings.IsTemplate(ev.CurChannelID) {
		// el miembro va a ser movido a su room; esa transición crea el job
		return nil
	}
	if ev.CurChannelID == "" {
		return t.jobs.Cancel(ctx, key)
	}

	jobs, err := t.jobs.List(ctx)
	if err != nil {
		return err
	}
	var current *domain.RecurringJob
	for i := range jobs {
		j := jobs[i]
		if j.Payload.GuildID != ev.GuildID || j.Payload.MemberID != ev.MemberID {
			continue
		}
		if j.Key == key && current == nil {
			current = &jobs[i]
			continue
		}
		// duplicado: sobra
		if err := t.jobs.Cancel(ctx, j.Key); err != nil {
			t.log.Warn("cancel duplicate job", zap.String("key", j.Key), zap.Error(err))
		}
	}

	payload := domain.VoiceJobPayload{GuildID: ev.GuildID, ChannelID: ev.CurChannelID, MemberID: ev.MemberID}
	interval := voiceInterval(act)

	switch {
	case current == nil:
		return t.jobs.CreateRecurring(ctx, domain.VoiceJobName, payload, interval, key)
	case current.Interval() != interval:
		// el cooldown cambió desde que se creó el job
		if err := t.jobs.Cancel(ctx, key); err != nil {
			return err
		}
		return t.jobs.CreateRecurring(ctx, domain.VoiceJobName, payload, interval, key)
	case current.Payload != payload:
		return t.jobs.UpdatePayload(ctx, key, payload)
	}
	return nil
}

// HandleTaskFailure cancela el job del miembro si err es un *TaskError.
func (t *VoiceTracker) HandleTaskFailure(ctx context.Context, err error) bool {
	var te *TaskError
	if !errors.As(err, &te) {
		return false
	}
	key := domain.VoiceJobKey(te.Payload.GuildID, te.Payload.MemberID)
	if cerr := t.jobs.Cancel(ctx, key); cerr != nil {
		t.log.Warn("cancel failed job", zap.String("key", key), zap.Error(cerr))
		return true
	}
	t.log.Info("job cancelled", zap.String("key", key), zap.String("reason", te.Message))
	return true
}
