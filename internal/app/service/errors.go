package service

import (
	"errors"
	"fmt"

	"github.com/jose-valero/activity-rooms-bot/internal/domain"
)

var (
	ErrValidation       = domain.ErrValidation
	ErrNotARoom         = errors.New("channel is not an active voice room")
	ErrNotOwner         = errors.New("member is not the room owner")
	ErrNotOriginalOwner = errors.New("member is not the original room owner")
	ErrAlreadyOwner     = errors.New("member already owns the room")
	ErrNotAllowed       = errors.New("action not allowed")
)

// TaskError es el fallo tipado de un job recurrente; quien lo recibe cancela el job.
type TaskError struct {
	Task    string
	Payload domain.VoiceJobPayload
	Message string
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s (guild=%s member=%s): %s", e.Task, e.Payload.GuildID, e.Payload.MemberID, e.Message)
}

func taskFailure(p domain.VoiceJobPayload, msg string) *TaskError {
	return &TaskError{Task: domain.VoiceJobName, Payload: p, Message: msg}
}
