// Package audit records one event per successful mutating operation.
package audit

import (
	"context"
	"errors"
	"time"

	"github.com/S1riyS/drive-core/server/internal/models"
	"github.com/S1riyS/drive-core/server/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Verbs used by the drive service.
const (
	VerbCreateFolder   = "create_folder"
	VerbUpload         = "upload"
	VerbRename         = "rename"
	VerbMove           = "move"
	VerbStar           = "star"
	VerbUnstar         = "unstar"
	VerbTrash          = "trash"
	VerbRestore        = "restore"
	VerbDelete         = "delete"
	VerbReplaceContent = "replace_content"
	VerbRestoreVersion = "restore_version"
	VerbShare          = "share"
	VerbUpdateShare    = "update_share"
	VerbRevokeShare    = "revoke_share"
	VerbGenerateLink   = "generate_link"
	VerbComment        = "comment"
)

type Event struct {
	ActorID string
	FileID  string
	Verb    string
	Detail  string
	At      time.Time
}

type Sink interface {
	Record(ctx context.Context, event Event) error
}

// ZerologSink writes events to a dedicated zerolog stream.
type ZerologSink struct {
	logger zerolog.Logger
}

func NewZerologSink(logger zerolog.Logger) *ZerologSink {
	return &ZerologSink{logger: logger}
}

func (s *ZerologSink) Record(_ context.Context, e Event) error {
	s.logger.Info().
		Str("event_type", "drive").
		Str("actor_id", e.ActorID).
		Str("file_id", e.FileID).
		Str("verb", e.Verb).
		Str("detail", e.Detail).
		Time("at", e.At).
		Msg("Drive event")
	return nil
}

// RepositorySink persists events as activity records.
type RepositorySink struct {
	repo repository.ActivityRepository
}

func NewRepositorySink(repo repository.ActivityRepository) *RepositorySink {
	return &RepositorySink{repo: repo}
}

func (s *RepositorySink) Record(ctx context.Context, e Event) error {
	return s.repo.Create(ctx, &models.Activity{
		ID:        uuid.NewString(),
		ActorID:   e.ActorID,
		FileID:    e.FileID,
		Verb:      e.Verb,
		Detail:    e.Detail,
		CreatedAt: e.At,
	})
}

type multiSink []Sink

// Multi fans an event out to every sink and joins their errors.
func Multi(sinks ...Sink) Sink {
	return multiSink(sinks)
}

func (m multiSink) Record(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type nopSink struct{}

func Nop() Sink {
	return nopSink{}
}

func (nopSink) Record(context.Context, Event) error {
	return nil
}
