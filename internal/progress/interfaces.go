package progress

import (
	"context"

	"audioassistant/internal/model"
	"audioassistant/internal/player"
	"audioassistant/internal/store"
)

// PlayerGateway is the slice of the Player Gateway the sampler needs.
type PlayerGateway interface {
	CurrentTrack(ctx context.Context) (*player.Track, error)
	Volume(ctx context.Context) (int, error)
}

// ContentStore is the slice of the Content Store the sampler needs.
type ContentStore interface {
	FindTopicByPath(path string) (*model.Topic, error)
	UpdateTopicTimestamp(id string, elapsed float64) error
	RecordPlaybackObservation(table store.SubjectKind, subjectID string, kind model.EventKind, position float64, elapsedSinceLast float64) error
}
