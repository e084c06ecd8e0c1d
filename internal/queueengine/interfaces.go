package queueengine

import (
	"context"

	"audioassistant/internal/audio"
	"audioassistant/internal/model"
	"audioassistant/internal/player"
)

// PlayerGateway is the subset of *player.Gateway the queue engine drives.
// Declared here, rather than depended on concretely, so tests can swap in a
// scripted fake instead of dialing a real daemon.
type PlayerGateway interface {
	LoadQueue(ctx context.Context, absolutePaths []string) (skipped []string, err error)
	CurrentTrack(ctx context.Context) (*player.Track, error)
	Toggle(ctx context.Context) error
	Previous(ctx context.Context) error
	Next(ctx context.Context) error
	SeekForward(ctx context.Context, dt float64) error
	SeekBackward(ctx context.Context, dt float64) error
	SeekTo(ctx context.Context, position float64) error
	StutterForward(ctx context.Context) error
	StutterBackward(ctx context.Context) error
	VolumeUp(ctx context.Context, step int) error
	VolumeDown(ctx context.Context, step int) error
	Repeat(ctx context.Context, on bool) error
	Single(ctx context.Context, on bool) error
}

// AudioPipeline is the subset of *audio.Pipeline the queue engine drives.
type AudioPipeline interface {
	StartCapture(sink, outputPath string) error
	StopCapture() error
	PlanCut(extractPath string, extractLength, clozeStart, clozeEnd float64, itemID string) (*audio.CutJob, error)
	RunCut(ctx context.Context, job *audio.CutJob, done func(*audio.CutJob, error))
}

// ContentStore is the subset of *store.Store the queue engine drives.
type ContentStore interface {
	TopicsOutstanding() ([]*model.Topic, error)
	GetTopic(id string) (*model.Topic, error)
	FindTopicByPath(path string) (*model.Topic, error)

	ExtractsOutstanding() ([]*model.Extract, error)
	ExtractsByTopic(topicID string) ([]*model.Extract, error)
	GetExtract(id string) (*model.Extract, error)
	FindExtractByPath(path string) (*model.Extract, error)
	CreateExtract(e *model.Extract) (*model.Extract, error)
	StopExtractRecording(id string, endstamp float64) error

	ItemsOutstanding() ([]*model.Item, error)
	ItemsByExtract(extractID string) ([]*model.Item, error)
	GetItem(id string) (*model.Item, error)
	FindItemByQuestionPath(path string) (*model.Item, error)
	CreateItem(it *model.Item) (*model.Item, error)
	StopItemClozing(id string, clozeEnd float64) error
	SetItemMediaPaths(id, questionPath, answerPath string) error

	SetTopicArchived(id string, archived bool) error
	SetExtractArchived(id string, archived bool) error
	SetItemArchived(id string, archived bool) error
	SetExtractToExport(id string, toExport bool) error
}
