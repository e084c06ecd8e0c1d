package keymap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildKeepsOnlyActionsForMode(t *testing.T) {
	cfg := map[string]int{
		"toggle":          304,
		"start-recording": 305,
		"stop-clozing":    306, // not part of topic mode
	}

	table := Build(ModeTopic, cfg)
	assert.Equal(t, Toggle, table[304])
	assert.Equal(t, StartRecording, table[305])
	_, present := table[306]
	assert.False(t, present, "clozing-only action must not leak into the topic table")
}

func TestBuildIgnoresUnconfiguredActions(t *testing.T) {
	table := Build(ModeRecording, map[string]int{})
	assert.Empty(t, table)
}

func TestModesHaveDisjointIntent(t *testing.T) {
	cfg := map[string]int{
		"stop-recording": 1,
		"start-clozing":  2,
	}
	topic := Build(ModeTopic, cfg)
	recording := Build(ModeRecording, cfg)
	assert.NotContains(t, topic, 1)
	assert.Contains(t, recording, 1)
}
