package audio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCutPathsAreDeterministic(t *testing.T) {
	question, answer := CutPaths("/media/extracts/topic-171234.wav", "item-1")
	assert.Equal(t, "/media/extracts/topic-171234-QUESTION-item-1.wav", question)
	assert.Equal(t, "/media/extracts/topic-171234-ANSWER-item-1.wav", answer)
}

func TestPlanCutRejectsInvertedSpan(t *testing.T) {
	p := New("parecord", "ffmpeg", ".wav")
	path := filepath.Join(t.TempDir(), "extract.wav")
	require.NoError(t, os.WriteFile(path, []byte("fake"), 0o644))

	_, err := p.PlanCut(path, 60, 30, 10, "item-1")
	assert.ErrorIs(t, err, ErrCut)
}

func TestPlanCutRejectsSpanBeyondLength(t *testing.T) {
	p := New("parecord", "ffmpeg", ".wav")
	path := filepath.Join(t.TempDir(), "extract.wav")
	require.NoError(t, os.WriteFile(path, []byte("fake"), 0o644))

	_, err := p.PlanCut(path, 60, 10, 70, "item-1")
	assert.ErrorIs(t, err, ErrCut)
}

func TestPlanCutRejectsMissingFile(t *testing.T) {
	p := New("parecord", "ffmpeg", ".wav")
	_, err := p.PlanCut(filepath.Join(t.TempDir(), "missing.wav"), 60, 10, 20, "item-1")
	assert.ErrorIs(t, err, ErrCut)
}

func TestPlanCutSucceeds(t *testing.T) {
	p := New("parecord", "ffmpeg", ".wav")
	path := filepath.Join(t.TempDir(), "extract.wav")
	require.NoError(t, os.WriteFile(path, []byte("fake"), 0o644))

	job, err := p.PlanCut(path, 60, 10, 20, "item-1")
	require.NoError(t, err)
	assert.Equal(t, 10.0, job.ClozeStart)
	assert.Equal(t, 20.0, job.ClozeEnd)
	assert.Contains(t, job.QuestionPath, "QUESTION-item-1")
	assert.Contains(t, job.AnswerPath, "ANSWER-item-1")
}
