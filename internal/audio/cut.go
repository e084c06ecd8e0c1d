package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// answerPadding is the acoustic-context expansion applied to the answer
// file on both sides of the cloze span (spec §4.3).
const answerPadding = 0.3

// CutJob describes one cloze-cut invocation.
type CutJob struct {
	ExtractPath   string
	ExtractLength float64
	ClozeStart    float64
	ClozeEnd      float64
	ItemID        string
	QuestionPath  string
	AnswerPath    string
}

// CutPaths derives the deterministic output filenames for an item cut from
// extractPath (spec §4.3: "<stem>-QUESTION-<item-id>.<ext>",
// "<stem>-ANSWER-<item-id>.<ext>", same directory, input's extension).
func CutPaths(extractPath, itemID string) (questionPath, answerPath string) {
	dir := filepath.Dir(extractPath)
	ext := filepath.Ext(extractPath)
	stem := strings.TrimSuffix(filepath.Base(extractPath), ext)
	questionPath = filepath.Join(dir, fmt.Sprintf("%s-QUESTION-%s%s", stem, itemID, ext))
	answerPath = filepath.Join(dir, fmt.Sprintf("%s-ANSWER-%s%s", stem, itemID, ext))
	return questionPath, answerPath
}

// PlanCut validates a cloze span against its parent Extract and builds the
// CutJob describing the ffmpeg invocation. Constraints (spec §4.3):
// 0 ≤ cs < ce ≤ length; the input file must exist.
func (p *Pipeline) PlanCut(extractPath string, extractLength, clozeStart, clozeEnd float64, itemID string) (*CutJob, error) {
	if clozeStart < 0 || clozeStart >= clozeEnd || clozeEnd > extractLength {
		return nil, fmt.Errorf("%w: cloze span (%.3f, %.3f) invalid for length %.3f",
			ErrCut, clozeStart, clozeEnd, extractLength)
	}
	if _, err := os.Stat(extractPath); err != nil {
		return nil, fmt.Errorf("%w: extract file missing: %v", ErrCut, err)
	}
	question, answer := CutPaths(extractPath, itemID)
	return &CutJob{
		ExtractPath:   extractPath,
		ExtractLength: extractLength,
		ClozeStart:    clozeStart,
		ClozeEnd:      clozeEnd,
		ItemID:        itemID,
		QuestionPath:  question,
		AnswerPath:    answer,
	}, nil
}

// RunCut launches the transcoder asynchronously and invokes done with the
// result once it exits (spec §4.3: "returns immediately ... updates the
// Item's paths atomically when the job completes"). On failure, done is
// called with a non-nil error and neither output file should be trusted to
// exist.
func (p *Pipeline) RunCut(ctx context.Context, job *CutJob, done func(*CutJob, error)) {
	go func() {
		err := p.runCutSync(ctx, job)
		done(job, err)
	}()
}

func (p *Pipeline) runCutSync(ctx context.Context, job *CutJob) error {
	beepLength := job.ClozeEnd - job.ClozeStart
	answerStart := job.ClozeStart - answerPadding
	if answerStart < 0 {
		answerStart = 0
	}
	answerEnd := job.ClozeEnd + answerPadding
	if answerEnd > job.ExtractLength {
		answerEnd = job.ExtractLength
	}

	filterComplex := strings.Join([]string{
		fmt.Sprintf("[0:a]atrim=0:%.3f,asetpts=PTS-STARTPTS[beg]", job.ClozeStart),
		fmt.Sprintf("[0:a]atrim=%.3f:%.3f,asetpts=PTS-STARTPTS[end]", job.ClozeEnd, job.ExtractLength),
		"[beg][1:a][end]concat=n=3:v=0:a=1[question]",
		fmt.Sprintf("[0:a]atrim=%.3f:%.3f,asetpts=PTS-STARTPTS[answer]", answerStart, answerEnd),
	}, ";")

	args := []string{
		"-y",
		"-i", job.ExtractPath,
		"-f", "lavfi",
		"-i", fmt.Sprintf("sine=frequency=1000:duration=%.3f", beepLength),
		"-filter_complex", filterComplex,
		"-map", "[question]", job.QuestionPath,
		"-map", "[answer]", job.AnswerPath,
	}

	cmd := exec.CommandContext(ctx, p.cutBin, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		slog.Error("cut failed", "item", job.ItemID, "error", err, "output", string(output))
		return fmt.Errorf("%w: %v", ErrCut, err)
	}
	slog.Info("cut complete", "item", job.ItemID, "question", job.QuestionPath, "answer", job.AnswerPath)
	return nil
}
