package main

import (
	"io"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/xhad/pdfvec/pkg/pipeline"
)

func getProgressBar(w io.Writer, total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("items"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

var stageDescriptions = map[pipeline.Stage]string{
	pipeline.StageExtract: "📄 Extracting PDFs...",
	pipeline.StageEmbed:   "💾 Embedding chunks...",
}

// progressReporter draws one bar per pipeline stage.
type progressReporter struct {
	w    io.Writer
	bars map[pipeline.Stage]*progressbar.ProgressBar
}

func newProgressReporter(w io.Writer) *progressReporter {
	return &progressReporter{w: w, bars: make(map[pipeline.Stage]*progressbar.ProgressBar)}
}

func (r *progressReporter) report(stage pipeline.Stage, done, total int) {
	bar, ok := r.bars[stage]
	if !ok {
		bar = getProgressBar(r.w, total, stageDescriptions[stage])
		r.bars[stage] = bar
	}

	_ = bar.Set(done)
	if done >= total {
		_ = bar.Finish()
		io.WriteString(r.w, "\n")
	}
}
