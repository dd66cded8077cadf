package cli

import (
	"github.com/pterm/pterm"

	"github.com/nerdneilsfield/go-pdf-translator/internal/pipeline"
)

// stageTitles 各阶段进度条标题
var stageTitles = map[pipeline.Stage]string{
	pipeline.StageParsing:     "解析进度",
	pipeline.StageTranslating: "翻译进度",
	pipeline.StageComposing:   "导出进度",
}

// progressSink 把流水线进度映射到 pterm 进度条
type progressSink struct {
	bar   *pterm.ProgressbarPrinter
	stage pipeline.Stage
}

func newProgressSink() *progressSink {
	return &progressSink{}
}

// Report 实现 pipeline.ProgressSink
func (s *progressSink) Report(p pipeline.Progress) {
	title, ok := stageTitles[p.Stage]
	if !ok || p.Total == 0 {
		if p.Stage == pipeline.StageSuccess || p.Stage == pipeline.StageFailed || p.Stage == pipeline.StageCanceled {
			s.Stop()
		}
		return
	}

	if s.bar == nil || s.stage != p.Stage {
		s.Stop()
		bar, err := pterm.DefaultProgressbar.
			WithTotal(p.Total).
			WithTitle(title).
			WithRemoveWhenDone(true).
			Start()
		if err != nil {
			return
		}
		s.bar = bar
		s.stage = p.Stage
	}
	if delta := p.Done - s.bar.Current; delta > 0 {
		s.bar.Add(delta)
	}
}

// Stop 结束当前进度条
func (s *progressSink) Stop() {
	if s.bar != nil {
		_, _ = s.bar.Stop()
		s.bar = nil
	}
}
