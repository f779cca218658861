package exporter

// ProgressEvent 导出进度：已写完 Step/Steps 个工作表，Stage 为刚写完的工作表名
type ProgressEvent struct {
	Percent int    `json:"percent"`
	Stage   string `json:"stage"`
	Step    int    `json:"step"`
	Steps   int    `json:"steps"`
}

// progress 按工作表计步；未设置回调时不做任何事
type progress struct {
	notify func(ProgressEvent)
	steps  int
	done   int
}

func newProgress(notify func(ProgressEvent), steps int) *progress {
	if steps < 1 {
		steps = 1
	}
	return &progress{notify: notify, steps: steps}
}

// advance 记录一个工作表写完；最后一步固定为 100
func (p *progress) advance(stage string) {
	if p.done < p.steps {
		p.done++
	}
	if p.notify == nil {
		return
	}
	percent := 100
	if p.done < p.steps {
		percent = p.done * 100 / p.steps
	}
	p.notify(ProgressEvent{Percent: percent, Stage: stage, Step: p.done, Steps: p.steps})
}
