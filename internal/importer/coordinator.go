package importer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/huuly01092003/Smart-bi/internal/metrics"
	"github.com/huuly01092003/Smart-bi/internal/model"
	"github.com/huuly01092003/Smart-bi/internal/parser"
	"github.com/huuly01092003/Smart-bi/internal/service/recalc"
	"github.com/huuly01092003/Smart-bi/internal/store"
)

// 进度事件类型
const (
	EventStart      = "start"
	EventSheetStart = "sheet_start"
	EventSheetDone  = "sheet_done"
	EventWarning    = "warning"
	EventError      = "error"
	EventDone       = "done"
)

// Coordinator 导入协调器：解析上传文件，生成全新工作簿并整体提交
type Coordinator struct {
	store      *store.Store // 可为 nil（不记录审计日志）
	recognizer *parser.SheetRecognizer
	engine     *recalc.Engine
	thresholds recalc.Thresholds
}

// NewCoordinator 创建导入协调器
func NewCoordinator(st *store.Store, thresholds recalc.Thresholds) *Coordinator {
	return &Coordinator{
		store:      st,
		recognizer: parser.NewSheetRecognizer(),
		engine:     recalc.NewEngine(),
		thresholds: thresholds,
	}
}

// Input 一个上传文件
type Input struct {
	Filename string
	Hint     model.SheetType // 表单字段指定的工作表类型（可为空）
	Data     []byte
}

// CommitFunc 提交新工作簿，返回新版本号
type CommitFunc func(ctx context.Context, wb *model.Workbook) (uint64, error)

// ImportOptions 导入选项
type ImportOptions struct {
	SessionID string
	Files     []Input
	Master    *model.MasterParams // 上传未包含主参数表时使用（为空则用默认值）
	Commit    CommitFunc          // 为空时只解析不提交
}

// ProgressEvent 进度事件
type ProgressEvent struct {
	Type      string      `json:"type"`           // start/sheet_start/sheet_done/warning/error/done
	Message   string      `json:"message"`        // 事件消息
	Data      interface{} `json:"data,omitempty"` // 附加数据
	Timestamp time.Time   `json:"timestamp"`      // 时间戳
	Err       error       `json:"-"`              // error 事件的原始错误
}

// Outcome 导入结果（done 事件数据）
type Outcome struct {
	ImportID string                 `json:"importId"`
	Version  uint64                 `json:"version"`
	Sheets   []model.SheetType      `json:"sheets"`
	Reports  []*parser.ImportReport `json:"reports"`
	Warnings []string               `json:"warnings,omitempty"`
	Workbook *model.Workbook        `json:"-"`
}

// importContext 单次导入的状态
type importContext struct {
	ctx      context.Context
	opts     ImportOptions
	ch       chan ProgressEvent
	workbook *model.Workbook
	outcome  *Outcome
	master   bool
	logIDs   []int64
}

// Import 执行导入，返回进度通道；通道在 done 或 error 事件后关闭
func (c *Coordinator) Import(ctx context.Context, opts ImportOptions) <-chan ProgressEvent {
	progressChan := make(chan ProgressEvent, 100)

	go func() {
		defer close(progressChan)
		c.doImport(ctx, opts, progressChan)
	}()

	return progressChan
}

// Run 同步执行导入并返回结果（丢弃中间事件）
func (c *Coordinator) Run(ctx context.Context, opts ImportOptions) (*Outcome, []ProgressEvent, error) {
	var events []ProgressEvent
	for evt := range c.Import(ctx, opts) {
		events = append(events, evt)
		switch evt.Type {
		case EventError:
			return nil, events, evt.Err
		case EventDone:
			out, _ := evt.Data.(*Outcome)
			return out, events, nil
		}
	}
	return nil, events, errors.New("import finished without result")
}

// doImport 执行导入逻辑
func (c *Coordinator) doImport(ctx context.Context, opts ImportOptions, ch chan ProgressEvent) {
	start := time.Now()
	ic := &importContext{
		ctx:      ctx,
		opts:     opts,
		ch:       ch,
		workbook: model.NewWorkbook(),
		outcome:  &Outcome{ImportID: uuid.NewString()},
	}
	if opts.Master != nil {
		ic.workbook.Master = *opts.Master
	}

	names := make([]string, len(opts.Files))
	for i, f := range opts.Files {
		names[i] = f.Filename
	}
	c.sendProgress(ic, ProgressEvent{
		Type:    EventStart,
		Message: fmt.Sprintf("开始导入 %d 个文件", len(opts.Files)),
		Data: map[string]interface{}{
			"importId": ic.outcome.ImportID,
			"files":    names,
		},
	})

	rows, err := c.run(ic)
	metrics.RecordUpload(rows, time.Since(start), err)
	if err != nil {
		c.finishLogs(ic, store.ImportFailed, err.Error())
		log.Warn().Err(err).Str("session", opts.SessionID).Str("import", ic.outcome.ImportID).Msg("import failed")
		c.sendProgress(ic, ProgressEvent{Type: EventError, Message: err.Error(), Err: err})
		return
	}

	status := store.ImportSuccess
	if len(ic.outcome.Warnings) > 0 {
		status = store.ImportPartial
	}
	c.finishLogs(ic, status, "")
	log.Info().
		Str("session", opts.SessionID).
		Str("import", ic.outcome.ImportID).
		Uint64("version", ic.outcome.Version).
		Int("rows", rows).
		Dur("duration", time.Since(start)).
		Msg("import committed")

	c.sendProgress(ic, ProgressEvent{
		Type:    EventDone,
		Message: "导入完成",
		Data:    ic.outcome,
	})
}

// run 解析全部文件、计算派生数据并提交；任何输入错误都不提交
func (c *Coordinator) run(ic *importContext) (int, error) {
	if len(ic.opts.Files) == 0 {
		return 0, fmt.Errorf("%w: no files uploaded", model.ErrInvalidUpload)
	}

	for _, f := range ic.opts.Files {
		if err := c.processFile(ic, f); err != nil {
			return 0, err
		}
		if err := ic.ctx.Err(); err != nil {
			return 0, fmt.Errorf("import aborted: %w", err)
		}
	}

	wb := ic.workbook
	ic.outcome.Sheets = wb.Sheets()
	if len(ic.outcome.Sheets) == 0 {
		return 0, fmt.Errorf("%w: no recognizable sheets in upload", model.ErrInvalidUpload)
	}
	if !ic.master {
		c.warn(ic, "未上传主参数表，使用默认主参数")
	}
	if err := c.engine.ValidateMaster(wb.Master); err != nil {
		c.warn(ic, fmt.Sprintf("主参数不合理: %v", err))
	}

	if ds, err := wb.Dataset(model.SheetRevenue); err == nil {
		recalc.EnrichRevenue(ds, c.thresholds)
	}
	recalc.Refresh(wb)
	wb.LoadedAt = time.Now()

	if err := ic.ctx.Err(); err != nil {
		return 0, fmt.Errorf("import aborted: %w", err)
	}

	if ic.opts.Commit != nil {
		v, err := ic.opts.Commit(ic.ctx, wb)
		if err != nil {
			return 0, fmt.Errorf("failed to commit workbook: %w", err)
		}
		ic.outcome.Version = v
	}
	ic.outcome.Workbook = wb

	rows := 0
	for _, t := range ic.outcome.Sheets {
		ds, _ := wb.Dataset(t)
		rows += len(ds.Rows)
	}
	return rows, nil
}

// processFile 处理单个上传文件
func (c *Coordinator) processFile(ic *importContext, f Input) error {
	fileStart := time.Now()
	report := &parser.ImportReport{Filename: f.Filename, Sheets: []parser.ParseResult{}}
	ic.outcome.Reports = append(ic.outcome.Reports, report)
	ic.workbook.Files = append(ic.workbook.Files, f.Filename)

	logID := c.createLog(ic, f)
	ic.logIDs = append(ic.logIDs, logID)

	grids, err := parser.ReadGrids(f.Filename, bytes.NewReader(f.Data))
	if err != nil {
		return fmt.Errorf("%s: %w", f.Filename, err)
	}
	report.TotalSheets = len(grids)

	for _, g := range grids {
		result, err := c.processSheet(ic, f, g, len(grids), logID)
		recordSheetResult(report, result)
		if err != nil {
			return fmt.Errorf("%s / %s: %w", f.Filename, g.Name, err)
		}
	}
	report.Duration = time.Since(fileStart)
	return nil
}

// processSheet 识别并解析单个网格
func (c *Coordinator) processSheet(ic *importContext, f Input, g parser.Grid, gridCount int, logID int64) (parser.ParseResult, error) {
	sheetStart := time.Now()
	c.sendProgress(ic, ProgressEvent{
		Type:    EventSheetStart,
		Message: fmt.Sprintf("正在解析: %s", g.Name),
		Data: map[string]string{
			"file":       f.Filename,
			"sheet_name": g.Name,
		},
	})

	recognition := c.recognizer.Recognize(g.Name, g)
	if f.Hint != "" && f.Hint != model.SheetUnknown && gridCount == 1 {
		recognition = parser.SheetRecognitionResult{SheetName: g.Name, SheetType: f.Hint, Confidence: 1, ByName: true}
	}

	result := parser.ParseResult{SheetName: g.Name, SheetType: recognition.SheetType}
	meta := store.SheetMeta{
		ImportLogID: logID,
		SourceFile:  f.Filename,
		SheetName:   g.Name,
		SheetType:   string(recognition.SheetType),
		Confidence:  recognition.Confidence,
		ByName:      recognition.ByName,
		TotalRows:   len(g.Rows),
	}

	var err error
	switch t := recognition.SheetType; {
	case t == model.SheetUnknown:
		result.Status = parser.StatusSkipped
		result.Errors = []string{"无法识别 Sheet 类型"}
		c.warn(ic, fmt.Sprintf("无法识别 Sheet: %s (置信度 %.2f)，已跳过", g.Name, recognition.Confidence))

	case t == model.SheetMaster:
		var (
			params model.MasterParams
			found  []string
		)
		params, found, err = parser.ParseMaster(g)
		if err != nil {
			result.Status = parser.StatusError
			result.Errors = []string{err.Error()}
			break
		}
		ic.workbook.Master = params
		ic.master = true
		result.Status = parser.StatusImported
		result.ImportedRows = len(found)
		meta.Columns = found

	default:
		var ds *model.Dataset
		ds, result, err = parser.NewSheetParser(f.Filename).Parse(g, t)
		if err != nil {
			break
		}
		if _, dup := ic.workbook.Datasets[t]; dup {
			c.warn(ic, fmt.Sprintf("%s 重复出现，使用 %s / %s", t.Title(), f.Filename, g.Name))
		}
		ic.workbook.Datasets[t] = ds
		meta.Columns = ds.Columns
		if result.ErrorRows > 0 {
			c.warn(ic, fmt.Sprintf("%s: %d 行存在无法识别的数值，按 0 处理", g.Name, result.ErrorRows))
		}
	}
	result.Duration = time.Since(sheetStart)

	meta.Status = result.Status
	meta.ImportedRows = result.ImportedRows
	if err != nil {
		meta.ErrorMessage = err.Error()
	}
	c.insertMeta(ic, meta)

	if err == nil {
		c.sendProgress(ic, ProgressEvent{
			Type:    EventSheetDone,
			Message: fmt.Sprintf("Sheet \"%s\" 识别为 %s (置信度 %.2f)", g.Name, recognition.SheetType, recognition.Confidence),
			Data:    result,
		})
	}
	return result, err
}

// recordSheetResult 记录 Sheet 处理结果
func recordSheetResult(report *parser.ImportReport, result parser.ParseResult) {
	report.Sheets = append(report.Sheets, result)

	switch result.Status {
	case parser.StatusImported:
		report.ImportedSheets++
		report.ImportedRows += result.ImportedRows
	case parser.StatusSkipped:
		report.SkippedSheets++
	}
	report.ErrorRows += result.ErrorRows
	report.TotalRows += result.ImportedRows
}

// warn 记录警告并发送 warning 事件
func (c *Coordinator) warn(ic *importContext, msg string) {
	ic.outcome.Warnings = append(ic.outcome.Warnings, msg)
	c.sendProgress(ic, ProgressEvent{Type: EventWarning, Message: msg})
}

// sendProgress 发送进度事件；中间事件在通道已满时丢弃，结束事件阻塞直到送达或 ctx 结束
func (c *Coordinator) sendProgress(ic *importContext, event ProgressEvent) {
	event.Timestamp = time.Now()
	if event.Type == EventDone || event.Type == EventError {
		select {
		case ic.ch <- event:
		case <-ic.ctx.Done():
			// 调用方已离开，结束事件仍尽量送达缓冲区
			select {
			case ic.ch <- event:
			default:
			}
		}
		return
	}
	select {
	case ic.ch <- event:
	default:
	}
}

// createLog 创建审计日志（失败只记录日志，不影响导入）
func (c *Coordinator) createLog(ic *importContext, f Input) int64 {
	if c.store == nil {
		return 0
	}
	sum := sha256.Sum256(f.Data)
	id, err := c.store.CreateImportLog(context.WithoutCancel(ic.ctx), ic.outcome.ImportID, ic.opts.SessionID,
		f.Filename, int64(len(f.Data)), hex.EncodeToString(sum[:]))
	if err != nil {
		log.Error().Err(err).Str("file", f.Filename).Msg("failed to create import log")
		return 0
	}
	return id
}

func (c *Coordinator) insertMeta(ic *importContext, meta store.SheetMeta) {
	if c.store == nil || meta.ImportLogID == 0 {
		return
	}
	if err := c.store.InsertSheetMeta(context.WithoutCancel(ic.ctx), meta); err != nil {
		log.Error().Err(err).Str("sheet", meta.SheetName).Msg("failed to insert sheet meta")
	}
}

// finishLogs 完成本次导入涉及的全部审计日志
func (c *Coordinator) finishLogs(ic *importContext, status, message string) {
	if c.store == nil {
		return
	}
	for i, id := range ic.logIDs {
		if id == 0 {
			continue
		}
		var stats store.ImportStats
		if i < len(ic.outcome.Reports) {
			r := ic.outcome.Reports[i]
			stats = store.ImportStats{
				TotalSheets:    r.TotalSheets,
				ImportedSheets: r.ImportedSheets,
				SkippedSheets:  r.SkippedSheets,
				TotalRows:      r.TotalRows,
				ImportedRows:   r.ImportedRows,
				ErrorRows:      r.ErrorRows,
			}
		}
		if err := c.store.UpdateImportLog(context.WithoutCancel(ic.ctx), id, stats, status, message); err != nil {
			log.Error().Err(err).Int64("id", id).Msg("failed to update import log")
		}
	}
}

// HintFromField 由表单字段名推断工作表类型（master/chitiet/doanhso/tuyenvn/dskh）
func HintFromField(field string) model.SheetType {
	switch strings.ToLower(strings.TrimSpace(field)) {
	case "master":
		return model.SheetMaster
	case "", "files", "file":
		return ""
	}
	if t, ok := model.ParseSheetType(field); ok {
		return t
	}
	return ""
}
