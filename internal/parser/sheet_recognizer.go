package parser

import (
	"strings"

	"github.com/huuly01092003/Smart-bi/internal/model"
)

// minConfidence 按表头识别的最低置信度
const minConfidence = 0.5

// keyFields 各工作表的关键字段（FoldKey 后的正则）
var keyFields = map[model.SheetType][]string{
	model.SheetRevenue: {
		`^custcode$|^ma khach hang$`,
		`^t-3$`,
		`^t-2$`,
		`^t-1$`,
		`^t$`,
	},
	model.SheetCustomers: {
		`ma khach hang`,
		`ten khach hang`,
		`^trang thai$`,
		`quan.?huyen`,
		`^kenh$`,
		`phuong`,
	},
	model.SheetStaffRoutes: {
		`ma tuyen`,
		`ten nhan vien`,
		`giam sat`,
		`calls?`,
		`^t[2-7]$`,
	},
	model.SheetRouteDetail: {
		`lo trinh dms`,
		`tan suat dms`,
		`tan suat goi y`,
		`ma khach hang`,
		`kenh hang`,
		`doanh so tb`,
	},
}

// nameKeywords Sheet 名称关键词（FoldKey 后）
var nameKeywords = map[model.SheetType][]string{
	model.SheetRevenue:     {"doanh so khach hang", "doanhso"},
	model.SheetCustomers:   {"dskh", "danh sach khach hang"},
	model.SheetStaffRoutes: {"tuyen va nhan vien", "tuyenvn", "tuyen nv"},
	model.SheetRouteDetail: {"chi tiet tuyen", "chitiet"},
	model.SheetMaster:      {"master"},
}

// recognitionOrder 识别顺序（路线明细关键字包含客户字段，需优先于客户表）
var recognitionOrder = []model.SheetType{
	model.SheetRouteDetail, model.SheetRevenue, model.SheetStaffRoutes, model.SheetCustomers,
}

// SheetRecognizer Sheet 类型识别器
type SheetRecognizer struct{}

// NewSheetRecognizer 创建识别器
func NewSheetRecognizer() *SheetRecognizer {
	return &SheetRecognizer{}
}

// Recognize 识别 Sheet 类型：先按名称，再按表头关键字
func (r *SheetRecognizer) Recognize(sheetName string, g Grid) SheetRecognitionResult {
	if t, ok := r.recognizeByName(sheetName); ok {
		return SheetRecognitionResult{SheetName: sheetName, SheetType: t, Confidence: 1, ByName: true}
	}
	if r.looksLikeMaster(g) {
		return SheetRecognitionResult{SheetName: sheetName, SheetType: model.SheetMaster, Confidence: 0.8}
	}

	best := SheetRecognitionResult{SheetName: sheetName, SheetType: model.SheetUnknown}
	for _, t := range recognitionOrder {
		conf := r.headerConfidence(t, g)
		if conf > best.Confidence {
			best.SheetType = t
			best.Confidence = conf
		}
	}
	if best.Confidence < minConfidence {
		best.SheetType = model.SheetUnknown
	}
	return best
}

// recognizeByName 按名称识别（工作表名或 CSV 文件名）
func (r *SheetRecognizer) recognizeByName(name string) (model.SheetType, bool) {
	if t, ok := model.ParseSheetType(name); ok {
		return t, true
	}
	key := FoldKey(name)
	for _, t := range append(recognitionOrder, model.SheetMaster) {
		for _, kw := range nameKeywords[t] {
			if key == kw || strings.Contains(key, kw) {
				return t, true
			}
		}
	}
	return model.SheetUnknown, false
}

// headerConfidence 关键字段命中比例；候选表头行取最高值
func (r *SheetRecognizer) headerConfidence(t model.SheetType, g Grid) float64 {
	fields := keyFields[t]
	best := 0.0
	for _, headers := range candidateHeaders(t, g) {
		folded := make([]string, len(headers))
		for i, h := range headers {
			folded[i] = FoldKey(h)
		}
		matchCount := 0
		for _, field := range fields {
			for _, col := range folded {
				if MatchPattern(col, field) {
					matchCount++
					break
				}
			}
		}
		if conf := float64(matchCount) / float64(len(fields)); conf > best {
			best = conf
		}
	}
	return best
}

// looksLikeMaster 任一单元格为主参数名
func (r *SheetRecognizer) looksLikeMaster(g Grid) bool {
	keys := make(map[string]bool)
	for _, k := range model.MasterKeys() {
		keys[FoldKey(k)] = true
	}
	hits := 0
	for _, row := range g.Rows {
		for _, c := range row {
			if keys[FoldKey(c)] {
				hits++
			}
		}
	}
	return hits >= 2
}

// candidateHeaders 可能的表头行：标准表头行及其前后一行；路线明细额外尝试两行合并
func candidateHeaders(t model.SheetType, g Grid) [][]string {
	h := HeaderRow(t)
	var out [][]string
	for _, i := range []int{h, h - 1, h + 1} {
		if i >= 0 && i < len(g.Rows) {
			out = append(out, g.Rows[i])
		}
	}
	if t == model.SheetRouteDetail && h+1 < len(g.Rows) {
		out = append(out, FlattenHeaders(g.Rows[h], g.Rows[h+1]))
	}
	return out
}
