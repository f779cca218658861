package recalc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/huuly01092003/Smart-bi/internal/model"
)

// Change 路线明细单元格修改；值为绝对值，重复提交结果相同
type Change struct {
	RowKey   string      `json:"rowKey"`
	CustCode string      `json:"Mã khách hàng,omitempty"`
	Column   string      `json:"column"`
	NewValue model.Value `json:"new_value"`
}

// key 行标识，兼容按 Mã khách hàng 提交的旧格式
func (c Change) key() string {
	if k := strings.TrimSpace(c.RowKey); k != "" {
		return k
	}
	return strings.TrimSpace(c.CustCode)
}

// Request 重算请求
type Request struct {
	MasterParams map[string]float64 `json:"master_params,omitempty"`
	Changes      []Change           `json:"chi_tiet_changes,omitempty"`
}

// Empty 请求不包含任何修改
func (r Request) Empty() bool {
	return len(r.MasterParams) == 0 && len(r.Changes) == 0
}

// Result 重算结果
type Result struct {
	Workbook *model.Workbook
	Updated  []string // 被修改的行标识（去重，按提交顺序）
}

// EditableColumns 路线明细可编辑列
var EditableColumns = []string{model.ColFreqSplit}

// Engine 重算引擎
type Engine struct {
	validate *validator.Validate
}

// NewEngine 创建重算引擎
func NewEngine() *Engine {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return &Engine{validate: v}
}

// ValidateMaster 校验主参数（非负，下限不超过上限，阈值递增）
func (e *Engine) ValidateMaster(p model.MasterParams) error {
	if err := e.validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %s %s", model.ErrInvalidChange, fe.Field(), fe.Tag(), fe.Param())
		}
		return fmt.Errorf("%w: %v", model.ErrInvalidChange, err)
	}
	return nil
}

// Apply 在工作簿副本上应用修改并重算；先校验全部修改，任一失败则不产生任何结果。
// ctx 在各阶段之间检查，超时的重算不会返回工作簿。
func (e *Engine) Apply(ctx context.Context, wb *model.Workbook, req Request) (*Result, error) {
	if wb == nil {
		return nil, model.ErrSheetNotLoaded
	}

	params := wb.Master
	for key, value := range req.MasterParams {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return nil, fmt.Errorf("%w: %s is not a number", model.ErrInvalidChange, key)
		}
		if !params.Set(key, value) {
			return nil, fmt.Errorf("%w: unknown master parameter %q", model.ErrInvalidChange, key)
		}
	}
	if err := e.ValidateMaster(params); err != nil {
		return nil, err
	}

	var detail *model.Dataset
	if len(req.Changes) > 0 {
		ds, err := wb.Dataset(model.SheetRouteDetail)
		if err != nil {
			return nil, fmt.Errorf("failed to apply changes: %w", err)
		}
		detail = ds
	}
	targets := make([][]int, len(req.Changes))
	columns := make([]string, len(req.Changes))
	for i, c := range req.Changes {
		key := c.key()
		if key == "" {
			return nil, fmt.Errorf("%w: change %d has no row key", model.ErrInvalidChange, i)
		}
		col, err := editableColumn(c.Column)
		if err != nil {
			return nil, err
		}
		if !ValidFrequency(c.NewValue) {
			return nil, fmt.Errorf("%w: %q is not a frequency", model.ErrInvalidChange, c.NewValue.String())
		}
		idx := detail.FindRows(key)
		if len(idx) == 0 {
			return nil, fmt.Errorf("%w: row %q not found", model.ErrInvalidChange, key)
		}
		targets[i] = idx
		columns[i] = col
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("recalculation aborted: %w", err)
	}

	next := wb.Clone()
	next.Master = params
	var updated []string
	seen := make(map[string]bool)
	if len(req.Changes) > 0 {
		ds := next.Datasets[model.SheetRouteDetail]
		for i, c := range req.Changes {
			// 键重复时所有匹配行一起修改
			for _, idx := range targets[i] {
				ds.Rows[idx].Set(columns[i], c.NewValue)
			}
			if k := ds.Rows[targets[i][0]].Key(); !seen[k] {
				seen[k] = true
				updated = append(updated, k)
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("recalculation aborted: %w", err)
	}
	Refresh(next)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("recalculation aborted: %w", err)
	}
	return &Result{Workbook: next, Updated: updated}, nil
}

// editableColumn 规范化列名并确认可编辑；未指定列时默认为 Freq_Chia
func editableColumn(column string) (string, error) {
	if strings.TrimSpace(column) == "" {
		return model.ColFreqSplit, nil
	}
	col := model.CanonicalColumn(model.SheetRouteDetail, column)
	for _, c := range EditableColumns {
		if c == col {
			return col, nil
		}
	}
	return "", fmt.Errorf("%w: column %q is not editable", model.ErrInvalidChange, column)
}
