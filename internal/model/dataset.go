package model

import (
	"strconv"
	"strings"
	"time"
)

// Dataset 单个工作表的已加载数据
type Dataset struct {
	Type      SheetType `json:"type"`
	SheetName string    `json:"sheetName"`
	Source    string    `json:"source"`
	Columns   []string  `json:"columns"`
	Rows      []Row     `json:"-"`
}

// Clone 深拷贝
func (d *Dataset) Clone() *Dataset {
	if d == nil {
		return nil
	}
	out := *d
	out.Columns = append([]string(nil), d.Columns...)
	out.Rows = make([]Row, len(d.Rows))
	for i, r := range d.Rows {
		out.Rows[i] = r.Clone()
	}
	return &out
}

// EnsureColumn 追加列名（已存在则忽略）
func (d *Dataset) EnsureColumn(column string) {
	for _, c := range d.Columns {
		if c == column {
			return
		}
	}
	d.Columns = append(d.Columns, column)
}

// FindRows 按行键查找全部匹配行的下标；键重复时返回多个
func (d *Dataset) FindRows(key string) []int {
	k := strings.TrimSpace(key)
	var out []int
	for i, r := range d.Rows {
		if r.Key() == k {
			out = append(out, i)
		}
	}
	return out
}

// Records 以列顺序输出所有行
func (d *Dataset) Records(rows []Row) []Record {
	out := make([]Record, len(rows))
	for i, r := range rows {
		out[i] = r.Record(d.Columns)
	}
	return out
}

// MasterParams 主参数
type MasterParams struct {
	CallMinMonth float64 `json:"Call_Min_Thang" toml:"call_min_month" validate:"gte=0,ltefield=CallMaxMonth"`
	CallMaxMonth float64 `json:"Call_Max_Thang" toml:"call_max_month" validate:"gte=0"`
	CustMinStaff float64 `json:"KH_Min_NVBH" toml:"cust_min_staff" validate:"gte=0,ltefield=CustMaxStaff"`
	CustMaxStaff float64 `json:"KH_Max_NVBH" toml:"cust_max_staff" validate:"gte=0"`
	CustMinDay   float64 `json:"KH_Min_Ngay" toml:"cust_min_day" validate:"gte=0,ltefield=CustMaxDay"`
	CustMaxDay   float64 `json:"KH_Max_Ngay" toml:"cust_max_day" validate:"gte=0"`
	ThresholdF8  float64 `json:"DS_Nguong_F8" toml:"threshold_f8" validate:"gte=0"`
	ThresholdF4  float64 `json:"DS_Nguong_F4" toml:"threshold_f4" validate:"gte=0,ltefield=ThresholdF8"`
	ThresholdF2  float64 `json:"DS_Nguong_F2" toml:"threshold_f2" validate:"gte=0,ltefield=ThresholdF4"`
}

// DefaultMasterParams 默认主参数
func DefaultMasterParams() MasterParams {
	return MasterParams{
		CallMinMonth: 800,
		CallMaxMonth: 1200,
		CustMinStaff: 150,
		CustMaxStaff: 300,
		CustMinDay:   25,
		CustMaxDay:   50,
		ThresholdF8:  10_000_000,
		ThresholdF4:  5_000_000,
		ThresholdF2:  1_000_000,
	}
}

// masterKeys 主参数表中的参数名
var masterKeys = []string{
	"Call_Min_Thang", "Call_Max_Thang",
	"KH_Min_NVBH", "KH_Max_NVBH",
	"KH_Min_Ngay", "KH_Max_Ngay",
	"DS_Nguong_F8", "DS_Nguong_F4", "DS_Nguong_F2",
}

// MasterKeys 主参数名（按展示顺序）
func MasterKeys() []string {
	return append([]string(nil), masterKeys...)
}

func (p *MasterParams) ref(key string) *float64 {
	switch key {
	case "Call_Min_Thang":
		return &p.CallMinMonth
	case "Call_Max_Thang":
		return &p.CallMaxMonth
	case "KH_Min_NVBH":
		return &p.CustMinStaff
	case "KH_Max_NVBH":
		return &p.CustMaxStaff
	case "KH_Min_Ngay":
		return &p.CustMinDay
	case "KH_Max_Ngay":
		return &p.CustMaxDay
	case "DS_Nguong_F8":
		return &p.ThresholdF8
	case "DS_Nguong_F4":
		return &p.ThresholdF4
	case "DS_Nguong_F2":
		return &p.ThresholdF2
	}
	return nil
}

// Get 按参数名取值
func (p MasterParams) Get(key string) (float64, bool) {
	ref := p.ref(strings.TrimSpace(key))
	if ref == nil {
		return 0, false
	}
	return *ref, true
}

// Set 按参数名写值，未知参数返回 false
func (p *MasterParams) Set(key string, value float64) bool {
	ref := p.ref(strings.TrimSpace(key))
	if ref == nil {
		return false
	}
	*ref = value
	return true
}

// BalanceLoad 按 (Mã tuyến, Mã nhân viên phụ trách) 汇总的负载
type BalanceLoad struct {
	RouteCode    string  `json:"Mã tuyến"`
	StaffCode    string  `json:"Mã nhân viên phụ trách"`
	TotalCust    int     `json:"Tong_KH"`
	TotalCalls   float64 `json:"Tong_Calls"`
	TotalRevenue float64 `json:"Tong_DoanhSo"`
	CustMin      float64 `json:"KH_Min"`
	CustMax      float64 `json:"KH_Max"`
	CallMin      float64 `json:"Call_Min"`
	CallMax      float64 `json:"Call_Max"`
	CustStatus   string  `json:"Trang_Thai_KH"`
	CallStatus   string  `json:"Trang_Thai_Call"`
}

// Workbook 一次上传得到的全部数据
type Workbook struct {
	Datasets map[SheetType]*Dataset
	Master   MasterParams
	Balance  []BalanceLoad
	Version  uint64
	LoadedAt time.Time
	Files    []string
}

// NewWorkbook 创建空工作簿
func NewWorkbook() *Workbook {
	return &Workbook{
		Datasets: make(map[SheetType]*Dataset),
		Master:   DefaultMasterParams(),
	}
}

// Dataset 取工作表数据
func (w *Workbook) Dataset(t SheetType) (*Dataset, error) {
	if w == nil {
		return nil, ErrSheetNotLoaded
	}
	d, ok := w.Datasets[t]
	if !ok || d == nil {
		return nil, ErrSheetNotLoaded
	}
	return d, nil
}

// Sheets 已加载的表格类工作表（按展示顺序）
func (w *Workbook) Sheets() []SheetType {
	if w == nil {
		return nil
	}
	out := make([]SheetType, 0, len(w.Datasets))
	for _, t := range TableSheets {
		if _, ok := w.Datasets[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Clone 深拷贝（重算在副本上进行，成功后整体替换）
func (w *Workbook) Clone() *Workbook {
	if w == nil {
		return nil
	}
	out := &Workbook{
		Datasets: make(map[SheetType]*Dataset, len(w.Datasets)),
		Master:   w.Master,
		Balance:  append([]BalanceLoad(nil), w.Balance...),
		Version:  w.Version,
		LoadedAt: w.LoadedAt,
		Files:    append([]string(nil), w.Files...),
	}
	for t, d := range w.Datasets {
		out.Datasets[t] = d.Clone()
	}
	return out
}

// NormalizeFrequency 频次规范化：2 / "2" / "2.0" / "f2" / "F2" → "F2"
func NormalizeFrequency(v Value) string {
	switch v.Kind {
	case KindEmpty:
		return ""
	case KindNumber:
		return frequencyFromNumber(v.Num)
	}
	s := strings.ToUpper(strings.TrimSpace(v.Str))
	s = strings.TrimPrefix(s, "F")
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return frequencyFromNumber(f)
	}
	return strings.TrimSpace(v.Str)
}

// frequencyFromNumber 负数、NaN 与小数保留为 "F-1" / "FNaN" 等形式，由校验拒绝而非清空
func frequencyFromNumber(f float64) string {
	return "F" + FormatNumber(f)
}
