package model

import (
	"bytes"
	"strings"

	json "github.com/goccy/go-json"
)

// fieldDef 强类型字段定义：列名 + 读写函数
type fieldDef[T any] struct {
	column  string
	numeric bool
	get     func(*T) Value
	set     func(*T, Value)
}

func textField[T any](column string, p func(*T) *string) fieldDef[T] {
	return fieldDef[T]{
		column: column,
		get:    func(t *T) Value { return Text(*p(t)) },
		set:    func(t *T, v Value) { *p(t) = strings.TrimSpace(v.String()) },
	}
}

func numberField[T any](column string, p func(*T) *float64) fieldDef[T] {
	return fieldDef[T]{
		column:  column,
		numeric: true,
		get:     func(t *T) Value { return Number(*p(t)) },
		set:     func(t *T, v Value) { *p(t) = v.FloatOrZero() },
	}
}

func valueField[T any](column string, p func(*T) *Value) fieldDef[T] {
	return fieldDef[T]{
		column: column,
		get:    func(t *T) Value { return *p(t) },
		set:    func(t *T, v Value) { *p(t) = v },
	}
}

// schema 某一工作表类型的强类型字段集合
type schema[T any] struct {
	fields []fieldDef[T]
	index  map[string]int
}

func newSchema[T any](fields ...fieldDef[T]) schema[T] {
	s := schema[T]{fields: fields, index: make(map[string]int, len(fields))}
	for i, f := range fields {
		s.index[f.column] = i
	}
	return s
}

func (s schema[T]) get(t *T, column string) (Value, bool) {
	i, ok := s.index[column]
	if !ok {
		return Value{}, false
	}
	return s.fields[i].get(t), true
}

func (s schema[T]) set(t *T, column string, v Value) bool {
	i, ok := s.index[column]
	if !ok {
		return false
	}
	s.fields[i].set(t, v)
	return true
}

func (s schema[T]) isNumeric(column string) bool {
	i, ok := s.index[column]
	return ok && s.fields[i].numeric
}

func (s schema[T]) columns() []string {
	out := make([]string, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.column
	}
	return out
}

// RevenueRow Doanh số khách hàng 行
type RevenueRow struct {
	CustCode string
	Months   [4]float64 // T-3, T-2, T-1, T
	Average  float64    // TB Doanh số
	Forecast float64    // Dự báo
	Class    string     // Phân loại
}

var revenueSchema = newSchema(
	textField(ColCustCode, func(r *RevenueRow) *string { return &r.CustCode }),
	numberField(ColT3, func(r *RevenueRow) *float64 { return &r.Months[0] }),
	numberField(ColT2, func(r *RevenueRow) *float64 { return &r.Months[1] }),
	numberField(ColT1, func(r *RevenueRow) *float64 { return &r.Months[2] }),
	numberField(ColT, func(r *RevenueRow) *float64 { return &r.Months[3] }),
	numberField(ColAvg, func(r *RevenueRow) *float64 { return &r.Average }),
	numberField(ColForecast, func(r *RevenueRow) *float64 { return &r.Forecast }),
	textField(ColClass, func(r *RevenueRow) *string { return &r.Class }),
)

// CustomerRow DSKH 行
type CustomerRow struct {
	Code     string
	Name     string
	Status   string
	Ward     string
	District string
	Channel  string
	Owner    string
	Lat      Value
	Lng      Value
	Revenue  float64
}

var customerSchema = newSchema(
	textField(ColCustomerCode, func(r *CustomerRow) *string { return &r.Code }),
	textField(ColCustomerName, func(r *CustomerRow) *string { return &r.Name }),
	textField(ColStatus, func(r *CustomerRow) *string { return &r.Status }),
	textField(ColWard, func(r *CustomerRow) *string { return &r.Ward }),
	textField(ColDistrict, func(r *CustomerRow) *string { return &r.District }),
	textField(ColChannel, func(r *CustomerRow) *string { return &r.Channel }),
	textField(ColOwnerStaff, func(r *CustomerRow) *string { return &r.Owner }),
	valueField(ColLat, func(r *CustomerRow) *Value { return &r.Lat }),
	valueField(ColLng, func(r *CustomerRow) *Value { return &r.Lng }),
	numberField(ColCustomerRevenue, func(r *CustomerRow) *float64 { return &r.Revenue }),
)

// StaffRouteRow Tuyến và nhân viên 行；日列保存在 Row.Extra
type StaffRouteRow struct {
	RouteCode  string
	StaffName  string
	FromDate   string
	ToDate     string
	Status     string
	Project    string
	Supervisor string
	Note       string
	Calls      float64
	CallMin    float64
	CallMax    float64
}

var staffRouteSchema = newSchema(
	textField(ColRouteCode, func(r *StaffRouteRow) *string { return &r.RouteCode }),
	textField(ColStaffName, func(r *StaffRouteRow) *string { return &r.StaffName }),
	textField(ColFromDate, func(r *StaffRouteRow) *string { return &r.FromDate }),
	textField(ColToDate, func(r *StaffRouteRow) *string { return &r.ToDate }),
	textField(ColStaffStatus, func(r *StaffRouteRow) *string { return &r.Status }),
	textField(ColProject, func(r *StaffRouteRow) *string { return &r.Project }),
	textField(ColSupervisor, func(r *StaffRouteRow) *string { return &r.Supervisor }),
	textField(ColNote, func(r *StaffRouteRow) *string { return &r.Note }),
	numberField(ColCalls, func(r *StaffRouteRow) *float64 { return &r.Calls }),
	numberField(ColCallMin, func(r *StaffRouteRow) *float64 { return &r.CallMin }),
	numberField(ColCallMax, func(r *StaffRouteRow) *float64 { return &r.CallMax }),
)

// RouteDetailRow Chi tiết tuyến 行；日/周标记列保存在 Row.Extra
type RouteDetailRow struct {
	STT              Value
	CustCode         string
	CustName         string
	Address          string
	RouteCode        string
	OwnerStaff       string
	SuggestStaffCode string
	SuggestStaffName string
	SuggestFreqValue Value
	ProductChannel   string
	AvgRevenue       float64
	CurrentFreq      Value
	FreqSplit        string // Freq_Chia，规范化为 F<n>
	CustomerFreq     Value
	DistChannel      string
	SuggestFreq      Value

	FinalRevenue float64 // DS_TB_Final
	ProposedFreq string  // 建议频次
	FreqCheck    string  // OK / LỖI
	CallsMonth   float64 // 每月拜访次数
}

var routeDetailSchema = newSchema(
	valueField(ColSTT, func(r *RouteDetailRow) *Value { return &r.STT }),
	textField(ColDetailCustCode, func(r *RouteDetailRow) *string { return &r.CustCode }),
	textField(ColDetailCustName, func(r *RouteDetailRow) *string { return &r.CustName }),
	textField(ColAddress, func(r *RouteDetailRow) *string { return &r.Address }),
	textField(ColDetailRoute, func(r *RouteDetailRow) *string { return &r.RouteCode }),
	textField(ColDetailOwner, func(r *RouteDetailRow) *string { return &r.OwnerStaff }),
	textField(ColSuggestStaffCode, func(r *RouteDetailRow) *string { return &r.SuggestStaffCode }),
	textField(ColSuggestStaffName, func(r *RouteDetailRow) *string { return &r.SuggestStaffName }),
	valueField(ColSuggestFreqValue, func(r *RouteDetailRow) *Value { return &r.SuggestFreqValue }),
	textField(ColProductChannel, func(r *RouteDetailRow) *string { return &r.ProductChannel }),
	numberField(ColAvgRevenue, func(r *RouteDetailRow) *float64 { return &r.AvgRevenue }),
	valueField(ColCurrentFreq, func(r *RouteDetailRow) *Value { return &r.CurrentFreq }),
	fieldDef[RouteDetailRow]{
		column: ColFreqSplit,
		get:    func(r *RouteDetailRow) Value { return Text(r.FreqSplit) },
		set:    func(r *RouteDetailRow, v Value) { r.FreqSplit = NormalizeFrequency(v) },
	},
	valueField(ColCustomerFreq, func(r *RouteDetailRow) *Value { return &r.CustomerFreq }),
	textField(ColDistChannel, func(r *RouteDetailRow) *string { return &r.DistChannel }),
	valueField(ColSuggestFreq, func(r *RouteDetailRow) *Value { return &r.SuggestFreq }),
	numberField(ColFinalRevenue, func(r *RouteDetailRow) *float64 { return &r.FinalRevenue }),
	textField(ColProposedFreq, func(r *RouteDetailRow) *string { return &r.ProposedFreq }),
	textField(ColFreqCheck, func(r *RouteDetailRow) *string { return &r.FreqCheck }),
	numberField(ColCallsMonth, func(r *RouteDetailRow) *float64 { return &r.CallsMonth }),
)

// TypedColumns 某一工作表类型的强类型列（按定义顺序）
func TypedColumns(sheet SheetType) []string {
	switch sheet {
	case SheetRevenue:
		return revenueSchema.columns()
	case SheetCustomers:
		return customerSchema.columns()
	case SheetStaffRoutes:
		return staffRouteSchema.columns()
	case SheetRouteDetail:
		return routeDetailSchema.columns()
	default:
		return nil
	}
}

// IsNumericColumn 是否为强类型数值列（解析时非数字内容按 0 处理）
func IsNumericColumn(sheet SheetType, column string) bool {
	switch sheet {
	case SheetRevenue:
		return revenueSchema.isNumeric(column)
	case SheetCustomers:
		return customerSchema.isNumeric(column)
	case SheetStaffRoutes:
		return staffRouteSchema.isNumeric(column)
	case SheetRouteDetail:
		return routeDetailSchema.isNumeric(column)
	default:
		return false
	}
}

// DerivedColumns 由系统计算、不来自上传文件的列
func DerivedColumns(sheet SheetType) []string {
	switch sheet {
	case SheetRevenue:
		return []string{ColAvg, ColForecast, ColClass}
	case SheetRouteDetail:
		return []string{ColFinalRevenue, ColProposedFreq, ColFreqCheck, ColCallsMonth}
	default:
		return nil
	}
}

// Row 行记录：按工作表类型携带一个强类型载荷，动态列（日/周列及未知列）放在 Extra
type Row struct {
	Kind     SheetType
	Revenue  *RevenueRow
	Customer *CustomerRow
	Staff    *StaffRouteRow
	Detail   *RouteDetailRow
	Extra    []Cell
}

// NewRow 创建指定类型的空行
func NewRow(kind SheetType) Row {
	r := Row{Kind: kind}
	switch kind {
	case SheetRevenue:
		r.Revenue = &RevenueRow{}
	case SheetCustomers:
		r.Customer = &CustomerRow{}
	case SheetStaffRoutes:
		r.Staff = &StaffRouteRow{}
	case SheetRouteDetail:
		r.Detail = &RouteDetailRow{}
	}
	return r
}

func (r Row) typedGet(column string) (Value, bool) {
	switch {
	case r.Revenue != nil:
		return revenueSchema.get(r.Revenue, column)
	case r.Customer != nil:
		return customerSchema.get(r.Customer, column)
	case r.Staff != nil:
		return staffRouteSchema.get(r.Staff, column)
	case r.Detail != nil:
		return routeDetailSchema.get(r.Detail, column)
	}
	return Value{}, false
}

func (r *Row) typedSet(column string, v Value) bool {
	switch {
	case r.Revenue != nil:
		return revenueSchema.set(r.Revenue, column, v)
	case r.Customer != nil:
		return customerSchema.set(r.Customer, column, v)
	case r.Staff != nil:
		return staffRouteSchema.set(r.Staff, column, v)
	case r.Detail != nil:
		return routeDetailSchema.set(r.Detail, column, v)
	}
	return false
}

// Get 按列名取值：先查强类型字段，再查动态列；不存在返回空值
func (r Row) Get(column string) Value {
	if v, ok := r.typedGet(column); ok {
		return v
	}
	for _, c := range r.Extra {
		if c.Column == column {
			return c.Value
		}
	}
	return Value{}
}

// Has 是否存在该列（强类型字段或动态列）
func (r Row) Has(column string) bool {
	if _, ok := r.typedGet(column); ok {
		return true
	}
	for _, c := range r.Extra {
		if c.Column == column {
			return true
		}
	}
	return false
}

// Set 按列名写值：强类型字段优先，否则写入（或追加）动态列
func (r *Row) Set(column string, v Value) {
	if r.typedSet(column, v) {
		return
	}
	for i := range r.Extra {
		if r.Extra[i].Column == column {
			r.Extra[i].Value = v
			return
		}
	}
	r.Extra = append(r.Extra, Cell{Column: column, Value: v})
}

// Key 行标识
func (r Row) Key() string {
	switch {
	case r.Revenue != nil:
		return r.Revenue.CustCode
	case r.Customer != nil:
		return r.Customer.Code
	case r.Staff != nil:
		return r.Staff.StaffName
	case r.Detail != nil:
		return r.Detail.CustCode
	}
	return ""
}

// Clone 深拷贝
func (r Row) Clone() Row {
	out := Row{Kind: r.Kind}
	if r.Revenue != nil {
		v := *r.Revenue
		out.Revenue = &v
	}
	if r.Customer != nil {
		v := *r.Customer
		out.Customer = &v
	}
	if r.Staff != nil {
		v := *r.Staff
		out.Staff = &v
	}
	if r.Detail != nil {
		v := *r.Detail
		out.Detail = &v
	}
	if len(r.Extra) > 0 {
		out.Extra = append([]Cell(nil), r.Extra...)
	}
	return out
}

// Record 按列顺序输出的行（JSON 对象保持列顺序）
func (r Row) Record(columns []string) Record {
	rec := make(Record, len(columns))
	for i, c := range columns {
		rec[i] = Cell{Column: c, Value: r.Get(c)}
	}
	return rec
}

// Record 有序键值对，序列化为 JSON 对象
type Record []Cell

// MarshalJSON 保持列顺序输出 JSON 对象
func (rec Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range rec {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(c.Column)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := c.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Get 按列名取值
func (rec Record) Get(column string) Value {
	for _, c := range rec {
		if c.Column == column {
			return c.Value
		}
	}
	return Value{}
}
