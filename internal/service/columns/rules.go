package columns

import (
	"regexp"

	"github.com/huuly01092003/Smart-bi/internal/model"
)

// Group 列分组
type Group string

const (
	GroupBase    Group = "base"
	GroupMetric  Group = "metric"
	GroupDay     Group = "day"
	GroupWeek    Group = "week"
	GroupMapping Group = "mapping"
)

// dayPattern 日列：T2..T7，可带 .N 周后缀
var dayPattern = regexp.MustCompile(`^T([2-7])(?:\.(\d+))?$`)

// Rule 按列名匹配的分组规则（Pattern 与 Names 任一命中即生效）
type Rule struct {
	Group   Group
	Pattern *regexp.Regexp
	Names   []string
	Flag    bool // 0/1 标记列，展示为 X / -
}

func (r Rule) match(name string) bool {
	if r.Pattern != nil && r.Pattern.MatchString(name) {
		return true
	}
	for _, n := range r.Names {
		if n == name {
			return true
		}
	}
	return false
}

// SheetRules 某一工作表的分组规则与展示名
type SheetRules struct {
	Base        []string         // 标识字段白名单
	Rules       []Rule           // 后缀/名称规则，按顺序匹配
	Order       []Group          // 表头分组展示顺序
	GroupLabels map[Group]string // 分组表头
	Labels      map[string]string
}

var sheetRules = map[model.SheetType]SheetRules{
	model.SheetRevenue: {
		Base: []string{model.ColCustCode, model.ColClass},
		Rules: []Rule{
			{Group: GroupMetric, Names: []string{
				model.ColT3, model.ColT2, model.ColT1, model.ColT,
				model.ColAvg, model.ColForecast,
			}},
		},
		Order: []Group{GroupBase, GroupMetric},
		GroupLabels: map[Group]string{
			GroupBase:   "Khách hàng",
			GroupMetric: "Doanh số",
		},
		Labels: map[string]string{
			model.ColCustCode: "Mã khách hàng",
			model.ColT3:       "Tháng T-3",
			model.ColT2:       "Tháng T-2",
			model.ColT1:       "Tháng T-1",
			model.ColT:        "Tháng T",
			model.ColAvg:      "Doanh số TB",
			model.ColForecast: "Dự báo tháng tới",
		},
	},
	model.SheetCustomers: {
		Base: []string{
			model.ColCustomerCode, model.ColCustomerName, model.ColStatus,
			model.ColWard, model.ColDistrict, model.ColChannel, model.ColOwnerStaff,
		},
		Rules: []Rule{
			{Group: GroupMetric, Pattern: regexp.MustCompile(`(?i)doanh số|sản lượng|^lat$|^lng$`)},
		},
		Order: []Group{GroupBase, GroupMetric},
		GroupLabels: map[Group]string{
			GroupBase:   "Thông tin khách hàng",
			GroupMetric: "Chỉ số",
		},
	},
	model.SheetStaffRoutes: {
		Base: []string{
			model.ColRouteCode, model.ColStaffName, model.ColFromDate, model.ColToDate,
			model.ColStaffStatus, model.ColProject, model.ColSupervisor, model.ColNote,
		},
		Rules: []Rule{
			{Group: GroupMetric, Pattern: regexp.MustCompile(`(?i)calls?\b`)},
		},
		Order: []Group{GroupBase, GroupMetric, GroupDay},
		GroupLabels: map[Group]string{
			GroupBase:   "Thông tin",
			GroupMetric: "Calls",
			GroupDay:    "Tuần",
		},
	},
	model.SheetRouteDetail: {
		Base: []string{
			model.ColSTT, model.ColDetailCustCode, model.ColDetailCustName, model.ColAddress,
			model.ColDetailRoute, model.ColDetailOwner,
		},
		Rules: []Rule{
			{Group: GroupDay, Pattern: regexp.MustCompile(`^T[2-7]_LoTrinhDMS$`), Flag: true},
			{Group: GroupWeek, Pattern: regexp.MustCompile(`^W\d+_TanSuatDMS$`), Flag: true},
			{Group: GroupMapping, Pattern: regexp.MustCompile(`_Mapping$`), Flag: true},
			{Group: GroupMapping, Names: []string{
				model.ColSuggestStaffCode, model.ColSuggestStaffName, model.ColSuggestFreqValue,
			}},
			{Group: GroupMetric, Names: []string{
				model.ColProductChannel, model.ColAvgRevenue, model.ColCurrentFreq,
				model.ColFreqSplit, model.ColCustomerFreq, model.ColDistChannel, model.ColSuggestFreq,
				model.ColFinalRevenue, model.ColProposedFreq, model.ColFreqCheck, model.ColCallsMonth,
			}},
		},
		Order: []Group{GroupBase, GroupDay, GroupWeek, GroupMapping, GroupMetric},
		GroupLabels: map[Group]string{
			GroupBase:    "Info",
			GroupDay:     "LO TRINH DMS",
			GroupWeek:    "TAN SUAT DMS",
			GroupMapping: "TAN SUAT GOI Y",
			GroupMetric:  "Mapping",
		},
		Labels: map[string]string{
			model.ColDetailCustCode:   "Mã khách hàng",
			model.ColDetailCustName:   "Tên khách hàng",
			model.ColAddress:          "Địa chỉ",
			model.ColDetailRoute:      "Mã tuyến",
			model.ColDetailOwner:      "NV phụ trách",
			model.ColSuggestStaffCode: "Ma Nhan vien",
			model.ColSuggestStaffName: "Ten Nhan vien",
			model.ColSuggestFreqValue: "Tan suat goi y",
			model.ColProductChannel:   "Kenh hang",
			model.ColAvgRevenue:       "Doanh so TB",
			model.ColCurrentFreq:      "Tan suat hien tai",
			model.ColFreqSplit:        "Tan suat GSBH chia lai",
			model.ColCustomerFreq:     "Tan suat khach hang",
			model.ColDistChannel:      "Kenh phan phoi",
			model.ColSuggestFreq:      "Tan suat goi y",
			model.ColFinalRevenue:     "DS TB (final)",
			model.ColProposedFreq:     "Tan suat de xuat",
			model.ColFreqCheck:        "Kiểm tra đúng tần suất",
			model.ColCallsMonth:       "So call/thang",
		},
	},
}

// labelSuffixes 路线明细标记列的展示名去掉后缀
var labelSuffixes = regexp.MustCompile(`_(LoTrinhDMS|TanSuatDMS|TanSuatGoiY_Mapping)$`)

// RulesFor 取某一工作表的规则；未知工作表只有日列规则与兜底 base
func RulesFor(sheet model.SheetType) SheetRules {
	if r, ok := sheetRules[sheet]; ok {
		return r
	}
	return SheetRules{
		Order:       []Group{GroupBase, GroupMetric, GroupDay, GroupWeek, GroupMapping},
		GroupLabels: map[Group]string{},
	}
}
