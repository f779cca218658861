package model

import "strings"

// SheetType 工作表类型
type SheetType string

const (
	SheetRevenue     SheetType = "revenue"      // Doanh số khách hàng
	SheetCustomers   SheetType = "customers"    // DSKH
	SheetStaffRoutes SheetType = "staff_routes" // Tuyến và nhân viên
	SheetRouteDetail SheetType = "route_detail" // Chi tiết tuyến
	SheetMaster      SheetType = "master"       // 主参数表
	SheetUnknown     SheetType = "unknown"
)

// TableSheets 可以作为表格视图展示的工作表（按展示顺序）
var TableSheets = []SheetType{SheetRevenue, SheetCustomers, SheetStaffRoutes, SheetRouteDetail}

// sheetTitles 工作表原始名称
var sheetTitles = map[SheetType]string{
	SheetRevenue:     "Doanh số khách hàng",
	SheetCustomers:   "DSKH",
	SheetStaffRoutes: "Tuyến và nhân viên",
	SheetRouteDetail: "Chi tiết tuyến",
	SheetMaster:      "Master",
}

// Title 工作表标题
func (t SheetType) Title() string {
	if s, ok := sheetTitles[t]; ok {
		return s
	}
	return string(t)
}

// IsTable 是否为表格类工作表
func (t SheetType) IsTable() bool {
	for _, s := range TableSheets {
		if s == t {
			return true
		}
	}
	return false
}

// ParseSheetType 从 URL 参数解析工作表类型，兼容类型名与原始工作表名
func ParseSheetType(name string) (SheetType, bool) {
	n := strings.TrimSpace(name)
	for t, title := range sheetTitles {
		if strings.EqualFold(n, string(t)) || strings.EqualFold(n, title) {
			return t, true
		}
	}
	switch strings.ToLower(n) {
	case "doanhso", "doanh_so":
		return SheetRevenue, true
	case "dskh":
		return SheetCustomers, true
	case "tuyen", "tuyenvn":
		return SheetStaffRoutes, true
	case "chitiet", "chi_tiet":
		return SheetRouteDetail, true
	}
	return SheetUnknown, false
}

// Doanh số khách hàng
const (
	ColCustCode = "CustCode"
	ColT3       = "T-3"
	ColT2       = "T-2"
	ColT1       = "T-1"
	ColT        = "T"
	ColAvg      = "TB Doanh số"
	ColForecast = "Dự báo"
	ColClass    = "Phân loại"
)

// MonthColumns 营收月份列（由远及近）
var MonthColumns = []string{ColT3, ColT2, ColT1, ColT}

// DSKH
const (
	ColCustomerCode    = "Mã khách hàng"
	ColCustomerName    = "Tên khách hàng"
	ColStatus          = "Trạng thái"
	ColWard            = "Tên phường xã"
	ColDistrict        = "Quận/huyện"
	ColChannel         = "Kênh"
	ColOwnerStaff      = "Mã nhân viên phụ trách"
	ColLat             = "Lat"
	ColLng             = "Lng"
	ColCustomerRevenue = "Doanh số trung bình"
)

// Tuyến và nhân viên
const (
	ColRouteCode   = "Mã tuyến"
	ColStaffName   = "Tên nhân viên"
	ColFromDate    = "Từ ngày giao tuyến"
	ColToDate      = "Đến ngày giao tuyến"
	ColStaffStatus = "Trạng thái nhân viên gán tuyến"
	ColProject     = "Dự án hoạch định tuyến"
	ColSupervisor  = "Giám sát"
	ColNote        = "Note"
	ColCalls       = "Số Calls"
	ColCallMin     = "Call Min"
	ColCallMax     = "Call Max"
)

// Chi tiết tuyến
const (
	ColSTT              = "STT"
	ColDetailCustCode   = "MaKhachHang"
	ColDetailCustName   = "TenKhachHang"
	ColAddress          = "DiaChi"
	ColDetailRoute      = "MaTuyen"
	ColDetailOwner      = "MaNhanVienPhuTrach"
	ColSuggestStaffCode = "MaNhanVienGoiY"
	ColSuggestStaffName = "TenNhanVienGoiY"
	ColSuggestFreqValue = "TanSuatGoiYValue"
	ColProductChannel   = "KenhHang"
	ColAvgRevenue       = "DoanhSoTB"
	ColCurrentFreq      = "TanSuatHienTai"
	ColFreqSplit        = "TanSuatGSBHChiaLai"
	ColCustomerFreq     = "TanSuatKhachHang"
	ColDistChannel      = "KenhPhanPhoi"
	ColSuggestFreq      = "TanSuatGoiY"

	ColFinalRevenue = "DS_TB_Final"
	ColProposedFreq = "TanSuatDeXuat"
	ColFreqCheck    = "KiemTraTanSuat"
	ColCallsMonth   = "SoCallThang"
)

// 路线明细列名别名（上传文件或编辑请求中的旧列名）
var detailAliases = map[string]string{
	"Freq_Chia":              ColFreqSplit,
	"Mã khách hàng":          ColDetailCustCode,
	"Tên khách hàng":         ColDetailCustName,
	"Mã tuyến":               ColDetailRoute,
	"Mã nhân viên phụ trách": ColDetailOwner,
	"DS_TB":                  ColAvgRevenue,
	"Tan_Suat_De_Xuat":       ColProposedFreq,
	"Kiểm tra đúng tần suất": ColFreqCheck,
	"So_Call_Thang":          ColCallsMonth,
}

// CanonicalColumn 列名规范化（仅路线明细存在别名）
func CanonicalColumn(sheet SheetType, column string) string {
	c := strings.TrimSpace(column)
	if sheet == SheetRouteDetail {
		if alias, ok := detailAliases[c]; ok {
			return alias
		}
	}
	return c
}

// 校验结果
const (
	CheckOK    = "OK"
	CheckError = "LỖI"
)
