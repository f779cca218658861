// Package testfixture 在内存中构造测试用的上传文件
package testfixture

import (
	"testing"

	"github.com/xuri/excelize/v2"
)

// Sheet 一个工作表
type Sheet struct {
	Name string
	Rows [][]string
}

// Master 主参数表（按参数名布局）
func Master() Sheet {
	return Sheet{Name: "Master", Rows: [][]string{
		{"Tham số", "Giá trị"},
		{"Call_Min_Thang", "800"},
		{"Call_Max_Thang", "1200"},
		{"KH_Min_NVBH", "1"},
		{"KH_Max_NVBH", "2"},
		{"KH_Min_Ngay", "25"},
		{"KH_Max_Ngay", "50"},
	}}
}

// RouteDetail 路线明细：三行数据，其中两行 Freq_Chia = 2
func RouteDetail() Sheet {
	return Sheet{Name: "Chi tiết tuyến", Rows: [][]string{
		{"CHI TIẾT TUYẾN"},
		{""},
		{"STT", "Mã khách hàng", "Tên khách hàng", "Mã tuyến", "Mã nhân viên phụ trách", "Lộ trình DMS", "", "Tần suất GSBH chia lại", "Doanh số TB"},
		{"", "", "", "", "", "T2", "T3", "", ""},
		{"1", "KH01", "Shop A", "R01", "NV01", "x", "", "2", "3000000"},
		{"2", "KH02", "Shop B", "R01", "NV01", "", "x", "2", "800000"},
		{"3", "KH03", "Shop C", "R02", "NV02", "x", "x", "4", "12000000"},
	}}
}

// Revenue 营收表（KH03 缺失，明细回退到本行 Doanh số TB）
func Revenue() Sheet {
	return Sheet{Name: "Doanh số khách hàng", Rows: [][]string{
		{"CustCode", "T-3", "T-2", "T-1", "T"},
		{"KH01", "3000000", "3000000", "3000000", "3500000"},
		{"KH02", "600000", "600000", "600000", "700000"},
		{"KH04", "6000000", "5000000", "7000000", "8000000"},
	}}
}

// StaffRoutes 路线与人员表（两周的日列）
func StaffRoutes() Sheet {
	return Sheet{Name: "Tuyến và nhân viên", Rows: [][]string{
		{"TUYẾN VÀ NHÂN VIÊN"},
		{"Mã tuyến", "Tên nhân viên", "Giám sát", "Số Calls", "Call Min", "Call Max", "T2", "T3", "T2", "T3"},
		{"R01", "Anna", "Sup1", "120", "800", "1200", "x", "", "x", "x"},
		{"R02", "Binh", "Sup1", "90", "700", "1000", "", "x", "", ""},
	}}
}

// Customers 客户表
func Customers() Sheet {
	return Sheet{Name: "DSKH", Rows: [][]string{
		{"DANH SÁCH KHÁCH HÀNG"},
		{"Mã khách hàng", "Tên khách hàng", "Trạng thái", "Quận/huyện", "Kênh", "Mã nhân viên phụ trách", "Lat", "Lng", "Doanh số trung bình"},
		{"KH01", "Shop A", "Active", "Q1", "GT", "NV01", "9.17", "105.15", "3000000"},
		{"KH02", "Shop B", "Active", "Q2", "MT", "NV01", "9.20", "105.10", "600000"},
		{"KH03", "Shop C", "Inactive", "Q1", "GT", "NV02", "", "", "12000000"},
	}}
}

// Workbook 生成 XLSX 文件内容
func Workbook(t testing.TB, sheets ...Sheet) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.Name); err != nil {
				t.Fatalf("rename sheet: %v", err)
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			t.Fatalf("new sheet: %v", err)
		}
		for r, row := range s.Rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			values := make([]interface{}, len(row))
			for j, v := range row {
				values[j] = v
			}
			if err := f.SetSheetRow(s.Name, cell, &values); err != nil {
				t.Fatalf("set row: %v", err)
			}
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

// Full 全部五个工作表
func Full(t testing.TB) []byte {
	t.Helper()
	return Workbook(t, Master(), RouteDetail(), Revenue(), StaffRoutes(), Customers())
}
