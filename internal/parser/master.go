package parser

import (
	"fmt"

	"github.com/huuly01092003/Smart-bi/internal/model"
)

// 主参数表固定布局：跳过 12 行，参数值位于第 4 列
const (
	masterSkipRows = 12
	masterValueCol = 3
)

// masterOffsets 固定布局下参数所在的行偏移
var masterOffsets = []struct {
	offset int
	key    string
}{
	{0, "Call_Min_Thang"},
	{1, "Call_Max_Thang"},
	{4, "KH_Min_NVBH"},
	{5, "KH_Max_NVBH"},
	{6, "KH_Min_Ngay"},
	{7, "KH_Max_Ngay"},
}

// ParseMaster 解析主参数表：优先按参数名查找右侧第一个数值，否则按固定布局读取；
// 返回解析出的参数名，未出现的参数保留默认值
func ParseMaster(g Grid) (model.MasterParams, []string, error) {
	params := model.DefaultMasterParams()
	if found := scanMasterKeys(g, &params); len(found) > 0 {
		return params, found, nil
	}

	var found []string
	for _, m := range masterOffsets {
		f, ok := model.ParseNumber(g.Cell(masterSkipRows+m.offset, masterValueCol))
		if !ok {
			continue
		}
		params.Set(m.key, f)
		found = append(found, m.key)
	}
	if len(found) == 0 {
		return params, nil, fmt.Errorf("%w: master sheet %s has no parameters", model.ErrInvalidUpload, g.Name)
	}
	return params, found, nil
}

func scanMasterKeys(g Grid, params *model.MasterParams) []string {
	keys := make(map[string]string)
	for _, k := range model.MasterKeys() {
		keys[FoldKey(k)] = k
	}

	var found []string
	done := make(map[string]bool)
	for _, row := range g.Rows {
		for i, c := range row {
			key, ok := keys[FoldKey(c)]
			if !ok || done[key] {
				continue
			}
			for _, v := range row[i+1:] {
				if f, ok := model.ParseNumber(v); ok {
					params.Set(key, f)
					found = append(found, key)
					done[key] = true
					break
				}
			}
		}
	}
	return found
}
