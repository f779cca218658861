package api

import (
	"github.com/gin-gonic/gin"

	"github.com/huuly01092003/Smart-bi/internal/model"
	"github.com/huuly01092003/Smart-bi/internal/service/analytics"
	"github.com/huuly01092003/Smart-bi/internal/service/recalc"
)

// defaultCenter 没有坐标时的地图中心
var defaultCenter = [2]float64{9.18, 105.15}

// classStyle 分级 → 颜色与大小
var classStyle = map[string]struct {
	color string
	size  int
}{
	recalc.ClassVIP:    {"#e74c3c", 14},
	recalc.ClassHigh:   {"#f39c12", 11},
	recalc.ClassMedium: {"#3498db", 8},
	recalc.ClassLow:    {"#95a5a6", 6},
}

// MapPoint 地图点
type MapPoint struct {
	Code     string  `json:"code"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Name     string  `json:"name"`
	District string  `json:"district"`
	Revenue  float64 `json:"revenue"`
	Class    string  `json:"class"`
	Color    string  `json:"color"`
	Size     int     `json:"size"`
}

type mapPayload struct {
	Points    []MapPoint `json:"data"`
	Center    [2]float64 `json:"center"`
	Total     int        `json:"total"`
	Truncated bool       `json:"truncated"`
}

// MapData 有坐标的客户（按营收分级着色），支持客户表筛选参数
// GET /api/map_data
func (h *Handler) MapData(c *gin.Context) {
	sc, err := h.openDataset(c, viewMap, model.SheetCustomers, true)
	if err != nil {
		respondError(c, err)
		return
	}
	payload, _ := memo(sc, viewMap, sc.key, func() (*mapPayload, error) {
		return h.buildMap(sc), nil
	})
	respond(c, sc, gin.H{
		"success":   true,
		"data":      payload.Points,
		"center":    payload.Center,
		"total":     payload.Total,
		"truncated": payload.Truncated,
	})
}

func (h *Handler) buildMap(sc *sheetScope) *mapPayload {
	revenue := map[string]float64{}
	if ds, err := sc.wb.Dataset(model.SheetRevenue); err == nil {
		for _, r := range ds.Rows {
			if r.Revenue == nil || r.Revenue.CustCode == "" {
				continue
			}
			if _, dup := revenue[r.Revenue.CustCode]; !dup {
				revenue[r.Revenue.CustCode] = r.Revenue.Average
			}
		}
	}

	out := &mapPayload{Points: []MapPoint{}, Center: defaultCenter}
	limit := h.cfg.Business.MapLimit
	var sumLat, sumLng float64
	for _, r := range sc.rows() {
		coord, ok := analytics.Coordinates(r)
		if !ok {
			continue
		}
		out.Total++
		if len(out.Points) >= limit {
			out.Truncated = true
			continue
		}
		code := r.Key()
		value, ok := revenue[code]
		if !ok {
			value = r.Get(model.ColCustomerRevenue).FloatOrZero()
		}
		class := recalc.ClassOf(value, h.cfg.Business.Classes)
		style := classStyle[class]
		out.Points = append(out.Points, MapPoint{
			Code:     code,
			Lat:      coord[0],
			Lng:      coord[1],
			Name:     r.Get(model.ColCustomerName).String(),
			District: r.Get(model.ColDistrict).String(),
			Revenue:  value,
			Class:    class,
			Color:    style.color,
			Size:     style.size,
		})
		sumLat += coord[0]
		sumLng += coord[1]
	}
	if n := float64(len(out.Points)); n > 0 {
		out.Center = [2]float64{sumLat / n, sumLng / n}
	}
	return out
}
