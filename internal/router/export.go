package router

import (
	"net/http"
	"strings"

	"color_shop/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx"
)

var exportHeaders = []string{
	"Order Number", "Created At", "Customer Email", "Status", "Payment Status",
	"Items", "First Item", "Subtotal", "Tax", "Shipping", "Total", "Note",
}

// exportOrders 导出与列表相同筛选/排序的订单为 xlsx。
func exportOrders(svc *service.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter, valid := filterFromQuery(c)
		if !valid {
			return
		}
		rows, err := svc.ExportOrders(c.Request.Context(), filter)
		if err != nil {
			respondError(c, err)
			return
		}

		file, err := ordersWorkbook(rows)
		if err != nil {
			fail(c, http.StatusInternalServerError, "Failed to create Excel sheet")
			return
		}

		c.Header("Content-Disposition", "attachment; filename=orders.xlsx")
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Transfer-Encoding", "binary")
		c.Header("Expires", "0")
		c.Status(http.StatusOK)
		if err := file.Write(c.Writer); err != nil {
			// 头已写出，只能中断连接
			_ = c.Error(err)
			c.Abort()
		}
	}
}

func ordersWorkbook(rows []service.OrderSummary) (*xlsx.File, error) {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Orders")
	if err != nil {
		return nil, err
	}

	header := sheet.AddRow()
	for _, h := range exportHeaders {
		header.AddCell().SetString(h)
	}

	for _, o := range rows {
		row := sheet.AddRow()
		row.AddCell().SetString(o.OrderNumber)
		row.AddCell().SetString(o.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
		row.AddCell().SetString(o.UserEmail)
		row.AddCell().SetString(string(o.Status))
		row.AddCell().SetString(string(o.PaymentStatus))
		row.AddCell().SetInt(o.ItemCount)
		row.AddCell().SetString(firstItemLabel(o.FirstItem))
		moneyCell(row, o.Subtotal)
		moneyCell(row, o.TaxAmount)
		moneyCell(row, o.ShippingCost)
		moneyCell(row, o.TotalAmount)
		row.AddCell().SetString(strings.TrimSpace(o.CustomerNote))
	}
	return file, nil
}

func moneyCell(row *xlsx.Row, d decimal.Decimal) {
	f, _ := d.Round(2).Float64()
	row.AddCell().SetFloatWithFormat(f, "0.00")
}

func firstItemLabel(it *service.FirstItem) string {
	if it == nil {
		return ""
	}
	return it.Name
}
