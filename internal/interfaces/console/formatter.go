package console

import (
	"fmt"
	"strings"

	"quotewatch/internal/domain"
	"quotewatch/internal/domain/model"
)

const (
	ansiReset = "\033[0m"
	ansiRed   = "\033[31m"
	ansiGreen = "\033[32m"
	ansiDim   = "\033[2m"
)

func colorize(s, c string) string { return c + s + ansiReset }

// Formatter 把行情表渲染成文本；台股惯例：红涨绿跌
type Formatter struct {
	Color bool
}

func NewFormatter(color bool) *Formatter {
	return &Formatter{Color: color}
}

func (f *Formatter) paint(s, c string) string {
	if !f.Color {
		return s
	}
	return colorize(s, c)
}

// Row 一行：代号 名称 价格 涨跌 涨跌幅 量 时间
func (f *Formatter) Row(s model.Stock) string {
	dir := domain.DirectionOf(s.Change)

	fav := " "
	if s.IsUserFavorite {
		fav = "*"
	}
	line := fmt.Sprintf("%s%-6s %-8s %10.2f %s %+8.2f %+7.2f%% %12d  %s",
		fav, s.Symbol, s.DisplayName(), s.Price, dir.Arrow(), s.Change, s.ChangePercent, s.Volume, s.LastUpdateTime)

	switch dir {
	case domain.DirectionUp:
		return f.paint(line, ansiRed)
	case domain.DirectionDown:
		return f.paint(line, ansiGreen)
	default:
		return line
	}
}

// Table 整表，空表返回提示行
func (f *Formatter) Table(stocks []model.Stock) string {
	if len(stocks) == 0 {
		return f.paint("(no quotes yet)", ansiDim)
	}
	var sb strings.Builder
	for i, s := range stocks {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(f.Row(s))
	}
	return sb.String()
}
