package notifier

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"Canada28Bot/internal/model"
	"Canada28Bot/internal/recorder"
)

// FormatSettlement formats the per-draw settlement report.
func FormatSettlement(draw model.DrawResult, recs []model.SettlementRecord) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("🎲 <b>第 %s 期</b> | 和值 %d | %s\n\n", html.EscapeString(draw.Issue), draw.Sum, html.EscapeString(draw.Time)))
	if len(recs) == 0 {
		b.WriteString("本期无下注\n")
		return b.String()
	}
	for _, r := range recs {
		mark := "❌"
		if r.Win {
			mark = "✅"
		}
		b.WriteString(fmt.Sprintf("%s %s: 押%s%d 开%s", mark, r.Strategy, r.Predicted.Glyph(), r.BetAmount, r.Actual.Glyph()))
		switch {
		case r.StreakReset:
			b.WriteString(fmt.Sprintf(" | 连胜封顶，重置为 %d\n", r.NextBet))
		case r.Win:
			b.WriteString(fmt.Sprintf(" | 连胜 %d，下注 %d\n", r.WinStreak, r.NextBet))
		default:
			b.WriteString(fmt.Sprintf(" | 下注 %d\n", r.NextBet))
		}
	}
	return b.String()
}

// FormatDailySummary formats a history summary report.
func FormatDailySummary(title string, sum *recorder.Summary) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📅 <b>%s</b> | %s 起\n\n", html.EscapeString(title), sum.Since.Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("结算期数: %d\n", sum.Draws))
	if len(sum.Strategies) == 0 {
		b.WriteString("暂无记录\n")
		return b.String()
	}
	for _, s := range sum.Strategies {
		rate := 0.0
		if n := s.Wins + s.Losses; n > 0 {
			rate = float64(s.Wins) / float64(n) * 100
		}
		b.WriteString(fmt.Sprintf("\n<b>%s</b>\n", s.Strategy))
		b.WriteString(fmt.Sprintf("  下注: %d (成功 %d, 失败 %d)\n", s.Bets, s.Dispatched, s.Failed))
		b.WriteString(fmt.Sprintf("  胜负: %d / %d (胜率 %.1f%%)\n", s.Wins, s.Losses, rate))
		b.WriteString(fmt.Sprintf("  投注总额: %d\n", s.Staked))
	}
	return b.String()
}

// FormatStatus formats the engine snapshot for display.
func FormatStatus(snap model.Snapshot) string {
	var b strings.Builder
	if snap.Running {
		b.WriteString("🟢 <b>运行中</b>")
		if snap.RunID != "" {
			b.WriteString(fmt.Sprintf(" (%s)", snap.RunID[:min(8, len(snap.RunID))]))
		}
		b.WriteString("\n\n")
	} else {
		b.WriteString("⚪ <b>已停止</b>\n\n")
	}

	st := snap.State
	if st != nil && st.HasLastDraw() {
		sum := "?"
		if st.LastPeriodSum != nil {
			sum = fmt.Sprint(*st.LastPeriodSum)
		}
		b.WriteString(fmt.Sprintf("上期: %s | 和值 %s | %s\n", html.EscapeString(st.LastPeriodIssue), sum, html.EscapeString(st.LastAwardTime)))
	} else {
		b.WriteString("上期: 无记录\n")
	}
	if snap.SecondsUntilNextDraw != nil {
		b.WriteString(fmt.Sprintf("距下期开奖: %ds\n", *snap.SecondsUntilNextDraw))
	}

	if st != nil && len(st.Strategies) > 0 {
		names := make([]string, 0, len(st.Strategies))
		for name := range st.Strategies {
			names = append(names, name)
		}
		sort.Strings(names)
		b.WriteString("\n")
		for _, name := range names {
			s := st.Strategies[name]
			b.WriteString(fmt.Sprintf("%s: 下注 %d | 连胜 %d\n", name, s.CurrentBet, s.WinStreak))
		}
	}
	if snap.LastError != "" {
		b.WriteString(fmt.Sprintf("\n⚠️ 上次错误: %s\n", html.EscapeString(snap.LastError)))
	}
	if st != nil && !st.UpdatedAt.IsZero() {
		b.WriteString(fmt.Sprintf("更新时间: %s\n", st.UpdatedAt.Local().Format("2006-01-02 15:04:05")))
	}
	return b.String()
}

// FormatEngineStopped reports a run that ended on its own.
func FormatEngineStopped(runID string, err error, at time.Time) string {
	reason := "正常结束"
	if err != nil {
		reason = html.EscapeString(err.Error())
	}
	return fmt.Sprintf("🛑 <b>下注引擎已停止</b>\n运行: %s\n原因: %s\n时间: %s", runID, reason, at.Format("2006-01-02 15:04:05"))
}
