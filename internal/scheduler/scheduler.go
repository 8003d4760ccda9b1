package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"Canada28Bot/internal/logger"
	"Canada28Bot/internal/model"
	"Canada28Bot/internal/notifier"
	"Canada28Bot/internal/recorder"
)

var log = logger.For("scheduler")

const helpText = "可用命令:\n" +
	"• /status 查看引擎状态\n" +
	"• /startbot 启动下注\n" +
	"• /stopbot 停止下注\n" +
	"• /today 今日统计\n" +
	"• /recent [n] 最近结算\n" +
	"• /help 帮助"

// Controller is the part of the engine the chat commands drive.
type Controller interface {
	Start() bool
	Stop() bool
	Snapshot() (model.Snapshot, error)
}

// Scheduler manages the cron jobs and answers chat commands.
type Scheduler struct {
	Cron          *cron.Cron
	Engine        Controller
	Notifier      notifier.Notifier
	Recorder      recorder.Recorder
	RetentionDays int
	Ctx           context.Context

	now func() time.Time
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, eng Controller, n notifier.Notifier, rec recorder.Recorder, retentionDays int) *Scheduler {
	return &Scheduler{
		Cron:          cron.New(cron.WithSeconds()),
		Engine:        eng,
		Notifier:      n,
		Recorder:      rec,
		RetentionDays: retentionDays,
		Ctx:           ctx,
		now:           time.Now,
	}
}

// RegisterAll registers the daily report and the history prune.
func (s *Scheduler) RegisterAll(dailyReportCron, pruneCron string) error {
	if _, err := s.Cron.AddFunc(dailyReportCron, s.dailyReport); err != nil {
		return fmt.Errorf("register daily report: %w", err)
	}
	if _, err := s.Cron.AddFunc(pruneCron, s.prune); err != nil {
		return fmt.Errorf("register prune task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Info("scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Info("scheduler stopped")
}

func (s *Scheduler) dailyReport() {
	log.Info("running daily report")
	sum, err := s.Recorder.Summary(s.now().Add(-24 * time.Hour))
	if err != nil {
		log.Errorf("daily summary: %v", err)
		return
	}
	s.trySend(notifier.FormatDailySummary("每日报告", sum))
}

func (s *Scheduler) prune() {
	before := s.now().AddDate(0, 0, -s.RetentionDays)
	n, err := s.Recorder.Prune(before)
	if err != nil {
		log.Errorf("prune history: %v", err)
		return
	}
	log.Infof("pruned %d history rows older than %s", n, before.Format("2006-01-02"))
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	// Group chats address commands as /cmd@botname.
	name := strings.ToLower(strings.SplitN(fields[0], "@", 2)[0])

	switch name {
	case "/status", "状态":
		snap, err := s.Engine.Snapshot()
		if err != nil {
			return fmt.Sprintf("❌ 读取状态失败: %v", err)
		}
		return notifier.FormatStatus(snap)
	case "/startbot", "启动":
		if s.Engine.Start() {
			return "▶️ 下注引擎已启动"
		}
		return "下注引擎已在运行"
	case "/stopbot", "停止":
		if s.Engine.Stop() {
			return "⏹ 下注引擎已停止"
		}
		return "下注引擎未在运行"
	case "/today", "今日":
		now := s.now()
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		sum, err := s.Recorder.Summary(midnight)
		if err != nil {
			return fmt.Sprintf("❌ 读取统计失败: %v", err)
		}
		return notifier.FormatDailySummary("今日统计", sum)
	case "/recent":
		limit := 10
		if len(fields) > 1 {
			if n, err := strconv.Atoi(fields[1]); err == nil && n > 0 && n <= 50 {
				limit = n
			}
		}
		return s.recent(limit)
	case "/help", "/start":
		return helpText
	default:
		return "未知命令\n\n" + helpText
	}
}

func (s *Scheduler) recent(limit int) string {
	recs, err := s.Recorder.RecentSettlements(limit)
	if err != nil {
		return fmt.Sprintf("❌ 读取记录失败: %v", err)
	}
	if len(recs) == 0 {
		return "暂无结算记录"
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🧾 <b>最近 %d 条结算</b>\n\n", len(recs)))
	for _, r := range recs {
		mark := "❌"
		if r.Win {
			mark = "✅"
		}
		b.WriteString(fmt.Sprintf("%s %s %s 押%s%d 和值%d\n", mark, r.Issue, r.Strategy, r.Predicted.Glyph(), r.BetAmount, r.Sum))
	}
	return b.String()
}

func (s *Scheduler) trySend(text string) {
	if err := notifier.SendWithRetry(s.Ctx, s.Notifier, text, 3); err != nil {
		log.Errorf("send notification: %v", err)
	}
}
