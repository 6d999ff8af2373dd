package cron

import (
	"Courier/internal/job"
	log "log/slog"

	"github.com/robfig/cron/v3"
)

const defaultAuditSpec = "0 0 3 * * *"

type Manager struct {
	engine       *cron.Cron
	auditSpec    string
	duplicateJob *job.DuplicateConversationJob
}

func NewCronManager(auditSpec string, duplicateJob *job.DuplicateConversationJob) *Manager {
	if auditSpec == "" {
		auditSpec = defaultAuditSpec
	}
	return &Manager{
		engine:       cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		auditSpec:    auditSpec,
		duplicateJob: duplicateJob,
	}
}

// RegisterJobs 注册定时任务
func (s *Manager) RegisterJobs() error {
	if _, err := s.engine.AddJob(s.auditSpec, s.duplicateJob); err != nil {
		return err
	}
	return nil
}

func (s *Manager) Start() {
	log.Info("Cron 定时任务引擎启动", "audit_spec", s.auditSpec)
	s.engine.Start()
}

// Stop 等待运行中的任务结束
func (s *Manager) Stop() {
	log.Info("Cron 定时任务引擎停止")
	<-s.engine.Stop().Done()
}

// InitCron 注册并启动全部任务
func InitCron(mgr *Manager) error {
	if err := mgr.RegisterJobs(); err != nil {
		return err
	}
	mgr.Start()
	return nil
}
