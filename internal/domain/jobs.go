package domain

import (
	"context"
	"time"
)

// DistributionCause описывает источник запроса на рассылку.
type DistributionCause string

const (
	// DistributionCauseManual — рассылка запрошена оператором вручную.
	DistributionCauseManual DistributionCause = "manual"
	// DistributionCauseScheduled — рассылка запланирована по расписанию.
	DistributionCauseScheduled DistributionCause = "scheduled"
)

// DistributionJob содержит задачу на рассылку готового дайджеста.
// Полезная нагрузка включает сам дайджест и командные разборы,
// поэтому воркеру не нужен доступ к генератору.
type DistributionJob struct {
	ID          string            `json:"job_id,omitempty"`
	Date        time.Time         `json:"date"`
	Digest      Digest            `json:"digest"`
	Analyses    []TeamAnalysis    `json:"analyses,omitempty"`
	DryRun      bool              `json:"dry_run,omitempty"`
	RequestedAt time.Time         `json:"requested_at"`
	Cause       DistributionCause `json:"cause"`
}

// DistributionQueue описывает очередь задач на рассылку дайджестов.
type DistributionQueue interface {
	Enqueue(ctx context.Context, job DistributionJob) error
	Receive(ctx context.Context) (DistributionJob, DistributionAckFunc, error)
}

// DistributionAckFunc подтверждает успешную обработку или запрашивает
// повтор доставки задачи.
type DistributionAckFunc func(success bool) error
