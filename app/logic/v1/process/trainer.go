package process

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/lo"

	"github.com/curio-ai/curio/app/store"
	"github.com/curio-ai/curio/pkg/ai"
	"github.com/curio-ai/curio/pkg/rank"
	"github.com/curio-ai/curio/pkg/types"
	"github.com/curio-ai/curio/pkg/utils"
)

// Clock 可注入的时钟，状态机测试用假时钟驱动
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

// TrainerOptions 训练编排参数
type TrainerOptions struct {
	BatchCap    int // 单次训练样例上限
	MinExamples int // 不足则跳过本轮
	Timeout     time.Duration
}

// TrainMetrics 训练打点，为空则不上报
type TrainMetrics interface {
	TrainingInc(mode, result string)
}

// Trainer 持续训练编排器。
// 每轮 Tick 先对账进行中的任务，再决定是否发起新一轮训练。
// 同一时刻最多一个任务在跑。
type Trainer struct {
	Jobs      store.TrainingJobStore
	Sessions  store.ChatSessionStore
	Messages  store.ChatMessageStore
	Knowledge store.KnowledgeStore // 可为空，空则跳过蒸馏
	Remote    ai.Trainer
	Opts      TrainerOptions
	Clock     Clock
	Metrics   TrainMetrics

	mu           sync.Mutex // cron 触发可能重入，整个 Tick 串行
	cursor       int64      // 会话扫描水位线
	cursorLoaded bool
	pending      map[string][]types.TrainingExample
	disabled     atomic.Bool
}

func NewTrainer(jobs store.TrainingJobStore, sessions store.ChatSessionStore, messages store.ChatMessageStore, knowledge store.KnowledgeStore, remote ai.Trainer, opts TrainerOptions) *Trainer {
	return &Trainer{
		Jobs:      jobs,
		Sessions:  sessions,
		Messages:  messages,
		Knowledge: knowledge,
		Remote:    remote,
		Opts:      opts,
		Clock:     realClock{},
		pending:   make(map[string][]types.TrainingExample),
	}
}

// Enable 恢复训练编排
func (t *Trainer) Enable() {
	t.disabled.Store(false)
	slog.Info("trainer enabled")
}

// Disable 暂停发起新训练，进行中的任务仍由下一轮对账收尾
func (t *Trainer) Disable() {
	t.disabled.Store(true)
	slog.Info("trainer disabled")
}

func (t *Trainer) Enabled() bool {
	return !t.disabled.Load()
}

// Tick 状态机推进一步。任何一步出错只影响本轮，下一轮重新对账。
func (t *Trainer) Tick(ctx context.Context) error {
	if t.Remote == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.cursorLoaded {
		if err := t.loadCursor(ctx); err != nil {
			return fmt.Errorf("trainer: load cursor: %w", err)
		}
	}

	running, err := t.Jobs.GetRunning(ctx)
	if err != nil {
		return fmt.Errorf("trainer: get running job: %w", err)
	}
	if running != nil {
		return t.reconcile(ctx, running)
	}
	if t.disabled.Load() {
		return nil
	}
	return t.maybeStart(ctx)
}

// loadCursor 重启后从最近一条任务记录恢复扫描水位线，避免全量重扫
func (t *Trainer) loadCursor(ctx context.Context) error {
	latest, err := t.Jobs.GetLatest(ctx)
	if err != nil {
		return err
	}
	if latest != nil && latest.Cursor > t.cursor {
		t.cursor = latest.Cursor
	}
	t.cursorLoaded = true
	return nil
}

// reconcile 对账进行中的任务：超时置为失败，否则同步远端状态
func (t *Trainer) reconcile(ctx context.Context, job *types.TrainingJob) error {
	now := t.Clock.Now()
	if now.Sub(time.Unix(job.StartedAt, 0)) > t.Opts.Timeout {
		slog.Warn("training job timed out", slog.String("job_id", job.ID), slog.String("mode", job.Mode.String()))
		delete(t.pending, job.RemoteJobID)
		t.trainingInc(job.Mode, "timeout")
		return t.Jobs.UpdateStatus(ctx, job.ID, types.TRAINING_JOB_FAILED, "timeout", now.Unix())
	}

	status, err := t.Remote.TrainingStatus(ctx, job.RemoteJobID)
	if err != nil {
		// 远端暂时查不到状态，留到下一轮
		slog.Warn("failed to query training status", slog.String("job_id", job.ID), slog.String("error", err.Error()))
		return nil
	}

	switch status {
	case types.TRAINING_JOB_SUCCEEDED:
		slog.Info("training job succeeded", slog.String("job_id", job.ID), slog.String("mode", job.Mode.String()))
		t.distill(ctx, job.RemoteJobID)
		t.trainingInc(job.Mode, "succeeded")
		return t.Jobs.UpdateStatus(ctx, job.ID, types.TRAINING_JOB_SUCCEEDED, "", now.Unix())
	case types.TRAINING_JOB_FAILED:
		slog.Warn("training job failed remotely", slog.String("job_id", job.ID))
		delete(t.pending, job.RemoteJobID)
		t.trainingInc(job.Mode, "failed")
		return t.Jobs.UpdateStatus(ctx, job.ID, types.TRAINING_JOB_FAILED, "remote failure", now.Unix())
	default:
		return nil
	}
}

// distill 成功一轮后把本轮问答样例沉淀成 learned 知识，供检索直接命中
func (t *Trainer) distill(ctx context.Context, remoteJobID string) {
	examples := t.pending[remoteJobID]
	delete(t.pending, remoteJobID)
	if t.Knowledge == nil || len(examples) == 0 {
		return
	}

	items := make([]*types.KnowledgeItem, 0, len(examples))
	for _, ex := range examples {
		// 分类样例只是训练素材，问答对才值得沉淀
		if ex.Task != types.AI_TASK_QA {
			continue
		}
		item := &types.KnowledgeItem{
			Topic:      rank.TopicFromQuery(ex.Input),
			Title:      utils.Truncate(ex.Input, 128),
			Content:    ex.Output,
			Source:     types.KNOWLEDGE_SOURCE_LEARNED,
			Confidence: types.KNOWLEDGE_SOURCE_LEARNED.Reliability(),
		}
		if item.Validate() == nil {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return
	}
	if err := t.Knowledge.BatchCreate(ctx, items); err != nil {
		slog.Warn("failed to distill training batch into knowledge", slog.String("error", err.Error()))
	}
}

func (t *Trainer) maybeStart(ctx context.Context) error {
	examples, newCursor, err := t.collectExamples(ctx)
	if err != nil {
		return fmt.Errorf("trainer: collect examples: %w", err)
	}
	if len(examples) < t.Opts.MinExamples {
		slog.Debug("not enough examples for training", slog.Int("count", len(examples)))
		return nil
	}

	mode, err := t.pickMode(ctx)
	if err != nil {
		return fmt.Errorf("trainer: pick mode: %w", err)
	}

	fileID, err := t.Remote.UploadExamples(ctx, fmt.Sprintf("curio-%s-%d", mode, t.Clock.Now().Unix()), examples)
	if err != nil {
		return fmt.Errorf("trainer: upload examples: %w", err)
	}

	remoteID, err := t.Remote.StartTraining(ctx, fileID, mode)
	if err != nil {
		return fmt.Errorf("trainer: start training: %w", err)
	}

	err = t.Jobs.Create(ctx, types.TrainingJob{
		Mode:         mode,
		Status:       types.TRAINING_JOB_RUNNING,
		ExampleCount: len(examples),
		RemoteJobID:  remoteID,
		Cursor:       newCursor,
		StartedAt:    t.Clock.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("trainer: record job: %w", err)
	}

	// 任务成功落库后才推进水位线，失败的批次下一轮会重扫
	t.cursor = newCursor
	if t.pending == nil {
		t.pending = make(map[string][]types.TrainingExample)
	}
	t.pending[remoteID] = examples
	t.trainingInc(mode, "started")
	slog.Info("training job started",
		slog.String("mode", mode.String()),
		slog.Int("examples", len(examples)),
		slog.String("remote_job_id", remoteID))
	return nil
}

// pickMode 从未成功过且远端没有微调模型时走全量，否则增量
func (t *Trainer) pickMode(ctx context.Context) (types.TrainingMode, error) {
	succeeded, err := t.Jobs.HasSucceeded(ctx)
	if err != nil {
		return "", err
	}
	if succeeded {
		return types.TRAINING_MODE_INCREMENTAL, nil
	}
	hasTuned, err := t.Remote.HasTunedModel(ctx)
	if err != nil {
		return "", err
	}
	if hasTuned {
		return types.TRAINING_MODE_INCREMENTAL, nil
	}
	return types.TRAINING_MODE_INITIAL, nil
}

// collectExamples 扫描水位线之后更新过的会话，把 user/assistant 相邻对转成问答样例，
// 带明显情绪的用户消息额外产出一条情感分类样例
func (t *Trainer) collectExamples(ctx context.Context) ([]types.TrainingExample, int64, error) {
	sessions, err := t.Sessions.ListUpdatedSince(ctx, t.cursor, 200)
	if err != nil {
		return nil, t.cursor, err
	}

	var (
		examples  []types.TrainingExample
		newCursor = t.cursor
	)
	for _, session := range sessions {
		if session.UpdatedAt > newCursor {
			newCursor = session.UpdatedAt
		}
		messages, err := t.Messages.ListBySession(ctx, session.ID)
		if err != nil {
			slog.Warn("failed to load session messages", slog.String("session_id", session.ID), slog.String("error", err.Error()))
			continue
		}
		for i := 0; i+1 < len(messages); i++ {
			if messages[i].Role != types.MESSAGE_ROLE_USER || messages[i+1].Role != types.MESSAGE_ROLE_ASSISTANT {
				continue
			}
			examples = append(examples, types.TrainingExample{
				Task:   types.AI_TASK_QA,
				Input:  messages[i].Content,
				Output: messages[i+1].Content,
			})
			if len(examples) >= t.Opts.BatchCap {
				return examples, newCursor, nil
			}
			if label, ok := sentimentLabel(messages[i].Content); ok {
				examples = append(examples, types.TrainingExample{
					Task:   types.AI_TASK_SENTIMENT,
					Input:  messages[i].Content,
					Output: label,
				})
				if len(examples) >= t.Opts.BatchCap {
					return examples, newCursor, nil
				}
			}
		}
	}
	return examples, newCursor, nil
}

var (
	positiveMarkers = []string{"thank", "great", "awesome", "perfect", "helpful", "love it", "nice", "谢谢", "真棒", "厉害"}
	negativeMarkers = []string{"wrong", "bad answer", "terrible", "useless", "not helpful", "doesn't work", "does not work", "错了", "不对", "没用"}
)

// sentimentLabel 只给带明显情绪词的消息打标，立场中立的提问不进分类样例
func sentimentLabel(text string) (string, bool) {
	t := strings.ToLower(text)
	pos := lo.SomeBy(positiveMarkers, func(m string) bool { return strings.Contains(t, m) })
	neg := lo.SomeBy(negativeMarkers, func(m string) bool { return strings.Contains(t, m) })
	switch {
	case pos && !neg:
		return "positive", true
	case neg && !pos:
		return "negative", true
	default:
		return "", false
	}
}

func (t *Trainer) trainingInc(mode types.TrainingMode, result string) {
	if t.Metrics != nil {
		t.Metrics.TrainingInc(mode.String(), result)
	}
}
