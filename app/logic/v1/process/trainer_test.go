package process

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curio-ai/curio/pkg/types"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type memJobStore struct {
	jobs []*types.TrainingJob
}

func (s *memJobStore) Create(_ context.Context, data types.TrainingJob) error {
	if data.ID == "" {
		data.ID = fmt.Sprintf("job-%d", len(s.jobs)+1)
	}
	s.jobs = append(s.jobs, &data)
	return nil
}

func (s *memJobStore) UpdateStatus(_ context.Context, id string, status types.TrainingJobStatus, failReason string, finishedAt int64) error {
	for _, j := range s.jobs {
		if j.ID == id {
			j.Status = status
			j.FailReason = failReason
			j.FinishedAt = finishedAt
			return nil
		}
	}
	return errors.New("job not found")
}

func (s *memJobStore) GetRunning(_ context.Context) (*types.TrainingJob, error) {
	for _, j := range s.jobs {
		if j.Status == types.TRAINING_JOB_RUNNING {
			return j, nil
		}
	}
	return nil, nil
}

func (s *memJobStore) GetLatest(_ context.Context) (*types.TrainingJob, error) {
	if len(s.jobs) == 0 {
		return nil, nil
	}
	return s.jobs[len(s.jobs)-1], nil
}

func (s *memJobStore) HasSucceeded(_ context.Context) (bool, error) {
	for _, j := range s.jobs {
		if j.Status == types.TRAINING_JOB_SUCCEEDED {
			return true, nil
		}
	}
	return false, nil
}

func (s *memJobStore) List(_ context.Context, _, _ uint64) ([]*types.TrainingJob, error) {
	return s.jobs, nil
}

type memSessionStore struct {
	sessions []*types.ChatSession
}

func (s *memSessionStore) Create(_ context.Context, data types.ChatSession) error {
	s.sessions = append(s.sessions, &data)
	return nil
}

func (s *memSessionStore) Get(_ context.Context, id string) (*types.ChatSession, error) {
	for _, it := range s.sessions {
		if it.ID == id {
			return it, nil
		}
	}
	return nil, nil
}

func (s *memSessionStore) ListUpdatedSince(_ context.Context, updatedAfter int64, _ uint64) ([]*types.ChatSession, error) {
	var res []*types.ChatSession
	for _, it := range s.sessions {
		if it.UpdatedAt > updatedAfter {
			res = append(res, it)
		}
	}
	return res, nil
}

func (s *memSessionStore) Touch(_ context.Context, id string, updatedAt int64) error { return nil }

type memMessageStore struct {
	messages map[string][]*types.ChatMessage
}

func (s *memMessageStore) Create(_ context.Context, data types.ChatMessage) error {
	if s.messages == nil {
		s.messages = map[string][]*types.ChatMessage{}
	}
	s.messages[data.SessionID] = append(s.messages[data.SessionID], &data)
	return nil
}

func (s *memMessageStore) ListLatest(_ context.Context, sessionID string, n uint64) ([]*types.ChatMessage, error) {
	msgs := s.messages[sessionID]
	if uint64(len(msgs)) > n {
		msgs = msgs[uint64(len(msgs))-n:]
	}
	return msgs, nil
}

func (s *memMessageStore) ListBySession(_ context.Context, sessionID string) ([]*types.ChatMessage, error) {
	return s.messages[sessionID], nil
}

type fakeRemote struct {
	uploads      int
	starts       int
	statuses     map[string]types.TrainingJobStatus
	lastMode     types.TrainingMode
	lastCount    int
	lastExamples []types.TrainingExample
	uploadDelay  time.Duration
	hasTuned     bool
	statusErr    error
}

func (f *fakeRemote) UploadExamples(_ context.Context, name string, examples []types.TrainingExample) (string, error) {
	if f.uploadDelay > 0 {
		time.Sleep(f.uploadDelay)
	}
	f.uploads++
	f.lastCount = len(examples)
	f.lastExamples = examples
	return fmt.Sprintf("file-%d", f.uploads), nil
}

func (f *fakeRemote) StartTraining(_ context.Context, fileID string, mode types.TrainingMode) (string, error) {
	f.starts++
	f.lastMode = mode
	return fmt.Sprintf("remote-%d", f.starts), nil
}

func (f *fakeRemote) TrainingStatus(_ context.Context, remoteJobID string) (types.TrainingJobStatus, error) {
	if f.statusErr != nil {
		return "", f.statusErr
	}
	if status, ok := f.statuses[remoteJobID]; ok {
		return status, nil
	}
	return types.TRAINING_JOB_RUNNING, nil
}

func (f *fakeRemote) HasTunedModel(_ context.Context) (bool, error) {
	return f.hasTuned, nil
}

func seedSessions(sessions *memSessionStore, messages *memMessageStore, count int, updatedAt int64) {
	for i := 0; i < count; i++ {
		id := fmt.Sprintf("s%d-%d", updatedAt, i)
		sessions.sessions = append(sessions.sessions, &types.ChatSession{ID: id, UpdatedAt: updatedAt})
		messages.Create(context.Background(), types.ChatMessage{SessionID: id, Role: types.MESSAGE_ROLE_USER, Content: "q", Sequence: 1})
		messages.Create(context.Background(), types.ChatMessage{SessionID: id, Role: types.MESSAGE_ROLE_ASSISTANT, Content: "a", Sequence: 2})
	}
}

type memKnowledgeStore struct {
	items []*types.KnowledgeItem
}

func (s *memKnowledgeStore) Create(_ context.Context, data types.KnowledgeItem) error {
	s.items = append(s.items, &data)
	return nil
}

func (s *memKnowledgeStore) BatchCreate(_ context.Context, datas []*types.KnowledgeItem) error {
	s.items = append(s.items, datas...)
	return nil
}

func (s *memKnowledgeStore) Get(_ context.Context, id string) (*types.KnowledgeItem, error) {
	for _, it := range s.items {
		if it.ID == id {
			return it, nil
		}
	}
	return nil, nil
}

func (s *memKnowledgeStore) ListByKeywords(_ context.Context, _ []string, _ uint64) ([]*types.KnowledgeItem, error) {
	return s.items, nil
}

func (s *memKnowledgeStore) ListByTopic(_ context.Context, topic string, _ uint64) ([]*types.KnowledgeItem, error) {
	var res []*types.KnowledgeItem
	for _, it := range s.items {
		if it.Topic == topic {
			res = append(res, it)
		}
	}
	return res, nil
}

func (s *memKnowledgeStore) ListRecent(_ context.Context, _ uint64) ([]*types.KnowledgeItem, error) {
	return s.items, nil
}

func (s *memKnowledgeStore) MarkStale(_ context.Context, topic string) error {
	var kept []*types.KnowledgeItem
	for _, it := range s.items {
		if it.Topic != topic {
			kept = append(kept, it)
		}
	}
	s.items = kept
	return nil
}

func (s *memKnowledgeStore) MarkStaleBefore(_ context.Context, before int64) (int64, error) {
	var (
		kept    []*types.KnowledgeItem
		removed int64
	)
	for _, it := range s.items {
		if it.Source != types.KNOWLEDGE_SOURCE_CURATED && it.LearnedAt < before {
			removed++
			continue
		}
		kept = append(kept, it)
	}
	s.items = kept
	return removed, nil
}

func (s *memKnowledgeStore) Total(_ context.Context) (int64, error) {
	return int64(len(s.items)), nil
}

func newTestTrainer(jobs *memJobStore, sessions *memSessionStore, messages *memMessageStore, remote *fakeRemote, clock *fakeClock) *Trainer {
	tr := NewTrainer(jobs, sessions, messages, nil, remote, TrainerOptions{
		BatchCap:    100,
		MinExamples: 2,
		Timeout:     time.Hour,
	})
	tr.Clock = clock
	return tr
}

func TestTrainerStartsInitialTraining(t *testing.T) {
	jobs := &memJobStore{}
	sessions := &memSessionStore{}
	messages := &memMessageStore{}
	seedSessions(sessions, messages, 3, 100)
	remote := &fakeRemote{}
	clock := &fakeClock{now: time.Unix(1000, 0)}

	tr := newTestTrainer(jobs, sessions, messages, remote, clock)
	require.NoError(t, tr.Tick(context.Background()))

	assert.Equal(t, 1, remote.starts)
	assert.Equal(t, types.TRAINING_MODE_INITIAL, remote.lastMode)
	assert.Equal(t, 3, remote.lastCount)

	running, err := jobs.GetRunning(context.Background())
	require.NoError(t, err)
	require.NotNil(t, running)
	assert.Equal(t, "remote-1", running.RemoteJobID)
}

func TestTrainerSingleJobAtATime(t *testing.T) {
	jobs := &memJobStore{}
	sessions := &memSessionStore{}
	messages := &memMessageStore{}
	seedSessions(sessions, messages, 3, 100)
	remote := &fakeRemote{}
	clock := &fakeClock{now: time.Unix(1000, 0)}
	tr := newTestTrainer(jobs, sessions, messages, remote, clock)

	require.NoError(t, tr.Tick(context.Background()))
	// 任务还在跑，第二轮不应再发起训练
	require.NoError(t, tr.Tick(context.Background()))

	assert.Equal(t, 1, remote.starts)
}

func TestTrainerTimesOutStuckJob(t *testing.T) {
	jobs := &memJobStore{}
	sessions := &memSessionStore{}
	messages := &memMessageStore{}
	seedSessions(sessions, messages, 3, 100)
	remote := &fakeRemote{}
	clock := &fakeClock{now: time.Unix(1000, 0)}
	tr := newTestTrainer(jobs, sessions, messages, remote, clock)

	require.NoError(t, tr.Tick(context.Background()))
	clock.Advance(time.Hour + time.Minute)
	require.NoError(t, tr.Tick(context.Background()))

	latest, err := jobs.GetLatest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.TRAINING_JOB_FAILED, latest.Status)
	assert.Equal(t, "timeout", latest.FailReason)
}

func TestTrainerSwitchesToIncrementalAfterSuccess(t *testing.T) {
	jobs := &memJobStore{}
	sessions := &memSessionStore{}
	messages := &memMessageStore{}
	seedSessions(sessions, messages, 3, 100)
	remote := &fakeRemote{statuses: map[string]types.TrainingJobStatus{}}
	clock := &fakeClock{now: time.Unix(1000, 0)}
	tr := newTestTrainer(jobs, sessions, messages, remote, clock)

	require.NoError(t, tr.Tick(context.Background()))
	assert.Equal(t, types.TRAINING_MODE_INITIAL, remote.lastMode)

	// 远端训练完成，下一轮对账落成 succeeded
	remote.statuses["remote-1"] = types.TRAINING_JOB_SUCCEEDED
	require.NoError(t, tr.Tick(context.Background()))

	// 新会话到来，再训练时应该是增量
	seedSessions(sessions, messages, 3, 200)
	require.NoError(t, tr.Tick(context.Background()))

	assert.Equal(t, 2, remote.starts)
	assert.Equal(t, types.TRAINING_MODE_INCREMENTAL, remote.lastMode)
}

func TestTrainerBatchCap(t *testing.T) {
	jobs := &memJobStore{}
	sessions := &memSessionStore{}
	messages := &memMessageStore{}
	seedSessions(sessions, messages, 150, 100)
	remote := &fakeRemote{}
	clock := &fakeClock{now: time.Unix(1000, 0)}
	tr := newTestTrainer(jobs, sessions, messages, remote, clock)

	require.NoError(t, tr.Tick(context.Background()))

	assert.Equal(t, 100, remote.lastCount)
}

func TestTrainerSkipsWhenTooFewExamples(t *testing.T) {
	jobs := &memJobStore{}
	sessions := &memSessionStore{}
	messages := &memMessageStore{}
	seedSessions(sessions, messages, 1, 100)
	remote := &fakeRemote{}
	clock := &fakeClock{now: time.Unix(1000, 0)}
	tr := newTestTrainer(jobs, sessions, messages, remote, clock)

	require.NoError(t, tr.Tick(context.Background()))

	assert.Zero(t, remote.starts)
}

func TestTrainerDistillsSucceededBatch(t *testing.T) {
	jobs := &memJobStore{}
	sessions := &memSessionStore{}
	messages := &memMessageStore{}
	knowledge := &memKnowledgeStore{}
	remote := &fakeRemote{statuses: map[string]types.TrainingJobStatus{}}
	clock := &fakeClock{now: time.Unix(1000, 0)}

	tr := newTestTrainer(jobs, sessions, messages, remote, clock)
	tr.Knowledge = knowledge

	sessions.sessions = append(sessions.sessions, &types.ChatSession{ID: "s1", UpdatedAt: 100})
	messages.Create(context.Background(), types.ChatMessage{SessionID: "s1", Role: types.MESSAGE_ROLE_USER, Content: "why is the sky blue", Sequence: 1})
	messages.Create(context.Background(), types.ChatMessage{SessionID: "s1", Role: types.MESSAGE_ROLE_ASSISTANT, Content: "Rayleigh scattering favors short wavelengths.", Sequence: 2})
	messages.Create(context.Background(), types.ChatMessage{SessionID: "s1", Role: types.MESSAGE_ROLE_USER, Content: "what causes tides", Sequence: 3})
	messages.Create(context.Background(), types.ChatMessage{SessionID: "s1", Role: types.MESSAGE_ROLE_ASSISTANT, Content: "The moon's gravitational pull.", Sequence: 4})

	require.NoError(t, tr.Tick(context.Background()))
	require.Empty(t, knowledge.items)

	remote.statuses["remote-1"] = types.TRAINING_JOB_SUCCEEDED
	require.NoError(t, tr.Tick(context.Background()))

	// 成功的批次沉淀为 learned 知识
	require.Len(t, knowledge.items, 2)
	assert.Equal(t, types.KNOWLEDGE_SOURCE_LEARNED, knowledge.items[0].Source)
	assert.Equal(t, "Rayleigh scattering favors short wavelengths.", knowledge.items[0].Content)

	// 失败的批次不沉淀
	seedSessions(sessions, messages, 3, 200)
	require.NoError(t, tr.Tick(context.Background()))
	remote.statuses["remote-2"] = types.TRAINING_JOB_FAILED
	require.NoError(t, tr.Tick(context.Background()))
	assert.Len(t, knowledge.items, 2)
}

func TestTrainerConcurrentTicksStartSingleJob(t *testing.T) {
	jobs := &memJobStore{}
	sessions := &memSessionStore{}
	messages := &memMessageStore{}
	seedSessions(sessions, messages, 3, 100)
	remote := &fakeRemote{uploadDelay: time.Millisecond * 200}
	clock := &fakeClock{now: time.Unix(1000, 0)}
	tr := newTestTrainer(jobs, sessions, messages, remote, clock)

	// 调度器触发可能重叠，慢上传也只允许一个任务落地
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, tr.Tick(context.Background()))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, remote.starts)
	assert.Len(t, jobs.jobs, 1)
}

func TestSentimentLabel(t *testing.T) {
	label, ok := sentimentLabel("this answer is wrong and useless")
	require.True(t, ok)
	assert.Equal(t, "negative", label)

	label, ok = sentimentLabel("thanks, that was really helpful")
	require.True(t, ok)
	assert.Equal(t, "positive", label)

	_, ok = sentimentLabel("what is the capital of france")
	assert.False(t, ok)

	// 混合情绪不打标
	_, ok = sentimentLabel("great explanation but the numbers are wrong")
	assert.False(t, ok)
}

func TestTrainerEmitsSentimentExamples(t *testing.T) {
	jobs := &memJobStore{}
	sessions := &memSessionStore{}
	messages := &memMessageStore{}
	remote := &fakeRemote{}
	clock := &fakeClock{now: time.Unix(1000, 0)}
	tr := newTestTrainer(jobs, sessions, messages, remote, clock)

	sessions.sessions = append(sessions.sessions, &types.ChatSession{ID: "s1", UpdatedAt: 100})
	messages.Create(context.Background(), types.ChatMessage{SessionID: "s1", Role: types.MESSAGE_ROLE_USER, Content: "what is raft", Sequence: 1})
	messages.Create(context.Background(), types.ChatMessage{SessionID: "s1", Role: types.MESSAGE_ROLE_ASSISTANT, Content: "A consensus algorithm.", Sequence: 2})
	messages.Create(context.Background(), types.ChatMessage{SessionID: "s1", Role: types.MESSAGE_ROLE_USER, Content: "thank you, that was helpful", Sequence: 3})
	messages.Create(context.Background(), types.ChatMessage{SessionID: "s1", Role: types.MESSAGE_ROLE_ASSISTANT, Content: "Happy to help.", Sequence: 4})

	require.NoError(t, tr.Tick(context.Background()))
	require.Equal(t, 1, remote.starts)

	var qa, sentiment int
	var label string
	for _, ex := range remote.lastExamples {
		switch ex.Task {
		case types.AI_TASK_QA:
			qa++
		case types.AI_TASK_SENTIMENT:
			sentiment++
			label = ex.Output
		}
	}
	assert.Equal(t, 2, qa)
	assert.Equal(t, 1, sentiment)
	assert.Equal(t, "positive", label)
}

func TestTrainerResumesCursorFromLastJob(t *testing.T) {
	jobs := &memJobStore{jobs: []*types.TrainingJob{{
		ID:         "job-1",
		Mode:       types.TRAINING_MODE_INITIAL,
		Status:     types.TRAINING_JOB_SUCCEEDED,
		Cursor:     150,
		StartedAt:  900,
		FinishedAt: 950,
	}}}
	sessions := &memSessionStore{}
	messages := &memMessageStore{}
	// 水位线之前的会话已经训练过，重启后不应重扫
	seedSessions(sessions, messages, 5, 100)
	seedSessions(sessions, messages, 2, 200)
	remote := &fakeRemote{}
	clock := &fakeClock{now: time.Unix(1000, 0)}
	tr := newTestTrainer(jobs, sessions, messages, remote, clock)

	require.NoError(t, tr.Tick(context.Background()))

	assert.Equal(t, 1, remote.starts)
	assert.Equal(t, 2, remote.lastCount)
}

type fakeTrainMetrics struct {
	events []string
}

func (f *fakeTrainMetrics) TrainingInc(mode, result string) {
	f.events = append(f.events, mode+"/"+result)
}

func TestTrainerReportsTrainingMetrics(t *testing.T) {
	jobs := &memJobStore{}
	sessions := &memSessionStore{}
	messages := &memMessageStore{}
	seedSessions(sessions, messages, 3, 100)
	remote := &fakeRemote{statuses: map[string]types.TrainingJobStatus{}}
	clock := &fakeClock{now: time.Unix(1000, 0)}
	tr := newTestTrainer(jobs, sessions, messages, remote, clock)
	m := &fakeTrainMetrics{}
	tr.Metrics = m

	require.NoError(t, tr.Tick(context.Background()))
	remote.statuses["remote-1"] = types.TRAINING_JOB_SUCCEEDED
	require.NoError(t, tr.Tick(context.Background()))

	assert.Equal(t, []string{"initial/started", "initial/succeeded"}, m.events)
}

func TestTrainerSurvivesStatusErrors(t *testing.T) {
	jobs := &memJobStore{}
	sessions := &memSessionStore{}
	messages := &memMessageStore{}
	seedSessions(sessions, messages, 3, 100)
	remote := &fakeRemote{}
	clock := &fakeClock{now: time.Unix(1000, 0)}
	tr := newTestTrainer(jobs, sessions, messages, remote, clock)

	require.NoError(t, tr.Tick(context.Background()))

	// 状态查询失败不应让编排器出错，任务留给下一轮
	remote.statusErr = errors.New("api down")
	require.NoError(t, tr.Tick(context.Background()))

	running, err := jobs.GetRunning(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, running)
}
