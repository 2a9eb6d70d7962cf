package types

type TrainingMode string

const (
	TRAINING_MODE_INITIAL     TrainingMode = "initial"
	TRAINING_MODE_INCREMENTAL TrainingMode = "incremental"
)

func (m TrainingMode) String() string {
	return string(m)
}

type TrainingJobStatus string

const (
	TRAINING_JOB_QUEUED    TrainingJobStatus = "queued"
	TRAINING_JOB_RUNNING   TrainingJobStatus = "running"
	TRAINING_JOB_SUCCEEDED TrainingJobStatus = "succeeded"
	TRAINING_JOB_FAILED    TrainingJobStatus = "failed"
)

func (s TrainingJobStatus) String() string {
	return string(s)
}

// TrainingJob 一次训练任务的留痕
// RemoteJobID 对应模型服务侧的任务句柄，同一时刻最多存在一个 running 任务
type TrainingJob struct {
	ID           string            `json:"id" db:"id"`
	Mode         TrainingMode      `json:"mode" db:"mode"`
	Status       TrainingJobStatus `json:"status" db:"status"`
	ExampleCount int               `json:"example_count" db:"example_count"`
	RemoteJobID  string            `json:"remote_job_id" db:"remote_job_id"`
	Cursor       int64             `json:"cursor" db:"cursor"`
	FailReason   string            `json:"fail_reason" db:"fail_reason"`
	StartedAt    int64             `json:"started_at" db:"started_at"`
	FinishedAt   int64             `json:"finished_at" db:"finished_at"`
}

// TrainingExample 由会话记录转换出的训练样例
type TrainingExample struct {
	Task   AITask `json:"task"`
	Input  string `json:"input"`
	Output string `json:"output"`
}
