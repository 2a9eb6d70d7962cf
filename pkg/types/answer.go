package types

// AnswerEntry 人工审核过的权威问答
// 命中后原样返回，跳过生成与润色
type AnswerEntry struct {
	ID                 string `json:"id" db:"id"`
	Agent              string `json:"agent" db:"agent"`
	Question           string `json:"question" db:"question"`
	NormalizedQuestion string `json:"normalized_question" db:"normalized_question"`
	Answer             string `json:"answer" db:"answer"`
	CreatedAt          int64  `json:"created_at" db:"created_at"`
	UpdatedAt          int64  `json:"updated_at" db:"updated_at"`
}
