package types

import "fmt"

type TableName string

func (s TableName) Name() string {
	return fmt.Sprintf("%s%s", TABLE_PREFIX, s)
}

const TABLE_PREFIX = "curio_"

const (
	TABLE_KNOWLEDGE    = TableName("knowledge")
	TABLE_TOPIC        = TableName("topic")
	TABLE_USER_QUERY   = TableName("user_query")
	TABLE_ANSWER       = TableName("answer")
	TABLE_CHAT_SESSION = TableName("chat_session")
	TABLE_CHAT_MESSAGE = TableName("chat_message")
	TABLE_USER_MEMORY  = TableName("user_memory")
	TABLE_TRAINING_JOB = TableName("training_job")
)
