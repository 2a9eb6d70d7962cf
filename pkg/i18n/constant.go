package i18n

var ALLOW_LANG = map[string]bool{
	"en":    true,
	"zh-CN": true,
}

const DEFAULT_LANG = "en"

const (
	ERROR_INTERNAL          = "error.internal"
	ERROR_NOT_FOUND         = "error.notfound"
	ERROR_INVALIDARGUMENT   = "error.invalidargument"
	ERROR_TOO_MANY_REQUESTS = "error.tooManyRequests"
	ERROR_UNSUPPORTED_TASK  = "error.unsupported.task"

	MESSAGE_GREETING        = "message.smalltalk.greeting"
	MESSAGE_IDENTITY        = "message.smalltalk.identity"
	MESSAGE_THANKS          = "message.smalltalk.thanks"
	MESSAGE_COMPLIMENT      = "message.smalltalk.compliment"
	MESSAGE_CLARIFY         = "message.router.clarify"
	MESSAGE_APOLOGY         = "message.router.apology"
	MESSAGE_DEGRADED_PREFIX = "message.router.degraded_prefix"
)
