package tgui

// Telegram Bot API limits for poll fields (sendPoll).
// Anything longer is rejected by the API, so callers must truncate first.
const (
	MaxPollQuestionLen    = 300
	MaxPollOptionLen      = 100
	MaxPollExplanationLen = 200
)

// MaxMessageLen is Telegram's plain message size limit in characters.
const MaxMessageLen = 4096
