package common

import "fmt"

var (
	// State keys
	stateWatermark string = "%s:state:watermark" // prefix
	stateProcessed string = "%s:state:processed" // prefix

	// Poller keys
	pollerLock string = "%s:poller:lock:%s" // prefix, chatId
)

var Keys = &redisKeys{}

type redisKeys struct{}

// State keys
func (rk *redisKeys) StateWatermark(prefix string) string {
	return fmt.Sprintf(stateWatermark, prefix)
}

func (rk *redisKeys) StateProcessed(prefix string) string {
	return fmt.Sprintf(stateProcessed, prefix)
}

// Poller keys
func (rk *redisKeys) PollerLock(prefix string, chatID int64) string {
	return fmt.Sprintf(pollerLock, prefix, fmt.Sprint(chatID))
}
