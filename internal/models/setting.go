package models

// Setting keys read by the inbound pipeline.
const (
	SettingIgnoreGroupMessages = "CheckMsgIsGroup"
	SettingCall                = "call"
)

const (
	SettingEnabled  = "enabled"
	SettingDisabled = "disabled"
)

// Setting is a key/value flag of the settings store.
type Setting struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}
