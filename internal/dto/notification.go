package dto

// NotificationQuery pages the caller's notifications.
type NotificationQuery struct {
	UnreadOnly bool `form:"unread"`
	Limit      int  `form:"limit"`
}

// MarkAllReadResponse reports how many notifications changed.
type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}
