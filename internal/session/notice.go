package session

import "time"

const DefaultNoticeDuration = 3 * time.Second

type NoticeKind string

const (
	NoticeInfo    NoticeKind = "info"
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

const (
	noticeSubmitted    = "Feedback submitted successfully! Thanks for training the model."
	noticeSubmitFailed = "Failed to submit feedback. Check the backend server log for details."
)

// Notice is a transient message shown next to the feedback form. It is
// rendered until ExpiresAt and then dropped from the view.
type Notice struct {
	Message   string     `json:"message"`
	Kind      NoticeKind `json:"kind"`
	ExpiresAt time.Time  `json:"expires_at"`
}

func (n Notice) Active(now time.Time) bool {
	return n.Message != "" && now.Before(n.ExpiresAt)
}
