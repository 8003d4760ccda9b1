package model

// DrawResult is one published draw as reported by the result feed.
type DrawResult struct {
	Issue string `json:"issue"` // opaque; compared for equality only
	Sum   int    `json:"sum"`
	Time  string `json:"time"` // "MM-DD HH:MM:SS", UTC+8, no year
}
