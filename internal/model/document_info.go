package model

const StaticSessionID = "static"

type DocumentInfo struct {
	Filename   string `json:"filename"`
	Size       int64  `json:"size"`
	UploadDate string `json:"upload_date"`
	SessionID  string `json:"session_id"`
	Status     string `json:"status"`
}

type PageText struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

type PageContext struct {
	Filename    string    `json:"filename"`
	TotalPages  int       `json:"total_pages"`
	CurrentPage PageText  `json:"current_page"`
	PrevPage    *PageText `json:"prev_page"`
	NextPage    *PageText `json:"next_page"`
}
