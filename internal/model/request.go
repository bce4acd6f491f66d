package model

// RequestKind identifies the billable action behind a normalized inbound
// request. The core never sees Telegram-specific message shapes.
type RequestKind string

const (
	KindTranslateText  RequestKind = "translate_text"
	KindTranslateImage RequestKind = "translate_image"
	KindSummarizeVideo RequestKind = "summarize_video"
	KindAnswerFollowup RequestKind = "answer_followup"
)

// Request is the normalized request handed over by the transport layer.
type Request struct {
	UserID    int64       `json:"user_id" validate:"required,gt=0"`
	Kind      RequestKind `json:"kind" validate:"required,oneof=translate_text translate_image summarize_video answer_followup"`
	IsPremium bool        `json:"is_premium"`

	// Payload, one of the following depending on Kind.
	Text       string `json:"text,omitempty"`
	ImageData  []byte `json:"image_data,omitempty"`
	ImageMIME  string `json:"image_mime,omitempty" validate:"omitempty,oneof=image/jpeg image/png image/webp image/gif image/bmp"`
	VideoURL   string `json:"video_url,omitempty" validate:"omitempty,url"`
	Transcript string `json:"transcript,omitempty"`
}
