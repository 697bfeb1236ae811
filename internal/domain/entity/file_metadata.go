package entity

import "time"

type FileMetadata struct {
	ID         string    `json:"id" firestore:"id"`
	URL        string    `json:"url" firestore:"url"`
	MIMEType   string    `json:"mime_type" firestore:"mimeType"`
	Size       int64     `json:"size" firestore:"size"`
	UploadedBy string    `json:"uploaded_by" firestore:"uploadedBy"`
	CreatedAt  time.Time `json:"created_at" firestore:"createdAt"`
}
