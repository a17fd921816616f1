package models

type Usage struct {
	UserID       string `json:"user_id"`
	StorageUsed  int64  `json:"storage_used"`
	StorageLimit int64  `json:"storage_limit"`
}

func (u Usage) Remaining() int64 {
	if u.StorageUsed >= u.StorageLimit {
		return 0
	}
	return u.StorageLimit - u.StorageUsed
}
