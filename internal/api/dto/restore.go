package dto

// CreateRestoreRequest starts a restore from a stored artifact.
type CreateRestoreRequest struct {
	Path string `json:"path" binding:"required"`
}
