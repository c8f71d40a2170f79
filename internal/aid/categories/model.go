package categories

type CreateCategoryRequest struct {
	Name string `json:"name" binding:"required"`
	Code string `json:"code" binding:"required"`
	Unit string `json:"unit" binding:"required"`
}

type UpdateCategoryRequest struct {
	Name       string `json:"name" binding:"required"`
	Code       string `json:"code" binding:"required"`
	Unit       string `json:"unit" binding:"required"`
	IsDisabled bool   `json:"is_disabled"`
}

type AidCategory struct {
	CategoryID uint   `json:"id"`
	Name       string `json:"name"`
	Code       string `json:"code"`
	Unit       string `json:"unit"`
	IsDisabled bool   `json:"is_disabled"`
}
