package request

type EnqueueRestore struct {
	ObjectKey string `json:"object_key" validate:"required"`
}

type EnqueueModules struct {
	Install []string `json:"install" validate:"omitempty,dive,dbname"`
	Upgrade []string `json:"upgrade" validate:"omitempty,dive,dbname"`
}
