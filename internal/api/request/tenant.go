package request

type ProvisionTenant struct {
	Name  string `json:"name" validate:"required,dbname"`
	Notes string `json:"notes"`
}

type SetQuota struct {
	QuotaBytes *int64 `json:"quota_bytes" validate:"required,min=0"`
}

type CheckQuota struct {
	ObservedBytes *int64 `json:"observed_bytes" validate:"required,min=0"`
}

type Suspend struct {
	Reason string `json:"reason" validate:"required"`
}
