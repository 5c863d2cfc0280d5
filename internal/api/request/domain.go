package request

type CreateDomain struct {
	Hostname   string `json:"hostname" validate:"required,max=253"`
	TargetType string `json:"target_type" validate:"required,oneof=shop booking page"`
	TargetID   string `json:"target_id" validate:"required,max=64"`
}

type SuspendDomain struct {
	Reason string `json:"reason" validate:"max=500"`
}

type AssignSubdomain struct {
	Slug string `json:"slug" validate:"required,dnslabel"`
}
