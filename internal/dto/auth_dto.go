package dto

type LoginRequest struct {
	Code string `json:"code" validate:"required"`
}

type LoginResponse struct {
	Status  string `json:"status"`
	UserId  string `json:"user_id"`
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
	Token   string `json:"token"`
}

type MeResponse struct {
	Id         string  `json:"id"`
	Email      string  `json:"email"`
	FullName   string  `json:"full_name"`
	AvatarURL  *string `json:"avatar_url,omitempty"`
	LastSynced *string `json:"last_synced,omitempty"`
}
