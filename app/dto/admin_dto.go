package dto

// AdminDTO is the outward representation of an operator account
type AdminDTO struct {
	ID       uint   `json:"id"`
	UUID     string `json:"uuid"`
	Username string `json:"username"`
	IsActive *bool  `json:"is_active"`
}

// AdminLoginRequest authenticates an operator
type AdminLoginRequest struct {
	Username string `json:"username" validate:"required,min=3,max=255"`
	Password string `json:"password" validate:"required,min=8,max=100"`
}

// AdminSessionDTO carries the issued access token
type AdminSessionDTO struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// AdminLoginResponse bundles the admin and its session
type AdminLoginResponse struct {
	Admin   AdminDTO        `json:"admin"`
	Session AdminSessionDTO `json:"session"`
}
