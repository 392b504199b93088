package handler

// CreateUserRequest is the provisioning request body. Only presence is
// validated here; email format and password strength are the identity
// store's concern.
type CreateUserRequest struct {
	Email                       string  `json:"email"                         validate:"required"`
	Password                    string  `json:"password"                      validate:"required"`
	FullName                    string  `json:"full_name"                     validate:"required"`
	Phone                       string  `json:"phone"`
	Role                        string  `json:"role"                          validate:"required"`
	DefaultCommissionPercentage float64 `json:"default_commission_percentage"`
}

// CreatedUserPayload echoes the provisioned user back to the caller.
type CreatedUserPayload struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// CreateUserResponse is the success body of the provisioning endpoint.
type CreateUserResponse struct {
	Success bool               `json:"success"`
	User    CreatedUserPayload `json:"user"`
}

// LoginRequest is the password-grant request body.
type LoginRequest struct {
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the access token issued by the identity store.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// UserDetailsPayload is one entry of the user listing.
type UserDetailsPayload struct {
	ID                          string  `json:"id"`
	Email                       string  `json:"email"`
	FullName                    string  `json:"full_name"`
	Phone                       *string `json:"phone"`
	Role                        string  `json:"role"`
	DefaultCommissionPercentage float64 `json:"default_commission_percentage"`
}

// ListUsersResponse is the body of the user listing endpoint.
type ListUsersResponse struct {
	Users []UserDetailsPayload `json:"users"`
}

// UpdateProfileRequest is the partial profile-update request body. Every
// field is optional; absent fields are left untouched.
type UpdateProfileRequest struct {
	FullName                    *string  `json:"full_name"`
	Phone                       *string  `json:"phone"`
	DefaultCommissionPercentage *float64 `json:"default_commission_percentage"`
}

// UpdateRoleRequest is the role-update request body.
type UpdateRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
