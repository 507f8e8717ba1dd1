package model

// AuthTokens is the credential pair issued by the auth endpoints. Zero
// expiry fields mean the backend did not say.
type AuthTokens struct {
	TokenType        string `json:"token_type,omitempty"`
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token,omitempty"`
	ExpiresIn        int    `json:"expires_in,omitempty"`
	RefreshExpiresIn int    `json:"refresh_expires_in,omitempty"`
}

// LoginResult is the data of a successful POST /api/v1/auth/login.
type LoginResult struct {
	AuthTokens
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}
