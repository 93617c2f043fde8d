package model

const (
	RoleViewer   = "viewer"
	RoleOperator = "operator"
)

type AuthClaims struct {
	UserID  string `json:"sub"`
	Role    string `json:"role"`
	TokenID string `json:"jti"`
}

type IssuedToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}
