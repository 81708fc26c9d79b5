package sessions

const (
	// Store keys. Values are written through the encrypting store.
	AccessTokenKey       = "elemo_at"
	AccessTokenExpiryKey = "elemo_at_exp"
	UserKey              = "elemo_user"

	// Cookie names.
	AccessTokenCookie  = "elemo_at"
	RefreshTokenCookie = "elemo_rt"

	// AuthKeyPrefix marks every key owned by the session layer.
	AuthKeyPrefix = "elemo_"
)

// legacyKeys were used by earlier client versions and are only removed by
// ClearAllAuthData.
var legacyKeys = []string{
	"access_token",
	"refresh_token",
	"token_expiry",
	"user",
	"auth_token",
	"auth_user",
}
