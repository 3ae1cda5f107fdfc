package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// UserIDFromToken extracts the marketplace user id from the access token's
// "sub" claim. The token is parsed without signature verification: the client
// only needs an identity hint for the self-bid check, and the server verifies
// the signature on every request anyway.
func UserIDFromToken(accessToken string) (string, error) {
	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(accessToken, jwt.MapClaims{})
	if err != nil {
		return "", fmt.Errorf("failed to parse access token: %v", err)
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("access token has no subject claim")
	}
	return sub, nil
}
