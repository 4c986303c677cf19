// Authentication module
// @req FR:sample-feature/auth.login
// @req FR:sample-feature/auth.logout
package auth

import "time"

// maxSessionAge is 90 minutes in seconds.
const maxSessionAge = 90 * 60

// @req FR:sample-feature/auth.login
// Login logs in a user.
func Login(email, password string) map[string]string {
	return map[string]string{"user_id": "123", "token": "abc"}
}

// @req FR:sample-feature/auth.logout
// Logout logs out a user.
func Logout(session map[string]any) {
}

// @req FR:sample-feature/auth.session.expiry
// CheckSessionExpiry checks if a session has expired.
func CheckSessionExpiry(session map[string]any) bool {
	var createdAt int64
	switch v := session["created_at"].(type) {
	case int64:
		createdAt = v
	case int:
		createdAt = int64(v)
	case float64:
		createdAt = int64(v)
	}
	return time.Now().Unix()-createdAt > maxSessionAge
}
