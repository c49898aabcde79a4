package config

import "os"

// GetEnv returns the value of the environment variable named by key,
// or defaultValue when it is unset or empty.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// TokenSecret is the HS256 signing key for session tokens.
func TokenSecret() string {
	return os.Getenv("TOKEN_SECRET")
}

// HMACSecret keys the hash applied to verification and forgot-password codes.
func HMACSecret() string {
	return os.Getenv("HMAC_SECRET")
}

// FCMServerKey authorizes requests against the FCM send endpoint.
func FCMServerKey() string {
	return os.Getenv("FCM_SERVER_KEY")
}

// SendGridConfig returns the API key, sender address and sender name
// used for verification emails.
func SendGridConfig() (string, string, string) {
	key := os.Getenv("SENDGRID_API_KEY")
	from := GetEnv("MAIL_FROM", "no-reply@medtrack.app")
	name := GetEnv("MAIL_FROM_NAME", "MedTrack")
	return key, from, name
}
