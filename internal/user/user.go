package user

import "time"

// User is referenced by medications by ID only. The password and the
// verification codes are stored hashed; API responses must use Public.
type User struct {
	ID       string `json:"id" bson:"id"`
	Email    string `json:"email" bson:"email"`
	Password string `json:"password,omitempty" bson:"password"`
	Verified bool   `json:"verified" bson:"verified"`

	// FCMToken is the registered push device token; empty when the user
	// has no device.
	FCMToken string `json:"fcm_token,omitempty" bson:"fcmtoken"`

	VerificationCode             string `json:"verification_code,omitempty" bson:"verificationcode,omitempty"`
	VerificationCodeValidation   int64  `json:"verification_code_validation,omitempty" bson:"verificationcodevalidation,omitempty"`
	ForgotPasswordCode           string `json:"forgot_password_code,omitempty" bson:"forgotpasswordcode,omitempty"`
	ForgotPasswordCodeValidation int64  `json:"forgot_password_code_validation,omitempty" bson:"forgotpasswordcodevalidation,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"createdat"`
	UpdatedAt time.Time `json:"updated_at" bson:"updatedat"`
}

// Public is the subset of User safe to return from the API.
type Public struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) Public() Public {
	return Public{
		ID:        u.ID,
		Email:     u.Email,
		Verified:  u.Verified,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
