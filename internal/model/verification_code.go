package model

// VerificationCode is the single active code of one (email, purpose) key.
// Times are unix seconds; ConsumedAt stays 0 until the code is retired.
type VerificationCode struct {
	Email        string `json:"email"`
	Purpose      string `json:"purpose"`
	CodeHash     string `json:"code_hash"`
	CreatedAt    int64  `json:"created_at"`
	ExpiresAt    int64  `json:"expires_at"`
	ConsumedAt   int64  `json:"consumed_at"`
	AttemptCount int    `json:"attempt_count"`
}

func (c *VerificationCode) Consumed() bool {
	return c.ConsumedAt != 0
}

func (c *VerificationCode) Expired(now int64) bool {
	return now > c.ExpiresAt
}

func (c *VerificationCode) Clone() *VerificationCode {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}
