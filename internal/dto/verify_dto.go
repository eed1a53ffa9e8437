package dto

// VerifyRequest starts the verification flow: a code is emailed to the
// student's college address.
type VerifyRequest struct {
	UserID    string `json:"user_id" validate:"required"`
	StudentID string `json:"student_id" validate:"required,len=7"`
	Name      string `json:"name" validate:"required,min=2,max=32"`
}

// VerifyRedeemRequest completes the flow with the emailed one-time code.
type VerifyRedeemRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Code   string `json:"code" validate:"required,len=32,hexadecimal"`
}

// StudentResponse renders a verified member.
type StudentResponse struct {
	StudentID string `json:"student_id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
}
