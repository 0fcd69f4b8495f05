package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown  ErrorCode = 1
	ErrCodeInternal ErrorCode = 2

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidOrder         ErrorCode = 102
	ErrCodeInvalidQuantity      ErrorCode = 103
	ErrCodeInvalidPrice         ErrorCode = 104
	ErrCodeMissingParameter     ErrorCode = 105

	// Data/Repository errors (200-299)
	ErrCodeDataNotFound   ErrorCode = 200
	ErrCodeQueryFailed    ErrorCode = 201
	ErrCodeStoreUnhealthy ErrorCode = 202
	ErrCodeConflict       ErrorCode = 203

	// Quote errors (300-399)
	ErrCodeQuoteUnavailable ErrorCode = 300
	ErrCodeQuoteMalformed   ErrorCode = 301
	ErrCodeQuoteStale       ErrorCode = 302

	// Advisor errors (400-499)
	ErrCodeAdvisorUnavailable ErrorCode = 400
	ErrCodeAdvisorRateLimited ErrorCode = 401
	ErrCodeAdvisorBadResponse ErrorCode = 402

	// Order lifecycle errors (500-599)
	ErrCodeOrderNotFound       ErrorCode = 500
	ErrCodeOrderTerminal       ErrorCode = 501
	ErrCodeOrderCheckFailed    ErrorCode = 502
	ErrCodeExecutionFailed     ErrorCode = 503
	ErrCodePositionNotFound    ErrorCode = 504
	ErrCodeInsufficientFunds   ErrorCode = 505
	ErrCodeInsufficientShares  ErrorCode = 506
	ErrCodePositionAlreadyOpen ErrorCode = 507

	// Ledger errors (600-699)
	ErrCodeLedgerCorrupted  ErrorCode = 600
	ErrCodeLedgerImbalanced ErrorCode = 601
	ErrCodeAccountNotFound  ErrorCode = 602

	// Session errors (700-799)
	ErrCodeOutsideSession ErrorCode = 700
)
