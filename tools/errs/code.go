package errs

// Error codes grouped by concern. 1xxx general, 2xxx signaling, 3xxx storage.
const (
	CodeInvalidRequest = 1001
	CodeUnauthorized   = 1002

	CodeStaleSignal     = 2001
	CodeGlare           = 2002
	CodePresenceExpired = 2003
	CodeChannelConflict = 2004
	CodeCallEnded       = 2005

	CodeStorageUnavailable = 3001
)

var (
	ErrInvalidRequest = NewCodeError(CodeInvalidRequest, "invalid request")
	ErrUnauthorized   = NewCodeError(CodeUnauthorized, "unauthorized")

	// ErrStaleSignal marks an answer or candidate that references no live
	// call session; the caller should resync, not retry.
	ErrStaleSignal = NewCodeError(CodeStaleSignal, "stale signal")

	// ErrGlare is returned to the losing side of a simultaneous-offer race.
	ErrGlare = NewCodeError(CodeGlare, "simultaneous offer lost glare resolution")

	ErrPresenceExpired = NewCodeError(CodePresenceExpired, "recipient unreachable")
	ErrChannelConflict = NewCodeError(CodeChannelConflict, "channel replaced by newer connection")
	ErrCallEnded       = NewCodeError(CodeCallEnded, "call already ended")

	ErrStorageUnavailable = NewCodeError(CodeStorageUnavailable, "storage unavailable")
)
