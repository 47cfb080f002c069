package constants

const Version = "0.4.0"

// Canonical wire layout for all claim date fields.
const DateLayout = "2006-01-02"

const (
	DefaultRetryMax     = 3
	DefaultRetryWaitMS  = 500
	DefaultTimeoutMS    = 5000
	DefaultHistoryTTLMS = 30000
)

const (
	NotFoundMsg       = "not found"
	ServerErrMsg      = "internal server error"
	InvalidRequestMsg = "invalid request"
)
