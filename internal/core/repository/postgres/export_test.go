package postgres

var (
	IsRetryableError = isRetryableError
	ClassifyError    = classifyError
)
