package service

// Standard structured log field names used across handlers and middleware.
const (
	LogFieldRequestID  = "request_id"
	LogFieldTraceID    = "trace_id"
	LogFieldMethod     = "method"
	LogFieldURL        = "url"
	LogFieldStatusCode = "status_code"
	LogFieldDuration   = "duration_ms"
	LogFieldRemoteIP   = "remote_ip"
	LogFieldUserAgent  = "user_agent"
	LogFieldSize       = "response_size"
	LogFieldService    = "service"
	LogFieldComponent  = "component"
	LogFieldChannel    = "channel"
)
