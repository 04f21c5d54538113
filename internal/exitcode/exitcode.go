package exitcode

const (
	Success        = 0
	UsageError     = 1
	AssembleError  = 2
	AuthError      = 3
	SubmitError    = 4
	SchedulerError = 5
	ServerError    = 6
)
