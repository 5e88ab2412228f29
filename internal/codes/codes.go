package codes

// Exit codes returned by the Kotlin compiler CLI
const (
	OK                   = 0
	CompilationError     = 1
	InternalError        = 2
	ScriptExecutionError = 3
	OOMError             = 137
)

// ErrorCodes maps compiler exit codes to their descriptions
var ErrorCodes = map[int]string{
	OK:                   "Success",
	CompilationError:     "Compilation errors",
	InternalError:        "Internal compiler error",
	ScriptExecutionError: "Script execution error",
	OOMError:             "Compiler killed (out of memory)",
}

// IsSuccess returns true if the exit code indicates successful compilation
func IsSuccess(code int) bool {
	return code == OK
}

// GetErrorMessage returns the error message for a given exit code, or a generic message if unknown
func GetErrorMessage(code int) string {
	if msg, ok := ErrorCodes[code]; ok {
		return msg
	}

	return "Unknown error"
}
