package errors

// ErrorBuilder assembles a ClassifiedError.
type ErrorBuilder struct {
	err ClassifiedError
}

// NewError starts an error of category. Severity defaults to SeverityError.
func NewError(category ErrorCategory, message string) *ErrorBuilder {
	return &ErrorBuilder{err: ClassifiedError{
		category: category,
		severity: SeverityError,
		message:  message,
		context:  ErrorContext{},
	}}
}

// WrapError starts an error of category wrapping err.
func WrapError(err error, category ErrorCategory, message string) *ErrorBuilder {
	return NewError(category, message).WithCause(err)
}

func (b *ErrorBuilder) WithCause(err error) *ErrorBuilder {
	b.err.cause = err
	return b
}

func (b *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	b.err.context = b.err.context.with(key, value)
	return b
}

func (b *ErrorBuilder) Fatal() *ErrorBuilder {
	b.err.severity = SeverityFatal
	return b
}

func (b *ErrorBuilder) Warning() *ErrorBuilder {
	b.err.severity = SeverityWarning
	return b
}

// UserAction marks the error as fixable only by changing configuration, flags or credentials.
func (b *ErrorBuilder) UserAction() *ErrorBuilder {
	b.err.userAction = true
	return b
}

// Build returns the error. The builder may be reused; each call yields an independent value.
func (b *ErrorBuilder) Build() *ClassifiedError {
	e := b.err
	return &e
}

// ConfigError creates a configuration error.
func ConfigError(message string) *ErrorBuilder {
	return NewError(CategoryConfig, message).Fatal().UserAction()
}

// ValidationError creates an invalid input error.
func ValidationError(message string) *ErrorBuilder {
	return NewError(CategoryValidation, message).Fatal().UserAction()
}

// AuthError creates a credentials error.
func AuthError(message string) *ErrorBuilder {
	return NewError(CategoryAuth, message).Fatal().UserAction()
}

// NotFoundError creates a missing resource error (unknown tag, missing directory).
func NotFoundError(message string) *ErrorBuilder {
	return NewError(CategoryNotFound, message)
}

// NetworkError creates a transport error. Downloads are never retried in-process.
func NetworkError(message string) *ErrorBuilder {
	return NewError(CategoryNetwork, message).Fatal()
}

func GitError(message string) *ErrorBuilder {
	return NewError(CategoryGit, message).Fatal()
}

func GitHubError(message string) *ErrorBuilder {
	return NewError(CategoryGitHub, message).Fatal()
}

func FileSystemError(message string) *ErrorBuilder {
	return NewError(CategoryFileSystem, message)
}

// CommandError creates a generator subprocess failure.
func CommandError(message string) *ErrorBuilder {
	return NewError(CategoryCommand, message).Fatal()
}

// GeneratorError creates an error in generator output, such as a missing sidebar.
func GeneratorError(message string) *ErrorBuilder {
	return NewError(CategoryGenerator, message).Fatal()
}

func RuntimeError(message string) *ErrorBuilder {
	return NewError(CategoryRuntime, message).Fatal()
}

func InternalError(message string) *ErrorBuilder {
	return NewError(CategoryInternal, message).Fatal()
}
