package errors

// CodePair maps an error code onto transport status codes.
type CodePair struct {
	HTTPStatus int
	GRPCCode   int
}

var codeMapping = map[string]CodePair{
	ErrInternal:            {500, 13}, // Internal Server Error, INTERNAL
	ErrNotFound:            {404, 5},  // Not Found, NOT_FOUND
	ErrInvalidArgument:     {400, 3},  // Bad Request, INVALID_ARGUMENT
	ErrUnauthenticated:     {401, 16}, // Unauthorized, UNAUTHENTICATED
	ErrUnauthorized:        {403, 7},  // Forbidden, PERMISSION_DENIED
	ErrConflict:            {409, 10}, // Conflict, ABORTED
	ErrTimeout:             {504, 4},  // Gateway Timeout, DEADLINE_EXCEEDED
	ErrNotImplemented:      {501, 12}, // Not Implemented, UNIMPLEMENTED
	ErrInsufficientBalance: {422, 9},  // Unprocessable Entity, FAILED_PRECONDITION
	ErrPaymentFailed:       {402, 9},  // Payment Required, FAILED_PRECONDITION
	ErrInvalidTransition:   {409, 9},  // Conflict, FAILED_PRECONDITION
	ErrIntegrityViolation:  {500, 15}, // Internal Server Error, DATA_LOSS
	ErrDeliveryFailed:      {502, 14}, // Bad Gateway, UNAVAILABLE
}

// GetCodeMapping returns the HTTP status and gRPC code for an error code.
func GetCodeMapping(code string) (int, int) {
	if pair, ok := codeMapping[code]; ok {
		return pair.HTTPStatus, pair.GRPCCode
	}
	return 500, 13
}
