package errors_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/KirkDiggler/rpg-sheet/internal/errors"
)

type ErrorsTestSuite struct {
	suite.Suite
}

func TestErrorsSuite(t *testing.T) {
	suite.Run(t, new(ErrorsTestSuite))
}

func (s *ErrorsTestSuite) TestNewError() {
	testCases := []struct {
		name     string
		code     errors.Code
		message  string
		expected string
	}{
		{
			name:     "not found error",
			code:     errors.CodeNotFound,
			message:  "session state not found",
			expected: "NOT_FOUND: session state not found",
		},
		{
			name:     "invalid argument error",
			code:     errors.CodeInvalidArgument,
			message:  "import file has no gameState section",
			expected: "INVALID_ARGUMENT: import file has no gameState section",
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			err := errors.New(tc.code, tc.message)
			s.Equal(tc.expected, err.Error())
			s.Equal(tc.code, err.Code)
			s.Equal(tc.message, err.Message)
		})
	}
}

func (s *ErrorsTestSuite) TestErrorWithMeta() {
	err := errors.NotFound("session state not found").
		WithMeta("key", "velsirion-character-state").
		WithMeta("store", "file")

	s.Equal("velsirion-character-state", err.Meta["key"])
	s.Equal("file", err.Meta["store"])
}

func (s *ErrorsTestSuite) TestWrap() {
	baseErr := fmt.Errorf("disk full")
	wrapped := errors.Wrap(baseErr, "failed to write session state")

	s.Equal(errors.CodeInternal, wrapped.Code)
	s.Equal("failed to write session state", wrapped.Message)
	s.Equal(baseErr, wrapped.Unwrap())
	s.Contains(wrapped.Error(), "disk full")
}

func (s *ErrorsTestSuite) TestWrapPreservesCode() {
	baseErr := errors.NotFound("key not found")
	wrapped := errors.Wrap(baseErr, "session state not found")

	s.Equal(errors.CodeNotFound, wrapped.Code)
	s.Equal("session state not found", wrapped.Message)
	s.Equal(baseErr, wrapped.Unwrap())
}

func (s *ErrorsTestSuite) TestWrapWithCode() {
	baseErr := errors.New(errors.CodeInternal, "unexpected token").WithMeta("offset", 12)
	wrapped := errors.WrapWithCode(baseErr, errors.CodeInvalidArgument, "import file is not valid JSON")

	s.Equal(errors.CodeInvalidArgument, wrapped.Code)
	s.Equal("import file is not valid JSON", wrapped.Message)
	s.Equal(12, wrapped.Meta["offset"])
	s.Equal(baseErr, wrapped.Unwrap())
}

func (s *ErrorsTestSuite) TestWrapNil() {
	s.Nil(errors.Wrap(nil, "should be nil"))
	s.Nil(errors.WrapWithCode(nil, errors.CodeNotFound, "should be nil"))
}

func (s *ErrorsTestSuite) TestConstructorFunctions() {
	testCases := []struct {
		name        string
		constructor func() *errors.Error
		code        errors.Code
	}{
		{"NotFound", func() *errors.Error { return errors.NotFound("test") }, errors.CodeNotFound},
		{"InvalidArgument", func() *errors.Error { return errors.InvalidArgument("test") }, errors.CodeInvalidArgument},
		{"Unavailable", func() *errors.Error { return errors.Unavailable("test") }, errors.CodeUnavailable},
		{"DataLoss", func() *errors.Error { return errors.DataLoss("test") }, errors.CodeDataLoss},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			err := tc.constructor()
			s.Equal(tc.code, err.Code)
			s.Equal("test", err.Message)
		})
	}
}

func (s *ErrorsTestSuite) TestFormattedConstructors() {
	err := errors.NotFoundf("key %s not found", "velsirion")
	s.Equal(errors.CodeNotFound, err.Code)
	s.Equal("key velsirion not found", err.Message)

	err2 := errors.InvalidArgumentf("unknown store %q", "postgres")
	s.Equal(errors.CodeInvalidArgument, err2.Code)
	s.Equal(`unknown store "postgres"`, err2.Message)
}

func (s *ErrorsTestSuite) TestErrorIs() {
	err1 := errors.NotFound("test")
	err2 := errors.NotFound("other")
	err3 := errors.InvalidArgument("test")

	s.True(err1.Is(err2))
	s.False(err1.Is(err3))
	s.True(errors.Is(errors.Wrap(err1, "wrapped"), err2))
}

func (s *ErrorsTestSuite) TestHelperFunctions() {
	notFoundErr := errors.NotFound("test")
	invalidErr := errors.InvalidArgument("test")
	wrappedErr := errors.Wrap(notFoundErr, "wrapped")

	s.True(errors.IsNotFound(notFoundErr))
	s.True(errors.IsNotFound(wrappedErr))
	s.False(errors.IsNotFound(invalidErr))

	s.True(errors.IsInvalidArgument(invalidErr))
	s.False(errors.IsInvalidArgument(notFoundErr))

	s.True(errors.IsInternal(fmt.Errorf("plain")))
	s.True(errors.IsUnavailable(errors.Unavailable("redis down")))
	s.True(errors.IsDataLoss(errors.DataLoss("truncated")))
}

func (s *ErrorsTestSuite) TestGetCode() {
	err := errors.NotFound("test")
	wrapped := errors.Wrap(err, "wrapped")

	s.Equal(errors.CodeNotFound, errors.GetCode(err))
	s.Equal(errors.CodeNotFound, errors.GetCode(wrapped))
	s.Equal(errors.CodeInternal, errors.GetCode(fmt.Errorf("standard error")))
	s.Equal(errors.CodeOK, errors.GetCode(nil))
}

func (s *ErrorsTestSuite) TestGetMeta() {
	err := errors.NotFound("test").WithMeta("key", "value")
	wrapped := errors.Wrap(err, "wrapped")

	s.Equal("value", errors.GetMeta(err)["key"])
	s.Equal("value", errors.GetMeta(wrapped)["key"])
	s.Nil(errors.GetMeta(fmt.Errorf("standard error")))
	s.Nil(errors.GetMeta(nil))
}

func (s *ErrorsTestSuite) TestGetMessage() {
	err := errors.NotFound("user friendly message")
	wrapped := errors.Wrap(err, "wrapped message")
	stdErr := fmt.Errorf("standard error")

	s.Equal("user friendly message", errors.GetMessage(err))
	s.Equal("wrapped message", errors.GetMessage(wrapped))
	s.Equal("standard error", errors.GetMessage(stdErr))
	s.Equal("", errors.GetMessage(nil))
}

func (s *ErrorsTestSuite) TestExitCode() {
	testCases := []struct {
		code     errors.Code
		expected int
	}{
		{errors.CodeOK, 0},
		{errors.CodeInvalidArgument, 2},
		{errors.CodeNotFound, 3},
		{errors.CodeUnavailable, 4},
		{errors.CodeInternal, 1},
		{errors.CodeDataLoss, 1},
	}

	for _, tc := range testCases {
		s.Run(tc.code.String(), func() {
			s.Equal(tc.expected, tc.code.ExitCode())
		})
	}
}
