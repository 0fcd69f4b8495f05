package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrorTestSuite struct {
	suite.Suite
}

func TestErrorSuite(t *testing.T) {
	suite.Run(t, new(ErrorTestSuite))
}

func (suite *ErrorTestSuite) TestNew() {
	err := New(ErrCodeInsufficientFunds, "cash balance too low")
	suite.Equal(ErrCodeInsufficientFunds, err.Code)
	suite.Contains(err.Error(), "cash balance too low")
	suite.Contains(err.Error(), "505")
}

func (suite *ErrorTestSuite) TestNewf() {
	err := Newf(ErrCodeDataNotFound, "no quote for %s", "AAPL")
	suite.Equal(ErrCodeDataNotFound, err.Code)
	suite.Contains(err.Error(), "no quote for AAPL")
}

func (suite *ErrorTestSuite) TestWrapUnwrap() {
	cause := fmt.Errorf("connection refused")
	err := Wrap(ErrCodeQueryFailed, "failed to load account", cause)

	suite.Equal(ErrCodeQueryFailed, err.Code)
	suite.ErrorIs(err, cause)
	suite.Contains(err.Error(), "connection refused")
}

func (suite *ErrorTestSuite) TestGetCode() {
	err := New(ErrCodeOutsideSession, "market closed")
	suite.Equal(ErrCodeOutsideSession, GetCode(err))

	// Non-typed errors fall back to unknown.
	suite.Equal(ErrCodeUnknown, GetCode(fmt.Errorf("plain error")))
	suite.Equal(ErrCodeUnknown, GetCode(nil))
}

func (suite *ErrorTestSuite) TestGetCodeWrappedChain() {
	inner := New(ErrCodeAdvisorRateLimited, "429 from upstream")
	outer := fmt.Errorf("judging sentiment: %w", inner)

	suite.Equal(ErrCodeAdvisorRateLimited, GetCode(outer))
	suite.True(IsRateLimited(outer))
}

func (suite *ErrorTestSuite) TestIsRejection() {
	suite.True(IsRejection(New(ErrCodeInsufficientFunds, "")))
	suite.True(IsRejection(New(ErrCodeInsufficientShares, "")))
	suite.True(IsRejection(New(ErrCodeOutsideSession, "")))
	suite.True(IsRejection(New(ErrCodePositionAlreadyOpen, "")))
	suite.False(IsRejection(New(ErrCodeQueryFailed, "")))
	suite.False(IsRejection(New(ErrCodeLedgerCorrupted, "")))
}
