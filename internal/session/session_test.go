package session

import (
	"testing"
	"time"

	"github.com/quantfold/papertrade/internal/config"
	"github.com/stretchr/testify/suite"
)

type WindowTestSuite struct {
	suite.Suite
	window *Window
	loc    *time.Location
}

func TestWindowSuite(t *testing.T) {
	suite.Run(t, new(WindowTestSuite))
}

func (suite *WindowTestSuite) SetupSuite() {
	window, err := NewWindow(config.SessionConfig{
		Timezone:  "America/New_York",
		OpenHour:  9,
		OpenMin:   30,
		CloseHour: 16,
		CloseMin:  0,
	})
	suite.Require().NoError(err)

	loc, err := time.LoadLocation("America/New_York")
	suite.Require().NoError(err)

	suite.window = window
	suite.loc = loc
}

func (suite *WindowTestSuite) TestWeekendRejected() {
	// 2025-03-08 is a Saturday.
	saturday := time.Date(2025, 3, 8, 12, 0, 0, 0, suite.loc)

	allowed, reason := suite.window.Allowed(saturday)

	suite.False(allowed)
	suite.Contains(reason, "Saturday")
}

func (suite *WindowTestSuite) TestBeforeOpenRejected() {
	monday := time.Date(2025, 3, 10, 9, 29, 59, 0, suite.loc)

	allowed, reason := suite.window.Allowed(monday)

	suite.False(allowed)
	suite.Contains(reason, "opens at 09:30")
}

func (suite *WindowTestSuite) TestOpenBoundaryInclusive() {
	monday := time.Date(2025, 3, 10, 9, 30, 0, 0, suite.loc)

	allowed, reason := suite.window.Allowed(monday)

	suite.True(allowed)
	suite.Empty(reason)
}

func (suite *WindowTestSuite) TestCloseBoundaryExclusive() {
	monday := time.Date(2025, 3, 10, 16, 0, 0, 0, suite.loc)

	allowed, _ := suite.window.Allowed(monday)

	suite.False(allowed)
}

func (suite *WindowTestSuite) TestMidSessionAllowed() {
	friday := time.Date(2025, 3, 14, 13, 0, 0, 0, suite.loc)

	allowed, _ := suite.window.Allowed(friday)

	suite.True(allowed)
}

func (suite *WindowTestSuite) TestConvertsForeignZones() {
	// 18:00 UTC on a Tuesday is 14:00 in New York during DST.
	tuesday := time.Date(2025, 6, 10, 18, 0, 0, 0, time.UTC)

	allowed, _ := suite.window.Allowed(tuesday)

	suite.True(allowed)
}

func (suite *WindowTestSuite) TestApproachingClose() {
	nearClose := time.Date(2025, 3, 10, 15, 56, 0, 0, suite.loc)
	midDay := time.Date(2025, 3, 10, 12, 0, 0, 0, suite.loc)
	afterClose := time.Date(2025, 3, 10, 16, 1, 0, 0, suite.loc)

	suite.True(suite.window.ApproachingClose(nearClose, 5*time.Minute))
	suite.False(suite.window.ApproachingClose(midDay, 5*time.Minute))
	suite.False(suite.window.ApproachingClose(afterClose, 5*time.Minute))
}

func (suite *WindowTestSuite) TestCloseTime() {
	monday := time.Date(2025, 3, 10, 11, 0, 0, 0, suite.loc)

	closeAt := suite.window.CloseTime(monday)

	suite.Equal(16, closeAt.Hour())
	suite.Equal(0, closeAt.Minute())
	suite.Equal(monday.Day(), closeAt.Day())
}

func (suite *WindowTestSuite) TestInvalidTimezoneRejected() {
	_, err := NewWindow(config.SessionConfig{Timezone: "Mars/Olympus"})

	suite.Error(err)
}
