package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/quantfold/papertrade/internal/logger"
	"github.com/stretchr/testify/suite"
)

type HubTestSuite struct {
	suite.Suite
	hub    *Hub
	server *httptest.Server
}

func TestHubSuite(t *testing.T) {
	suite.Run(t, new(HubTestSuite))
}

func (suite *HubTestSuite) SetupTest() {
	suite.hub = NewHub(logger.NewNopLogger())
	go suite.hub.Run()

	suite.server = httptest.NewServer(http.HandlerFunc(suite.hub.HandleWS))
}

func (suite *HubTestSuite) TearDownTest() {
	suite.server.Close()
}

func (suite *HubTestSuite) dial() *websocket.Conn {
	wsURL := "ws" + strings.TrimPrefix(suite.server.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	suite.Require().NoError(err)

	return conn
}

func (suite *HubTestSuite) waitForClients(n int) {
	suite.Require().Eventually(func() bool {
		suite.hub.mu.RLock()
		defer suite.hub.mu.RUnlock()

		return len(suite.hub.clients) == n
	}, 2*time.Second, 10*time.Millisecond)
}

func (suite *HubTestSuite) readEvent(conn *websocket.Conn) Event {
	suite.Require().NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))

	_, raw, err := conn.ReadMessage()
	suite.Require().NoError(err)

	var event Event
	suite.Require().NoError(json.Unmarshal(raw, &event))

	return event
}

func (suite *HubTestSuite) TestBroadcastReachesClient() {
	conn := suite.dial()
	defer conn.Close()

	suite.waitForClients(1)

	suite.hub.Publish(Event{Type: "signal", Symbol: "AAPL", Payload: map[string]any{"note": "breakout"}})

	event := suite.readEvent(conn)
	suite.Equal("signal", event.Type)
	suite.Equal("AAPL", event.Symbol)
	suite.False(event.Timestamp.IsZero())
}

func (suite *HubTestSuite) TestDisconnectedClientPruned() {
	gone := suite.dial()
	stays := suite.dial()
	defer stays.Close()

	suite.waitForClients(2)

	suite.Require().NoError(gone.Close())
	suite.waitForClients(1)

	suite.hub.Publish(Event{Type: "pressure", Symbol: "MSFT"})

	event := suite.readEvent(stays)
	suite.Equal("pressure", event.Type)
}

func (suite *HubTestSuite) TestPublishNeverBlocks() {
	// With no clients attached the buffer absorbs what it can and the rest
	// is dropped.
	done := make(chan struct{})

	go func() {
		for i := 0; i < 1000; i++ {
			suite.hub.Publish(Event{Type: "pressure", Symbol: "NVDA"})
		}

		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		suite.Fail("publish blocked")
	}
}
