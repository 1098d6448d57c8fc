package runtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestWsConnRoundTripsBinaryFrames(t *testing.T) {
	var server *wsConn
	serverReady := make(chan struct{})

	httpServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		server = &wsConn{conn: conn}
		close(serverReady)
	}))
	defer httpServer.Close()

	wsURL := "ws" + strings.TrimPrefix(httpServer.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer client.Close()

	select {
	case <-serverReady:
	case <-time.After(time.Second):
		t.Fatal("server never finished upgrading")
	}

	require.NoError(t, client.WriteMessage(websocket.BinaryMessage, []byte("framed payload")))

	buf := make([]byte, 64)
	n, err := server.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "framed payload", string(buf[:n]))

	_, err = server.Write([]byte("reply payload"))
	require.NoError(t, err)
	msgType, data, err := client.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.BinaryMessage, msgType)
	require.Equal(t, "reply payload", string(data))
}
