package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/quantumauth-io/quantum-auth-gate/internal/provider"
	"github.com/quantumauth-io/quantum-auth-gate/internal/rpc"
)

// wsChannel is one page's provider port carried over a websocket.
type wsChannel struct {
	id     string
	sender string
	tab    provider.TabInfo
	conn   *websocket.Conn

	writeMu sync.Mutex
}

func (c *wsChannel) ID() string            { return c.id }
func (c *wsChannel) SenderURL() string     { return c.sender }
func (c *wsChannel) Tab() provider.TabInfo { return c.tab }

func (c *wsChannel) Send(ctx context.Context, r rpc.Response) error {
	data, err := json.Marshal(r)
	if err != nil {
		return errors.Wrap(err, "marshal provider response")
	}

	ctx, cancel := context.WithTimeout(ctx, channelWriteTimeout)
	defer cancel()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.Write(ctx, websocket.MessageText, data)
}

// handleProvider serves one provider port. Each frame runs on its own
// goroutine because a call may wait on the user indefinitely.
func (s *Server) handleProvider(c *gin.Context) {
	if s.portName != "" && c.Query(ProviderQueryPort) != s.portName {
		c.JSON(http.StatusBadRequest, extensionResponse{Error: HTTPErrorUnknownPortText})
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		// the pairing token is the guard; extension origins vary per install
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Warn("provider websocket accept failed", "error", err)
		return
	}
	conn.SetReadLimit(s.readLimit)

	ch := &wsChannel{
		id:     uuid.NewString(),
		sender: c.Query(ProviderQuerySender),
		tab: provider.TabInfo{
			Title:      c.Query(ProviderQueryTitle),
			FaviconURL: c.Query(ProviderQueryFavicon),
		},
		conn: conn,
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	var wg sync.WaitGroup
	defer func() {
		s.svc.Disconnect(ch)
		cancel()
		wg.Wait()
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}()

	s.svc.Connect(ch)
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				log.Warn("provider channel read failed", "channel", ch.id, "error", err)
			}
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.svc.HandleMessage(ctx, ch, data)
		}()
	}
}

func (s *Server) handleHost(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Warn("host websocket accept failed", "error", err)
		return
	}
	conn.SetReadLimit(s.readLimit)
	defer conn.Close(websocket.StatusNormalClosure, "")

	s.hub.ServeConn(c.Request.Context(), conn)
}
