package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"mathduel-service/internal/app"
	"mathduel-service/internal/domain"
	"mathduel-service/internal/protocol"
	"mathduel-service/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// MatchUseCases is the slice of the match service the websocket handler drives.
type MatchUseCases interface {
	OnConnect(ctx context.Context, id domain.Identity, t session.Transport)
	JoinQueue(ctx context.Context, id domain.Identity) *app.Match
	SubmitAnswer(ctx context.Context, playerID, questionID string, value int) (app.SubmitOutcome, error)
	Ping(playerID string)
	OnDisconnect(ctx context.Context, t session.Transport)
}

// TokenVerifier resolves a bearer token into a player identity.
type TokenVerifier interface {
	Verify(token string) (domain.Identity, error)
}

type WSHandler struct {
	matches    MatchUseCases
	verifier   TokenVerifier
	logger     *zap.Logger
	sendBuffer int
	upgrader   websocket.Upgrader
}

func NewWSHandler(matches MatchUseCases, verifier TokenVerifier, logger *zap.Logger, sendBuffer int) *WSHandler {
	return &WSHandler{
		matches:    matches,
		verifier:   verifier,
		logger:     logger.Named("ws"),
		sendBuffer: sendBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS authenticates the handshake, upgrades it and runs the connection
// until the client goes away.
func (h *WSHandler) ServeWS(c *gin.Context) {
	id, err := h.verifier.Verify(tokenFromRequest(c.Request))
	if err != nil {
		h.logger.Info("rejected websocket handshake", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.String("player_id", id.UserID), zap.Error(err))
		return
	}

	ctx := c.Request.Context()
	tr := newWSConn(conn, h.sendBuffer, h.logger.With(zap.String("player_id", id.UserID)))
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		tr.writePump()
	}()

	h.matches.OnConnect(ctx, id, tr)
	h.readLoop(ctx, conn, id, tr)

	h.matches.OnDisconnect(ctx, tr)
	_ = tr.Close()
	<-writerDone
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, id domain.Identity, tr *wsConn) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(timeNow().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(timeNow().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("ws read error", zap.String("player_id", id.UserID), zap.Error(err))
			}
			return
		}
		h.dispatch(ctx, id, tr, data)
	}
}

func (h *WSHandler) dispatch(ctx context.Context, id domain.Identity, tr *wsConn, data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		h.reject(tr, "Invalid message format: "+err.Error())
		return
	}

	switch m := msg.(type) {
	case protocol.JoinWaitingRoom:
		h.matches.JoinQueue(ctx, id)
	case protocol.AnswerSubmission:
		if _, err := h.matches.SubmitAnswer(ctx, id.UserID, m.QuestionID, m.Answer); err != nil {
			h.reject(tr, answerError(err))
		}
	case protocol.Ping:
		h.matches.Ping(id.UserID)
	}
}

// reject answers the sender directly; protocol errors never end the connection.
func (h *WSHandler) reject(tr *wsConn, message string) {
	_ = tr.Enqueue(protocol.Error{Message: message})
}

func answerError(err error) string {
	switch {
	case errors.Is(err, domain.ErrNoActiveMatch), errors.Is(err, domain.ErrQuestionNotFound):
		return err.Error()
	default:
		return "Error processing answer"
	}
}

// tokenFromRequest reads ?token= first, then an Authorization bearer header.
func tokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}
