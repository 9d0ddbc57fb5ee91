package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	initialReconnectDelay = time.Second
	maxReconnectDelay     = 30 * time.Second
)

// Listener maintains a websocket subscription to the notification
// channel and hands every order-changed notice to the callback. It
// reconnects with capped backoff until the context is cancelled.
type Listener struct {
	url      string
	onNotice func(Notice)
	logger   *logrus.Logger
}

func NewListener(url string, onNotice func(Notice), logger *logrus.Logger) *Listener {
	return &Listener{
		url:      url,
		onNotice: onNotice,
		logger:   logger,
	}
}

func (l *Listener) Run(ctx context.Context) {
	delay := initialReconnectDelay
	for {
		if ctx.Err() != nil {
			return
		}

		if err := l.listenOnce(ctx); err != nil {
			l.logger.WithError(err).WithField("retry_in", delay.String()).Warn("Notification connection lost, reconnecting")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

func (l *Listener) listenOnce(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, l.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	l.logger.WithField("url", l.url).Info("Connected to notification channel")

	// Close the connection when the context ends so ReadMessage
	// unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(10*time.Second))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		var notice Notice
		if err := json.Unmarshal(data, &notice); err != nil {
			l.logger.WithError(err).Warn("Ignoring malformed notice")
			continue
		}
		if notice.OrderID == "" {
			continue
		}

		l.onNotice(notice)
	}
}
