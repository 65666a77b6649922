// Package twitch streams a channel's chat over Twitch's IRC WebSocket
// gateway and maps PRIVMSG lines to chat events.
package twitch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/louisbranch/crowdplay/internal/chat"
	"github.com/louisbranch/crowdplay/internal/platform/timeouts"
)

const defaultGatewayURL = "wss://irc-ws.chat.twitch.tv:443"

// ErrNotConnected indicates a send was attempted without an open connection.
var ErrNotConnected = errors.New("twitch connection is not open")

// Config configures the Twitch chat transport.
type Config struct {
	// URL overrides the IRC WebSocket gateway.
	URL string
	// Nick is the bot's Twitch login name.
	Nick string
	// Token is the OAuth password, including the "oauth:" prefix.
	Token string
	// Channel is the channel to join, without the leading '#'.
	Channel string
	// Dialer overrides the WebSocket dialer.
	Dialer *websocket.Dialer
}

// Client reads a Twitch channel's chat and can send messages back to it.
type Client struct {
	cfg     Config
	handler func(chat.Event)

	mu   sync.Mutex
	conn *websocket.Conn
}

// New creates a Twitch chat client delivering events to handler.
func New(cfg Config, handler func(chat.Event)) (*Client, error) {
	cfg.Nick = strings.ToLower(strings.TrimSpace(cfg.Nick))
	cfg.Channel = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(cfg.Channel), "#"))
	if cfg.Nick == "" {
		return nil, errors.New("nick is required")
	}
	if cfg.Channel == "" {
		return nil, errors.New("channel is required")
	}
	if handler == nil {
		return nil, errors.New("event handler is required")
	}
	if strings.TrimSpace(cfg.URL) == "" {
		cfg.URL = defaultGatewayURL
	}
	if cfg.Dialer == nil {
		dialer := *websocket.DefaultDialer
		dialer.HandshakeTimeout = timeouts.TransportDial
		cfg.Dialer = &dialer
	}
	return &Client{cfg: cfg, handler: handler}, nil
}

// Run connects and consumes chat until ctx is done, reconnecting dropped
// connections with exponential backoff.
func (c *Client) Run(ctx context.Context) error {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 0 // reconnect forever
	policy.MaxInterval = time.Minute

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := c.session(ctx); err != nil && ctx.Err() == nil {
			log.Printf("twitch session ended: %v", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		timer := time.NewTimer(policy.NextBackOff())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// session dials, authenticates, joins, and reads until the connection drops.
func (c *Client) session(ctx context.Context) error {
	conn, _, err := c.cfg.Dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial twitch gateway: %w", err)
	}
	defer conn.Close()

	c.setConn(conn)
	defer c.setConn(nil)

	login := []string{
		"CAP REQ :twitch.tv/tags twitch.tv/commands",
		"PASS " + c.cfg.Token,
		"NICK " + c.cfg.Nick,
		"JOIN #" + c.cfg.Channel,
	}
	for _, line := range login {
		if err := c.writeLine(line); err != nil {
			return fmt.Errorf("login: %w", err)
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read twitch message: %w", err)
		}
		for _, line := range strings.Split(string(payload), "\r\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			c.handleLine(line)
		}
	}
}

// SendChatMessage sends text to the joined channel.
func (c *Client) SendChatMessage(_ context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("message text is required")
	}
	return c.writeLine("PRIVMSG #" + c.cfg.Channel + " :" + text)
}

func (c *Client) handleLine(line string) {
	msg := parseLine(line)
	switch msg.command {
	case "PING":
		_ = c.writeLine("PONG :" + msg.trailing)
	case "PRIVMSG":
		if event, ok := privmsgEvent(msg); ok {
			c.handler(event)
		}
	}
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Client) writeLine(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	return c.conn.WriteMessage(websocket.TextMessage, []byte(line))
}

// ircMessage is one parsed IRC line.
type ircMessage struct {
	tags     map[string]string
	prefix   string
	command  string
	params   []string
	trailing string
}

// parseLine splits an IRC line into tags, prefix, command, params, and
// trailing text.
func parseLine(line string) ircMessage {
	msg := ircMessage{tags: map[string]string{}}

	if strings.HasPrefix(line, "@") {
		rawTags, rest, found := strings.Cut(line[1:], " ")
		if !found {
			return msg
		}
		for _, pair := range strings.Split(rawTags, ";") {
			key, value, _ := strings.Cut(pair, "=")
			msg.tags[key] = value
		}
		line = rest
	}

	if strings.HasPrefix(line, ":") {
		prefix, rest, found := strings.Cut(line[1:], " ")
		if !found {
			return msg
		}
		msg.prefix = prefix
		line = rest
	}

	body, trailing, hasTrailing := strings.Cut(line, " :")
	if hasTrailing {
		msg.trailing = trailing
	}
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return msg
	}
	msg.command = fields[0]
	msg.params = fields[1:]
	return msg
}

// privmsgEvent maps a PRIVMSG to a chat event. Broadcaster and moderator
// badges mark the sender privileged.
func privmsgEvent(msg ircMessage) (chat.Event, bool) {
	user := prefixNick(msg.prefix)
	if displayName := msg.tags["display-name"]; displayName != "" {
		user = displayName
	}
	if user == "" || msg.trailing == "" {
		return chat.Event{}, false
	}

	badges := msg.tags["badges"]
	privileged := strings.Contains(badges, "broadcaster/") ||
		strings.Contains(badges, "moderator/") ||
		msg.tags["mod"] == "1"

	return chat.Event{
		Source:     chat.SourceTwitch,
		User:       user,
		Text:       msg.trailing,
		Privileged: privileged,
	}, true
}

// prefixNick extracts the nick from an IRC prefix like nick!user@host.
func prefixNick(prefix string) string {
	nick, _, _ := strings.Cut(prefix, "!")
	return nick
}
